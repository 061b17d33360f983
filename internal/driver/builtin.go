package driver

import (
	"context"
	"fmt"
	"log/slog"

	"otogi-helpnav/internal/driver/slack"
	"otogi-helpnav/internal/driver/telegram"
	"otogi-helpnav/pkg/otogi"
)

// runtimeBuildFunc is the shared shape of per-platform BuildRuntimeFromConfig functions.
type runtimeBuildFunc func(
	name string,
	logger *slog.Logger,
	rawConfig []byte,
) (otogi.EventSource, otogi.Driver, otogi.SinkDispatcher, error)

// NewBuiltinRegistry constructs the runtime registry with all built-in drivers.
func NewBuiltinRegistry() (*Registry, error) {
	return NewRegistry([]Descriptor{
		{
			Type:     telegram.DriverType,
			Platform: telegram.DriverPlatform,
			Builder:  builderFromConfig(telegram.DriverType, telegram.BuildRuntimeFromConfig),
		},
		{
			Type:     slack.DriverType,
			Platform: slack.DriverPlatform,
			Builder:  builderFromConfig(slack.DriverType, slack.BuildRuntimeFromConfig),
		},
	})
}

func builderFromConfig(driverType string, build runtimeBuildFunc) BuilderFunc {
	return func(
		_ context.Context,
		definition Definition,
		builderLogger *slog.Logger,
	) (Runtime, error) {
		source, runtimeDriver, sinkDispatcher, err := build(
			definition.Name,
			builderLogger,
			definition.Config,
		)
		if err != nil {
			return Runtime{}, fmt.Errorf("build %s runtime from config: %w", driverType, err)
		}

		return Runtime{
			Source:         source,
			Driver:         runtimeDriver,
			SinkDispatcher: sinkDispatcher,
		}, nil
	}
}
