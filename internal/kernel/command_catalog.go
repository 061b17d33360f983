package kernel

import (
	"context"
	"fmt"

	"otogi-helpnav/pkg/otogi"
)

// kernelCommandCatalog exposes kernel command registrations through ServiceRegistry.
type kernelCommandCatalog struct {
	kernel *Kernel
}

// ListCommands returns all registered command entries in registration order.
func (c *kernelCommandCatalog) ListCommands(ctx context.Context) ([]otogi.RegisteredCommand, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("list commands: %w", err)
	}
	if c == nil || c.kernel == nil {
		return nil, fmt.Errorf("list commands: nil catalog")
	}

	c.kernel.mu.RLock()
	defer c.kernel.mu.RUnlock()

	commands := make([]otogi.RegisteredCommand, 0, len(c.kernel.commandOrder))
	for _, key := range c.kernel.commandOrder {
		registration, exists := c.kernel.commands[key]
		if !exists {
			continue
		}
		commands = append(commands, otogi.RegisteredCommand{
			ModuleName: registration.moduleName,
			Command:    cloneCommandSpec(registration.spec),
		})
	}

	return commands, nil
}

var _ otogi.CommandCatalog = (*kernelCommandCatalog)(nil)
