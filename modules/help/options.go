package help

import (
	"log/slog"
	"strings"
	"time"
)

// DefaultSessionWorkers is how many help sessions may run at the same time.
const DefaultSessionWorkers = 8

// Option mutates help module configuration.
type Option func(*Module)

// WithCategoryNamer maps raw command categories to display names.
//
// The namer must be deterministic: one category always yields the same name.
func WithCategoryNamer(namer func(category string) string) Option {
	return func(module *Module) {
		if namer != nil {
			module.categoryNamer = namer
		}
	}
}

// WithCategoryLabels renames categories through a fixed lookup table.
// Lookups ignore case. Categories missing from labels keep their raw name.
func WithCategoryLabels(labels map[string]string) Option {
	copied := make(map[string]string, len(labels))
	for category, label := range labels {
		copied[strings.ToLower(category)] = label
	}

	return WithCategoryNamer(func(category string) string {
		if label, ok := copied[strings.ToLower(category)]; ok {
			return label
		}
		return category
	})
}

// WithCommandFilter hides commands for which filter returns false.
func WithCommandFilter(filter CommandFilter) Option {
	return func(module *Module) {
		module.filter = filter
	}
}

// WithSessionTimeout bounds one navigation session. Non-positive values are ignored.
func WithSessionTimeout(timeout time.Duration) Option {
	return func(module *Module) {
		if timeout > 0 {
			module.sessionTimeout = timeout
		}
	}
}

// WithSessionWorkers sets how many sessions run concurrently. Non-positive values are ignored.
func WithSessionWorkers(workers int) Option {
	return func(module *Module) {
		if workers > 0 {
			module.sessionWorkers = workers
		}
	}
}

// WithLogger injects a logger directly, bypassing service lookup.
func WithLogger(logger *slog.Logger) Option {
	return func(module *Module) {
		if logger != nil {
			module.logger = logger
			module.loggerInjected = true
		}
	}
}
