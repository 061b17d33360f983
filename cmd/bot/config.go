package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"otogi-helpnav/internal/driver"
	"otogi-helpnav/internal/kernel"
	"otogi-helpnav/modules/help"
	"otogi-helpnav/pkg/otogi"
)

const (
	envConfigFile           = "OTOGI_CONFIG_FILE"
	envPrefix               = "OTOGI"
	defaultConfigFilePath   = "config/bot.json"
	alternateConfigFilePath = "bin/config/bot.json"

	defaultModuleHookTimeout  = 3 * time.Second
	defaultShutdownTimeout    = 10 * time.Second
	defaultHandlerTimeout     = 3 * time.Second
	defaultSubscriptionBuffer = 256
	defaultSubscriptionWorker = 2
	defaultInteractionBuffer  = 16
)

var runtimeModuleNames = []string{"pingpong", "demo", "help"}

type appConfig struct {
	logLevel slog.Level

	moduleHookTimeout   time.Duration
	shutdownTimeout     time.Duration
	handlerTimeout      time.Duration
	subscriptionBuffer  int
	subscriptionWorkers int
	interactionBuffer   int

	drivers        []driver.Definition
	routingDefault *kernel.ModuleRoute
	moduleRoutes   map[string]kernel.ModuleRoute

	helpSessionTimeout time.Duration
	helpSessionWorkers int
	helpCategoryLabels map[string]string
	demoAdminIDs       []string
}

type fileConfig struct {
	LogLevel string            `mapstructure:"log_level"`
	Kernel   fileKernelConfig  `mapstructure:"kernel"`
	Drivers  []fileDriverEntry `mapstructure:"drivers"`
	Routing  fileRoutingConfig `mapstructure:"routing"`
	Help     fileHelpConfig    `mapstructure:"help"`
	Demo     fileDemoConfig    `mapstructure:"demo"`
}

type fileKernelConfig struct {
	ModuleHookTimeout   string `mapstructure:"module_hook_timeout"`
	ShutdownTimeout     string `mapstructure:"shutdown_timeout"`
	HandlerTimeout      string `mapstructure:"handler_timeout"`
	SubscriptionBuffer  int    `mapstructure:"subscription_buffer"`
	SubscriptionWorkers int    `mapstructure:"subscription_workers"`
	InteractionBuffer   int    `mapstructure:"interaction_buffer"`
}

type fileDriverEntry struct {
	Name    string         `mapstructure:"name"`
	Type    string         `mapstructure:"type"`
	Enabled *bool          `mapstructure:"enabled"`
	Config  map[string]any `mapstructure:"config"`
}

type fileRoutingConfig struct {
	Default *fileModuleRoute           `mapstructure:"default"`
	Modules map[string]fileModuleRoute `mapstructure:"modules"`
}

type fileModuleRoute struct {
	Sources []fileEndpointRef `mapstructure:"sources"`
	Sink    *fileEndpointRef  `mapstructure:"sink"`
}

type fileEndpointRef struct {
	Platform string `mapstructure:"platform"`
	ID       string `mapstructure:"id"`
}

type fileHelpConfig struct {
	SessionTimeout string            `mapstructure:"session_timeout"`
	SessionWorkers int               `mapstructure:"session_workers"`
	CategoryLabels map[string]string `mapstructure:"category_labels"`
}

type fileDemoConfig struct {
	AdminIDs []string `mapstructure:"admin_ids"`
}

// loadConfig reads the config file through viper. Top-level scalar keys can be
// overridden with OTOGI_-prefixed environment variables, for example
// OTOGI_LOG_LEVEL or OTOGI_HELP_SESSION_TIMEOUT.
func loadConfig(registry *driver.Registry) (appConfig, error) {
	configFile, err := resolveConfigFilePath()
	if err != nil {
		return appConfig{}, err
	}

	parsed, err := readConfigFile(configFile)
	if err != nil {
		return appConfig{}, err
	}

	cfg := defaultAppConfig()
	if err := applyFileConfig(&cfg, parsed); err != nil {
		return appConfig{}, fmt.Errorf("apply config file %s: %w", configFile, err)
	}
	if err := validateAppConfig(&cfg, registry); err != nil {
		return appConfig{}, fmt.Errorf("validate config file %s: %w", configFile, err)
	}

	return cfg, nil
}

func resolveConfigFilePath() (string, error) {
	configFile, found, err := lookupConfigFile()
	if err != nil {
		return "", err
	}
	if !found {
		return "", fmt.Errorf(
			"config file not found; create %s or %s, or set %s",
			defaultConfigFilePath,
			alternateConfigFilePath,
			envConfigFile,
		)
	}

	return configFile, nil
}

// lookupConfigFile reports found=false when no candidate file exists.
func lookupConfigFile() (string, bool, error) {
	if configFile := strings.TrimSpace(os.Getenv(envConfigFile)); configFile != "" {
		return configFile, true, nil
	}

	candidates := []string{defaultConfigFilePath, alternateConfigFilePath}
	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil {
			if info.IsDir() {
				return "", false, fmt.Errorf("config file %s is a directory", candidate)
			}
			return candidate, true, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("stat config file %s: %w", candidate, err)
		}
	}

	return "", false, nil
}

func readConfigFile(path string) (fileConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	v.SetDefault("log_level", "info")
	v.SetDefault("kernel.module_hook_timeout", "")
	v.SetDefault("kernel.shutdown_timeout", "")
	v.SetDefault("kernel.handler_timeout", "")
	v.SetDefault("help.session_timeout", "")
	v.SetDefault("help.session_workers", 0)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return fileConfig{}, fmt.Errorf("read config file %s: %w", path, err)
	}

	var parsed fileConfig
	if err := v.Unmarshal(&parsed); err != nil {
		return fileConfig{}, fmt.Errorf("parse config file %s: %w", path, err)
	}

	return parsed, nil
}

func defaultAppConfig() appConfig {
	return appConfig{
		logLevel: slog.LevelInfo,

		moduleHookTimeout:   defaultModuleHookTimeout,
		shutdownTimeout:     defaultShutdownTimeout,
		handlerTimeout:      defaultHandlerTimeout,
		subscriptionBuffer:  defaultSubscriptionBuffer,
		subscriptionWorkers: defaultSubscriptionWorker,
		interactionBuffer:   defaultInteractionBuffer,

		drivers:      make([]driver.Definition, 0),
		moduleRoutes: make(map[string]kernel.ModuleRoute),

		helpSessionTimeout: help.DefaultSessionTimeout,
		helpSessionWorkers: help.DefaultSessionWorkers,
		helpCategoryLabels: make(map[string]string),
	}
}

func applyFileConfig(cfg *appConfig, parsed fileConfig) error {
	if cfg == nil {
		return fmt.Errorf("apply config: nil config")
	}

	if rawLevel := strings.TrimSpace(parsed.LogLevel); rawLevel != "" {
		level, err := parseLogLevel(rawLevel)
		if err != nil {
			return fmt.Errorf("parse log_level: %w", err)
		}
		cfg.logLevel = level
	}

	durations := []struct {
		key   string
		raw   string
		field *time.Duration
	}{
		{key: "kernel.module_hook_timeout", raw: parsed.Kernel.ModuleHookTimeout, field: &cfg.moduleHookTimeout},
		{key: "kernel.shutdown_timeout", raw: parsed.Kernel.ShutdownTimeout, field: &cfg.shutdownTimeout},
		{key: "kernel.handler_timeout", raw: parsed.Kernel.HandlerTimeout, field: &cfg.handlerTimeout},
		{key: "help.session_timeout", raw: parsed.Help.SessionTimeout, field: &cfg.helpSessionTimeout},
	}
	for _, entry := range durations {
		if err := parsePositiveDuration(entry.key, entry.raw, entry.field); err != nil {
			return err
		}
	}

	counts := []struct {
		key   string
		value int
		field *int
	}{
		{key: "kernel.subscription_buffer", value: parsed.Kernel.SubscriptionBuffer, field: &cfg.subscriptionBuffer},
		{key: "kernel.subscription_workers", value: parsed.Kernel.SubscriptionWorkers, field: &cfg.subscriptionWorkers},
		{key: "kernel.interaction_buffer", value: parsed.Kernel.InteractionBuffer, field: &cfg.interactionBuffer},
		{key: "help.session_workers", value: parsed.Help.SessionWorkers, field: &cfg.helpSessionWorkers},
	}
	for _, entry := range counts {
		if entry.value < 0 {
			return fmt.Errorf("parse %s: must be > 0", entry.key)
		}
		if entry.value > 0 {
			*entry.field = entry.value
		}
	}

	for category, label := range parsed.Help.CategoryLabels {
		cfg.helpCategoryLabels[category] = strings.TrimSpace(label)
	}
	for _, adminID := range parsed.Demo.AdminIDs {
		if trimmed := strings.TrimSpace(adminID); trimmed != "" {
			cfg.demoAdminIDs = append(cfg.demoAdminIDs, trimmed)
		}
	}

	cfg.drivers = make([]driver.Definition, 0, len(parsed.Drivers))
	for index, entry := range parsed.Drivers {
		if len(entry.Config) == 0 {
			return fmt.Errorf("parse drivers[%d].config: required", index)
		}
		rawConfig, err := json.Marshal(entry.Config)
		if err != nil {
			return fmt.Errorf("parse drivers[%d].config: %w", index, err)
		}
		enabled := true
		if entry.Enabled != nil {
			enabled = *entry.Enabled
		}
		cfg.drivers = append(cfg.drivers, driver.Definition{
			Name:    strings.TrimSpace(entry.Name),
			Type:    strings.TrimSpace(entry.Type),
			Enabled: enabled,
			Config:  rawConfig,
		})
	}

	cfg.routingDefault = nil
	if parsed.Routing.Default != nil {
		route, err := parseModuleRoute(*parsed.Routing.Default, "routing.default")
		if err != nil {
			return err
		}
		cfg.routingDefault = &route
	}

	cfg.moduleRoutes = make(map[string]kernel.ModuleRoute, len(parsed.Routing.Modules))
	for moduleName, rawRoute := range parsed.Routing.Modules {
		route, err := parseModuleRoute(rawRoute, fmt.Sprintf("routing.modules.%s", moduleName))
		if err != nil {
			return err
		}
		cfg.moduleRoutes[moduleName] = route
	}

	return nil
}

func parsePositiveDuration(key string, raw string, field *time.Duration) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse %s: %w", key, err)
	}
	if value <= 0 {
		return fmt.Errorf("parse %s: must be > 0", key)
	}
	*field = value

	return nil
}

func parseModuleRoute(raw fileModuleRoute, scope string) (kernel.ModuleRoute, error) {
	if len(raw.Sources) == 0 {
		return kernel.ModuleRoute{}, fmt.Errorf("%s.sources is required", scope)
	}
	if raw.Sink == nil {
		return kernel.ModuleRoute{}, fmt.Errorf("%s.sink is required", scope)
	}

	sources := make([]otogi.EventSource, 0, len(raw.Sources))
	for index, sourceRef := range raw.Sources {
		source := otogi.EventSource{
			Platform: otogi.Platform(strings.TrimSpace(sourceRef.Platform)),
			ID:       strings.TrimSpace(sourceRef.ID),
		}
		if source.Platform == "" && source.ID == "" {
			return kernel.ModuleRoute{}, fmt.Errorf("%s.sources[%d]: empty source reference", scope, index)
		}
		sources = append(sources, source)
	}

	sink := otogi.EventSink{
		Platform: otogi.Platform(strings.TrimSpace(raw.Sink.Platform)),
		ID:       strings.TrimSpace(raw.Sink.ID),
	}
	if sink.Platform == "" && sink.ID == "" {
		return kernel.ModuleRoute{}, fmt.Errorf("%s.sink: empty sink reference", scope)
	}

	return kernel.ModuleRoute{Sources: sources, Sink: &sink}, nil
}

func validateAppConfig(cfg *appConfig, registry *driver.Registry) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if registry == nil {
		return fmt.Errorf("nil driver registry")
	}

	enabledDrivers := make([]driver.Definition, 0, len(cfg.drivers))
	enabledByName := make(map[string]driver.Definition, len(cfg.drivers))
	seenNames := make(map[string]struct{}, len(cfg.drivers))
	for _, definition := range cfg.drivers {
		if definition.Name == "" {
			return fmt.Errorf("drivers[].name is required")
		}
		if definition.Type == "" {
			return fmt.Errorf("drivers[%s].type is required", definition.Name)
		}
		if _, exists := seenNames[definition.Name]; exists {
			return fmt.Errorf("drivers[%s]: duplicate name", definition.Name)
		}
		seenNames[definition.Name] = struct{}{}
		if !definition.Enabled {
			continue
		}
		if _, err := registry.PlatformForType(definition.Type); err != nil {
			return fmt.Errorf("drivers[%s].type: %w", definition.Name, err)
		}
		enabledDrivers = append(enabledDrivers, definition)
		enabledByName[definition.Name] = definition
	}
	if len(enabledDrivers) == 0 {
		return fmt.Errorf("at least one enabled driver is required")
	}

	knownModules := make(map[string]struct{}, len(runtimeModuleNames))
	for _, moduleName := range runtimeModuleNames {
		knownModules[moduleName] = struct{}{}
	}
	for moduleName, route := range cfg.moduleRoutes {
		if _, known := knownModules[moduleName]; !known {
			return fmt.Errorf("routing.modules.%s: unknown module", moduleName)
		}
		if err := validateRouteRefs(route, enabledByName, fmt.Sprintf("routing.modules.%s", moduleName)); err != nil {
			return err
		}
	}
	if cfg.routingDefault != nil {
		if err := validateRouteRefs(*cfg.routingDefault, enabledByName, "routing.default"); err != nil {
			return err
		}
	}

	if len(enabledDrivers) == 1 && cfg.routingDefault == nil {
		sole := enabledDrivers[0]
		platform, err := registry.PlatformForType(sole.Type)
		if err != nil {
			return fmt.Errorf("derive default route from driver %s: %w", sole.Name, err)
		}
		cfg.routingDefault = &kernel.ModuleRoute{
			Sources: []otogi.EventSource{{Platform: platform, ID: sole.Name}},
			Sink:    &otogi.EventSink{Platform: platform, ID: sole.Name},
		}
	}

	if len(enabledDrivers) >= 2 && cfg.routingDefault == nil {
		for _, moduleName := range runtimeModuleNames {
			if _, exists := cfg.moduleRoutes[moduleName]; !exists {
				return fmt.Errorf("routing.default is required in multi-driver mode unless all modules override")
			}
		}
	}

	return nil
}

func validateRouteRefs(
	route kernel.ModuleRoute,
	enabledByName map[string]driver.Definition,
	scope string,
) error {
	for index, source := range route.Sources {
		if source.ID != "" {
			if _, exists := enabledByName[source.ID]; !exists {
				return fmt.Errorf("%s.sources[%d]: unknown driver id %s", scope, index, source.ID)
			}
		}
	}
	if route.Sink != nil && route.Sink.ID != "" {
		if _, exists := enabledByName[route.Sink.ID]; !exists {
			return fmt.Errorf("%s.sink: unknown driver id %s", scope, route.Sink.ID)
		}
	}

	return nil
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unsupported level %q", raw)
	}
}
