package slack

import "otogi-helpnav/pkg/otogi"

const (
	// DriverType is the configuration type token handled by this package.
	DriverType = "slack"
	// DriverPlatform is the neutral platform produced by this driver.
	DriverPlatform = otogi.PlatformSlack
)
