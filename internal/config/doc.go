// Package config loads and merges reviewgate configuration with viper.
//
// Precedence (highest to lowest):
//  1. CLI flags (passed to [Load] as overrides)
//  2. Environment variables (REVIEWGATE_REVIEW_TIMEOUT, REVIEWGATE_LOCK_TTL, ...)
//  3. The repository file (.reviewgate.yaml in the working directory)
//  4. The user file ($XDG_CONFIG_HOME/reviewgate/config.yaml)
//  5. Built-in defaults
//
// Durations are written as strings ("120s", "30m", "720h"). Empty path
// settings are derived from the XDG state and cache directories. Use [Init]
// to write a default file and [SetField] to update one key.
package config
