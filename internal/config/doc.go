// Package config provides configuration defaults, YAML loading and
// validation for the stress clients, plus structured logger setup.
// Both binaries run with built-in defaults when no config file is given.
package config
