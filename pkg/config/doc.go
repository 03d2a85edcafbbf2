// Package config loads the profile-based configuration file.
package config
