// Package config provides configuration structures and utilities for breachscan.
// It defines the API client settings, pacing and retry limits, input and output
// directories, and the outbound mail settings, and loads them from a YAML file,
// a .env file and the process environment.
package config
