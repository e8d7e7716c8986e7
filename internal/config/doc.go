// Package config holds the process configuration of jobharvest: flag
// defaults, validation, the optional .jobharvest YAML file with its
// search profiles, and start URL parsing.
package config
