// Package config provides configuration structures and utilities for Scoutly.
// It defines crawl bounds, politeness settings, report preferences and the
// optional configuration file that supplies defaults for CLI flags.
package config
