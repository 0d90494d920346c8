// Package config provides centralized configuration management for the
// carebase services. It handles loading configuration from multiple
// sources, validation, and provides a type-safe API for accessing
// configuration values throughout the application.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of
// precedence:
//
//	1. Environment variables (highest priority)
//	2. Configuration files (YAML)
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern CAREBASE_* for
// namespacing:
//
//	CAREBASE_SERVER_PORT=8080
//	CAREBASE_STORAGE_DB_PATH=data/carebase.db
//	CAREBASE_LOGGING_LEVEL=info
//	CAREBASE_INGEST_HEADER_DEPTH=3
//
// # Header Patterns
//
// The ingest section may point at a YAML rule file overriding the
// built-in header classification patterns:
//
//	patterns, err := config.LoadPatterns(cfg.Ingest.PatternsFile)
//
// # Usage
//
// Load configuration at application startup:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
