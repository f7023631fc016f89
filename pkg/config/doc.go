// Package config provides configuration management for playback.
//
// This package handles loading, validating, and managing configuration from
// YAML files with environment variable overrides.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("playback.yaml")
//
//  2. From a YAML file with .env and environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("playback.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention PLAYBACK_SECTION_FIELD.
// For example:
//
//   - PLAYBACK_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - PLAYBACK_REPLAY_MISS_POLICY overrides replay.miss_policy
//   - PLAYBACK_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// A .env file in the working directory is loaded first; variables already
// present in the environment are not replaced.
//
// # Configuration Precedence
//
// Configuration values are applied in the following order (later overrides earlier):
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Example Configuration
//
//	recorder:
//	  identity_func: hashcode
//	  output_path: recordings/session.yaml
//	replay:
//	  snapshot_path: recordings/session.yaml
//	  miss_policy: fail
//	  watch: true
//	storage:
//	  backend: sqlite
//	  sqlite:
//	    path: data/playback.db
//	  retention:
//	    days: 14
//	server:
//	  listen_address: 127.0.0.1:8080
//	  mode: replay
//	telemetry:
//	  logging:
//	    level: debug
//	    format: json
package config
