// Package config handles configuration loading for tally.
//
// # Configuration File
//
// Locations, in order:
//
//  1. The --config flag
//  2. Path from the TALLY_CONFIG environment variable
//  3. $XDG_CONFIG_HOME/tally/config.yaml
//  4. ~/.config/tally/config.yaml
//
// A missing file at locations 3 or 4 means "use the defaults". Files ending in
// .toml are decoded as TOML; anything else is YAML.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${TALLY_JWT_SECRET}"
//
// TALLY_DB_PATH, when set, replaces database.path.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	server:
//	  read_header_timeout: "10s"
//	  shutdown_timeout: "5s"
//	auth:
//	  token_ttl: "720h"
//
// # Validation
//
// Load validates after defaults and overrides are applied:
//
//   - server.http_addr is required unless tailscale is enabled
//   - tailscale.hostname is required when tailscale is enabled
//   - database.path is required
//   - logging.level is one of debug, info, warn, error
//
// export.workers is clamped to 1..32 rather than rejected.
package config
