// Package config loads, validates, and normalizes herald's TOML
// configuration.
//
// Configuration sections by subsystem:
//   - Paths: staging and log directories
//   - Schedule: daily posting slots and their reference timezone
//   - Storage: the staged-media bucket directory and its public URL
//   - XAPI: X (Twitter) app credentials and per-account tokens
//   - Instagram: Graph API endpoints, access token, and business accounts
//   - Workflow: dispatcher interval and retention settings
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
//
// Load resolves the config path (explicit flag, ~/.config/herald/config.toml,
// or ./herald.toml), applies defaults for missing values, expands ~ in path
// fields, and validates the result.
package config
