// Package notifications delivers publishing events via ntfy.
//
// The default implementation posts to the topic configured in config.toml
// and gracefully degrades to a no-op when no topic is set, so callers never
// branch on whether notifications are enabled. Per-event toggles in the
// notifications config section silence individual event kinds.
package notifications
