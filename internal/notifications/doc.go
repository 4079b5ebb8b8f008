// Package notifications delivers sync and device events via pluggable
// notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. Per-category switches (device, sync, errors) let the user mute
// groups of events without losing the rest.
package notifications
