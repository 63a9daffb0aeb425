// Package notifications delivers pipeline lifecycle events (run started,
// completed, failed, uploaded) to an ntfy topic. Each event can be toggled
// in configuration; with no topic configured the service is a noop.
package notifications
