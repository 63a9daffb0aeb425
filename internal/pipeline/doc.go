// Package pipeline orchestrates run processing: it polls the store for runs
// at a stage boundary, claims them, executes the registered stage handler
// with heartbeats, and advances the status ladder. Recoverable failures are
// retried with backoff up to the configured limit; everything else fails the
// run with a fatal error.
package pipeline
