// Package preflight verifies the runtime environment before the daemon
// starts processing: working directories, external binaries, free disk
// space, and LLM API reachability.
package preflight
