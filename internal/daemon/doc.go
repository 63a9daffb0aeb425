// Package daemon wires the run store and pipeline manager into a
// single-instance background service.
package daemon
