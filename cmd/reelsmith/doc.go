// Command reelsmith is the operator CLI for the narrated-video pipeline: it
// starts runs, inspects their progress, and manages the run database shared
// with the reelsmithd daemon.
package main
