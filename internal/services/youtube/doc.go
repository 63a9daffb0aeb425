// Package youtube uploads finished videos through the YouTube Data API v3.
//
// Authentication uses a long-lived OAuth refresh token exchanged for access
// tokens on demand. Uploads go through Videos.Insert with a resumable media
// body. Scheduled publishing uploads the video as private with publish_at
// set; YouTube makes it public at the scheduled time.
//
// API failures are classified for the pipeline: quota exhaustion and rejected
// credentials are fatal, server errors are retryable.
package youtube
