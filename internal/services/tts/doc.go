// Package tts synthesizes per-scene narration audio through an external
// speech engine. Two providers are supported: edge (the edge-tts CLI, cloud
// voices selected per speaker) and piper (a local model, single voice). The
// provider is chosen by configuration; callers only see the Provider
// interface.
//
// Narration text is sanitized before synthesis: markup and control characters
// are stripped and whitespace collapsed. A line that sanitizes away entirely
// becomes an ellipsis so every scene still yields a clip.
package tts
