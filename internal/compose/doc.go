// Package compose renders the final vertical video. Each scene becomes one
// segment (background + burned-in word captions + narration audio), segments
// are joined with the concat demuxer, and optional background music is looped,
// trimmed, and mixed under the narration.
//
// Rendering is resilient: a segment whose background fails is retried on a
// solid color, and segments that still fail are skipped with a warning. Only
// a render that produces zero usable segments fails the stage. Concurrent
// renders are bounded by a weighted semaphore sized from configuration.
//
// The timing and filtergraph math lives in the timeline, captions, and
// audiomix packages; this package owns process execution and file placement.
package compose
