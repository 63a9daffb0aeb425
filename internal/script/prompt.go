package script

import "fmt"

// systemPrompt asks for a short-form narrated script as strict JSON. The
// speaker identifiers are free-form; casting maps them onto voices later.
const systemPrompt = `You write scripts for short vertical narrated videos.

Respond with JSON only, using exactly this shape:
{
  "title": "short video title",
  "scenes": [
    {"speaker": "narrator", "line": "One or two sentences.", "target_duration_seconds": 6}
  ]
}

Rules:
- 6 to 12 scenes, each a single spoken line of at most two sentences.
- Use lowercase snake_case speaker identifiers and reuse them consistently.
- Lines are plain spoken prose: no stage directions, markup, or emoji.
- target_duration_seconds is an estimate of the spoken length, between 3 and 15.
- The whole script should run roughly 45 to 90 seconds.`

func userPrompt(prompt string) string {
	return fmt.Sprintf("Write the script for this video:\n\n%s", prompt)
}
