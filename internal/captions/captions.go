// Package captions computes word display windows and builds the drawtext
// filters that burn them into a segment. Word timing comes from forced
// alignment when available, otherwise from uniform division of the segment.
package captions

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Word is one caption token with its display window in segment-relative seconds.
type Word struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Words computes caption windows for a scene line. When aligned timestamps are
// provided they are clipped to [0, duration]; otherwise the duration is divided
// uniformly across the whitespace-split words. Empty text yields no captions.
func Words(line string, duration float64, aligned []Word) []Word {
	if duration <= 0 {
		return nil
	}
	if len(aligned) > 0 {
		return clip(aligned, duration)
	}

	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return nil
	}

	perWord := duration / float64(len(tokens))
	words := make([]Word, 0, len(tokens))
	for i, token := range tokens {
		words = append(words, Word{
			Text:  token,
			Start: float64(i) * perWord,
			End:   float64(i+1) * perWord,
		})
	}
	return words
}

func clip(aligned []Word, duration float64) []Word {
	words := make([]Word, 0, len(aligned))
	for _, w := range aligned {
		if strings.TrimSpace(w.Text) == "" {
			continue
		}
		start := w.Start
		end := w.End
		if start < 0 {
			start = 0
		}
		if end > duration {
			end = duration
		}
		if end <= start {
			continue
		}
		words = append(words, Word{Text: w.Text, Start: start, End: end})
	}
	return words
}

// Style carries the drawtext rendering knobs.
type Style struct {
	FontFile string
	FontSize int
}

// DrawtextFilters renders one drawtext filter per word, centered, upper-cased,
// white with a black border, shown only during the word's window.
func DrawtextFilters(words []Word, style Style) []string {
	filters := make([]string, 0, len(words))
	for _, w := range words {
		var b strings.Builder
		b.WriteString("drawtext=")
		if style.FontFile != "" {
			b.WriteString("fontfile='")
			b.WriteString(EscapeText(style.FontFile))
			b.WriteString("':")
		}
		b.WriteString("text='")
		b.WriteString(EscapeText(strings.ToUpper(w.Text)))
		b.WriteString("':fontsize=")
		b.WriteString(strconv.Itoa(style.FontSize))
		b.WriteString(":fontcolor=white:borderw=4:bordercolor=black")
		b.WriteString(":x=(w-text_w)/2:y=(h-text_h)/2")
		b.WriteString(":enable='between(t,")
		b.WriteString(formatSeconds(w.Start))
		b.WriteString(",")
		b.WriteString(formatSeconds(w.End))
		b.WriteString(")'")
		filters = append(filters, b.String())
	}
	return filters
}

// EscapeText escapes the characters drawtext treats specially inside a quoted
// text value.
func EscapeText(text string) string {
	replacer := strings.NewReplacer(
		`\`, `\\`,
		`'`, `\'`,
		`:`, `\:`,
		`%`, `\%`,
	)
	return replacer.Replace(text)
}

var titleCaser = cases.Title(language.English)

// SpeakerLabel normalizes a speaker identifier for display.
func SpeakerLabel(speaker string) string {
	cleaned := strings.TrimSpace(strings.ReplaceAll(speaker, "_", " "))
	if cleaned == "" {
		return ""
	}
	return titleCaser.String(cleaned)
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
