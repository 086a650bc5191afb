// Package ocr turns a still image of a receipt or product label into text.
package ocr

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrEmptyImage is returned when an engine is handed no image bytes.
var ErrEmptyImage = errors.New("ocr: empty image")

// Result is the text recognised in one image.
type Result struct {
	Text     string        `json:"text"`
	Engine   string        `json:"engine"`
	Duration time.Duration `json:"duration"`
}

// Lines returns the non-blank lines of the recognised text, trimmed.
func (r *Result) Lines() []string {
	return Lines(r.Text)
}

// SuggestedName is the first non-blank line, used to prefill the item name.
func (r *Result) SuggestedName() string {
	return FirstLine(r.Text)
}

// Engine recognises text in an image.
type Engine interface {
	Recognize(ctx context.Context, image []byte) (*Result, error)
}

// Lines splits text into trimmed, non-blank lines.
func Lines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// FirstLine returns the first non-blank line of text, or "".
func FirstLine(text string) string {
	if lines := Lines(text); len(lines) > 0 {
		return lines[0]
	}
	return ""
}
