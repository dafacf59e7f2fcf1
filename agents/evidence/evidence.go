/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package evidence

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// punctuation folds typographic variants onto their ASCII forms.
var punctuation = strings.NewReplacer(
	"“", `"`, // left double quotation mark
	"”", `"`, // right double quotation mark
	"„", `"`, // double low-9 quotation mark
	"‟", `"`, // double high-reversed-9 quotation mark
	"‘", "'", // left single quotation mark
	"’", "'", // right single quotation mark
	"‚", "'", // single low-9 quotation mark
	"‛", "'", // single high-reversed-9 quotation mark
	"–", "-", // en dash
	"—", "-", // em dash
	"‐", "-", // hyphen
	"‑", "-", // non-breaking hyphen
	"−", "-", // minus sign
)

// Normalize returns the canonical form used for evidence matching: NFKC
// composition, straight quotes, ASCII hyphens and single spaces, trimmed.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	s = punctuation.Replace(norm.NFKC.String(s))

	var sb strings.Builder
	sb.Grow(len(s))
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space && sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		space = false
		sb.WriteRune(r)
	}
	return sb.String()
}

// Locate reports whether evidence appears as a single contiguous span of
// transcript once both are normalized. Empty evidence never matches.
func Locate(transcript, evidence string) bool {
	return NewLocator(transcript).Contains(evidence)
}

// Locator holds a normalized transcript so that many evidence strings can be
// checked against it without normalizing the transcript each time.
type Locator struct {
	transcript string
}

// NewLocator normalizes transcript once.
func NewLocator(transcript string) *Locator {
	return &Locator{transcript: Normalize(transcript)}
}

// Contains reports whether the normalized evidence is a substring of the
// normalized transcript.
func (l *Locator) Contains(evidence string) bool {
	if l == nil || l.transcript == "" {
		return false
	}
	e := Normalize(evidence)
	if e == "" {
		return false
	}
	return strings.Contains(l.transcript, e)
}
