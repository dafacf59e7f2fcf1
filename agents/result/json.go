/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package result

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Strategy names the recovery step that produced a JSON object.
type Strategy string

const (
	// StrategyDirect parses the whole response as-is.
	StrategyDirect Strategy = "direct"
	// StrategyBalanced parses the first brace-balanced top-level object.
	StrategyBalanced Strategy = "balanced"
	// StrategyNaive parses the span from the first '{' to the last '}'.
	StrategyNaive Strategy = "naive"
	// StrategyTrailingComma parses the naive span with trailing commas removed.
	StrategyTrailingComma Strategy = "trailing_comma"
)

// previewLength bounds the response excerpt carried by ParseError.
const previewLength = 200

// ErrNoJSON is matched by a ParseError when the response contains no '{'.
var ErrNoJSON = errors.New("no JSON object found in response")

// Attempt records why a single strategy was rejected.
type Attempt struct {
	Strategy Strategy
	Err      error
}

// ParseError is returned when no strategy recovers a JSON object.
type ParseError struct {
	// Preview is the start of the response, for diagnostics.
	Preview string
	// Attempts lists the strategies tried, in order.
	Attempts []Attempt

	noJSON bool
}

func (e *ParseError) Error() string {
	if e.noJSON {
		return fmt.Sprintf("%v: %q", ErrNoJSON, e.Preview)
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Strategy, a.Err))
	}
	return fmt.Sprintf("response is not valid JSON (%s): %q", strings.Join(parts, "; "), e.Preview)
}

// Is reports ErrNoJSON for responses without any object.
func (e *ParseError) Is(target error) bool {
	return e.noJSON && target == ErrNoJSON
}

// Recovered is a JSON object pulled out of a model response.
type Recovered struct {
	Raw      json.RawMessage
	Strategy Strategy
}

// candidate is the tagged outcome of one strategy.
type candidate struct {
	strategy Strategy
	text     string
	ok       bool // false when the strategy found nothing to try
}

// Recover extracts the first JSON object it can from text, trying in order a
// direct parse, the first brace-balanced object, the first-to-last brace span,
// and that span with trailing commas removed. It never invents content: if
// none of these decode to an object, it returns a *ParseError.
func Recover(text string) (Recovered, error) {
	trimmed := strings.TrimSpace(text)
	first := strings.IndexByte(trimmed, '{')
	last := strings.LastIndexByte(trimmed, '}')

	var naive string
	if first >= 0 && last > first {
		naive = trimmed[first : last+1]
	}
	balanced := firstBalancedObject(trimmed)

	candidates := []candidate{
		{strategy: StrategyDirect, text: trimmed, ok: true},
		{strategy: StrategyBalanced, text: balanced, ok: balanced != ""},
		{strategy: StrategyNaive, text: naive, ok: naive != ""},
		{strategy: StrategyTrailingComma, text: stripTrailingCommas(naive), ok: naive != ""},
	}

	perr := &ParseError{Preview: preview(text), noJSON: first < 0}
	for _, c := range candidates {
		if !c.ok {
			perr.Attempts = append(perr.Attempts, Attempt{Strategy: c.strategy, Err: errors.New("no candidate")})
			continue
		}
		if err := checkObject(c.text); err != nil {
			perr.Attempts = append(perr.Attempts, Attempt{Strategy: c.strategy, Err: err})
			continue
		}
		return Recovered{Raw: json.RawMessage(c.text), Strategy: c.strategy}, nil
	}
	return Recovered{}, perr
}

// Extract recovers a JSON object from responseText and unmarshals it into T,
// reporting which strategy found the object. A *ParseError means nothing was
// recovered. Unmarshal errors are returned alongside the partially decoded
// value so that callers can decide whether a field-level type mismatch is
// fatal.
func Extract[T any](responseText string) (T, Strategy, error) {
	var out T
	rec, err := Recover(responseText)
	if err != nil {
		return out, "", err
	}
	if err := json.Unmarshal(rec.Raw, &out); err != nil {
		return out, rec.Strategy, err
	}
	return out, rec.Strategy, nil
}

// checkObject verifies that s is exactly one JSON object.
func checkObject(s string) error {
	dec := json.NewDecoder(strings.NewReader(s))
	var obj map[string]json.RawMessage
	if err := dec.Decode(&obj); err != nil {
		return err
	}
	if obj == nil {
		return errors.New("top-level value is not an object")
	}
	if rest := s[dec.InputOffset():]; strings.TrimSpace(rest) != "" {
		return errors.New("unexpected data after top-level object")
	}
	return nil
}

// firstBalancedObject scans for the first top-level {...} span, ignoring
// braces that appear inside string literals.
func firstBalancedObject(s string) string {
	depth := 0
	start := -1
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			// Quotes before the first brace are prose, not JSON.
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// stripTrailingCommas removes commas that directly precede (modulo
// whitespace) a closing '}' or ']' outside string literals.
func stripTrailingCommas(s string) string {
	if s == "" {
		return ""
	}
	var buf bytes.Buffer
	buf.Grow(len(s))
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			buf.WriteByte(ch)
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		if ch == '"' {
			inString = true
			buf.WriteByte(ch)
			continue
		}
		if ch == ',' {
			j := i + 1
			for j < len(s) && isJSONSpace(s[j]) {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
		}
		buf.WriteByte(ch)
	}
	return buf.String()
}

func isJSONSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

func preview(s string) string {
	if utf8.RuneCountInString(s) <= previewLength {
		return s
	}
	runes := []rune(s)
	return string(runes[:previewLength])
}
