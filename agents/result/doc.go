/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

/*
Package result recovers JSON objects from free-form model responses.

Models asked for JSON frequently wrap it in prose or markdown fences, or leave
a trailing comma behind. Recover tries a fixed sequence of conservative
strategies and stops at the first one that yields a single JSON object:

 1. direct: the whole (trimmed) response
 2. balanced: the first top-level {...} span, tracking string literals and
    escapes so braces inside values do not change the nesting depth
 3. naive: from the first '{' to the last '}'
 4. trailing_comma: the naive span with ",}" and ",]" repaired

No strategy fills in missing fields or guesses at truncated content. When every
strategy fails the caller gets a *ParseError with a preview of the response:

	response := "Here is the result:\n```json\n{\"verdict\": \"pass\"}\n```\nThanks!"

	rec, err := result.Recover(response)
	if err != nil {
		return err
	}
	fmt.Println(rec.Strategy) // balanced

Extract combines Recover with json.Unmarshal:

	type Verdict struct {
		Verdict string `json:"verdict"`
	}
	v, strategy, err := result.Extract[Verdict](response)

# Thread Safety

All functions in this package are pure and safe for concurrent use.
*/
package result
