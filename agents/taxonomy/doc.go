/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package taxonomy defines the closed set of rubric violations and the scorer
// built on top of it.
//
// A Taxonomy is constructed once, either from Default or from a YAML file via
// Load, and passed explicitly to the scorer and to the judge's validator. It is
// never mutated afterwards, which makes it safe to share and easy to swap for a
// reduced rule set in tests:
//
//	tax := taxonomy.Default()
//	codes := tax.Sanitize([]string{"format_broken", "bogus", "format_broken"})
//	score := tax.Score(codes) // 85
package taxonomy
