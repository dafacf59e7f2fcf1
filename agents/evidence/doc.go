/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package evidence locates quoted evidence inside a transcript.
//
// Judges re-quote transcript text after it has passed through a tokenizer, which
// commonly swaps straight quotes for curly ones, rewrites dashes and reflows
// whitespace. Matching therefore runs on a normalized form of both strings:
//
//	evidence.Locate(transcript, `he said "I'm done"`)
//
// Matching is exact substring containment after normalization. There is no
// fuzzy or approximate matching: a quote that does not appear verbatim is
// treated as unsupported.
package evidence
