/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package judge evaluates an agent-feedback transcript with an external
// generator acting as judge, and refuses to accept a judgment that is not
// internally consistent.
//
// # Overview
//
// The package provides:
//   - Result, the evaluation record and its JSON wire shape
//   - Validator, a pure consistency check over a Result and its transcript
//   - Evaluator, the orchestrator that prompts the judge, recovers JSON from
//     its answer, recomputes the score, validates, and makes at most one
//     corrective retry
//
// # Evaluation flow
//
// An evaluation runs these states in order:
//
//	build_prompt -> generate -> parse -> sanitize_score -> validate -> done
//	                                                         |
//	                                                         v
//	                              retry -> generate -> parse -> sanitize_score -> validate -> done | failed
//
// The retry re-sends the original request at temperature 0 with the
// validation errors appended under a VALIDATION_ERRORS heading. Generation
// and parse failures end the evaluation immediately; only validation
// failures are retried.
//
// # Scoring
//
// The judge's self-reported overallScore is checked for presence and range,
// then discarded: the stored score is always recomputed from the sanitized
// violation set by the configured taxonomy.
//
// # Errors
//
// Every failure is an *Error whose Kind tells callers whether the judge
// could not be reached (KindTransport), returned unreadable output
// (KindParse), or stayed inconsistent after the correction (KindValidation).
//
// # Thread Safety
//
// Validator and Evaluator hold only immutable configuration and are safe for
// concurrent use.
package judge
