/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package reflection runs the reflection agents over a journal entry.
//
// Each agent has a narrow role and a fixed output format, described by its
// system prompt. A Runner sends the entry to every configured agent
// concurrently and returns their feedback in the configured agent order,
// which is also the order their sections appear in evaluation transcripts.
//
//	runner, err := reflection.NewRunner(gen, models)
//	if err != nil {
//		return err
//	}
//	outputs, err := runner.Reflect(ctx, entry.Title, entry.Body)
package reflection
