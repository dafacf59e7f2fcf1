/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package judge

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an evaluation failure.
type Kind int

const (
	// KindConfiguration means the evaluation could not start.
	KindConfiguration Kind = iota + 1
	// KindTransport means the judge could not be reached.
	KindTransport
	// KindParse means the judge's answer was not readable.
	KindParse
	// KindValidation means the judge's answer stayed inconsistent after the
	// corrective retry.
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindTransport:
		return "transport"
	case KindParse:
		return "parse"
	case KindValidation:
		return "validation"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is the single failure type returned by Evaluator.Evaluate.
type Error struct {
	Kind Kind
	// Errors holds the remaining validation codes for KindValidation.
	Errors []string
	Err    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindTransport:
		return fmt.Sprintf("could not reach the judge: %v", e.Err)
	case KindParse:
		return fmt.Sprintf("judge's answer was not readable: %v", e.Err)
	case KindValidation:
		return fmt.Sprintf("judge's answer was internally inconsistent even after one correction attempt: %s", strings.Join(e.Errors, ", "))
	default:
		return fmt.Sprintf("evaluation misconfigured: %v", e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
