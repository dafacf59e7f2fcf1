/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package judge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"chainguard.dev/reflecteval/agents/generate"
	"chainguard.dev/reflecteval/agents/promptbuilder"
	"chainguard.dev/reflecteval/agents/result"
	"chainguard.dev/reflecteval/agents/taxonomy"
	"github.com/chainguard-dev/clog"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const (
	// DefaultTemperature is used for the first judge call.
	DefaultTemperature = 0.2
	// DefaultRetryTemperature is used for the corrective call.
	DefaultRetryTemperature = 0.0
	// DefaultMaxTokens caps each judge completion.
	DefaultMaxTokens = 2000
)

// Input identifies the transcript to evaluate.
type Input struct {
	EntryID       string
	PromptVersion string
	Transcript    string
}

// State is a step of an evaluation run.
type State string

const (
	StateBuildPrompt   State = "build_prompt"
	StateGenerate      State = "generate"
	StateParse         State = "parse"
	StateSanitizeScore State = "sanitize_score"
	StateValidate      State = "validate"
	StateRetry         State = "retry"
	StateDone          State = "done"
	StateFailed        State = "failed"
)

// Transition records one executed state.
type Transition struct {
	State State
	// Attempt is 1 for the first pass and 2 for the corrective pass.
	Attempt int
	// Prompt is the user message sent, set on generate.
	Prompt string
	// Strategy is how JSON was recovered, set on parse.
	Strategy result.Strategy
	// Errors are the validation errors, set on a failed validate.
	Errors []string
	// Err is the failure that ended the run, if any.
	Err error
}

// Outcome is a completed run: the result on success, and the transitions in
// either case.
type Outcome struct {
	Result      *Result
	Transitions []Transition
	// Calls is the number of generation calls made.
	Calls int
	// Rejected is the judge's final answer when it failed validation.
	Rejected *Result
}

// Option configures an Evaluator.
type Option func(*Evaluator) error

// WithTaxonomy sets the violation taxonomy.
func WithTaxonomy(tax *taxonomy.Taxonomy) Option {
	return func(e *Evaluator) error {
		if tax == nil {
			return errors.New("taxonomy cannot be nil")
		}
		e.tax = tax
		return nil
	}
}

// WithRequiredAgents sets the agents every result must evaluate.
func WithRequiredAgents(agents ...string) Option {
	return func(e *Evaluator) error {
		if len(agents) == 0 {
			return errors.New("at least one required agent is needed")
		}
		for _, a := range agents {
			if strings.TrimSpace(a) == "" || a != strings.ToLower(a) {
				return fmt.Errorf("agent names must be non-empty lowercase, got %q", a)
			}
		}
		e.agents = agents
		return nil
	}
}

// WithRubric replaces the built-in rubric with an operator-supplied
// template. See RenderRubric.
func WithRubric(template string) Option {
	return func(e *Evaluator) error {
		p, err := promptbuilder.Parse(template)
		if err != nil {
			return fmt.Errorf("parse rubric: %w", err)
		}
		e.rubric = p
		return nil
	}
}

// WithTemperature sets the sampling temperature of the first call.
func WithTemperature(temp float64) Option {
	return func(e *Evaluator) error {
		if temp < 0 || temp > 2 {
			return fmt.Errorf("temperature must be between 0 and 2, got %f", temp)
		}
		e.temperature = temp
		return nil
	}
}

// WithRetryTemperature sets the sampling temperature of the corrective call.
func WithRetryTemperature(temp float64) Option {
	return func(e *Evaluator) error {
		if temp < 0 || temp > 2 {
			return fmt.Errorf("retry temperature must be between 0 and 2, got %f", temp)
		}
		e.retryTemperature = temp
		return nil
	}
}

// WithMaxTokens caps each judge completion.
func WithMaxTokens(tokens int64) Option {
	return func(e *Evaluator) error {
		if tokens <= 0 {
			return fmt.Errorf("max tokens must be positive, got %d", tokens)
		}
		e.maxTokens = tokens
		return nil
	}
}

// WithModel sets the judge model, recorded on every result.
func WithModel(model string) Option {
	return func(e *Evaluator) error {
		e.model = model
		return nil
	}
}

// WithClock sets the time source for result timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) error {
		if now == nil {
			return errors.New("clock cannot be nil")
		}
		e.now = now
		return nil
	}
}

// WithIDGenerator sets the source of evaluation IDs.
func WithIDGenerator(newID func() string) Option {
	return func(e *Evaluator) error {
		if newID == nil {
			return errors.New("id generator cannot be nil")
		}
		e.newID = newID
		return nil
	}
}

// Evaluator runs judge evaluations.
type Evaluator struct {
	gen              generate.Interface
	tax              *taxonomy.Taxonomy
	agents           []string
	rubric           *promptbuilder.Prompt
	temperature      float64
	retryTemperature float64
	maxTokens        int64
	model            string
	now              func() time.Time
	newID            func() string

	system    string
	validator *Validator
}

// NewEvaluator constructs an Evaluator that calls gen.
func NewEvaluator(gen generate.Interface, opts ...Option) (*Evaluator, error) {
	if gen == nil {
		return nil, &Error{Kind: KindConfiguration, Err: errors.New("generator is nil")}
	}
	e := &Evaluator{
		gen:              gen,
		tax:              taxonomy.Default(),
		agents:           DefaultRequiredAgents,
		rubric:           rubricTemplate,
		temperature:      DefaultTemperature,
		retryTemperature: DefaultRetryTemperature,
		maxTokens:        DefaultMaxTokens,
		now:              time.Now,
		newID:            uuid.NewString,
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, &Error{Kind: KindConfiguration, Err: err}
		}
	}

	system, err := renderRubric(e.rubric, e.tax, e.agents)
	if err != nil {
		return nil, &Error{Kind: KindConfiguration, Err: fmt.Errorf("render rubric: %w", err)}
	}
	e.system = system
	e.validator = NewValidator(e.tax, e.agents)
	return e, nil
}

// SystemPrompt returns the rendered rubric sent as the system message.
func (e *Evaluator) SystemPrompt() string {
	return e.system
}

// Validator returns the validator the evaluator applies.
func (e *Evaluator) Validator() *Validator {
	return e.validator
}

// Model returns the configured judge model.
func (e *Evaluator) Model() string {
	return e.model
}

// Evaluate judges in.Transcript and returns a validated result.
func (e *Evaluator) Evaluate(ctx context.Context, in Input) (*Result, error) {
	out, err := e.Run(ctx, in)
	if err != nil {
		return nil, err
	}
	return out.Result, nil
}

// Run is Evaluate returning the full Outcome. The Outcome is non-nil even
// when err is not.
func (e *Evaluator) Run(ctx context.Context, in Input) (*Outcome, error) {
	tr := otel.Tracer("chainguard.reflecteval.judge",
		oteltrace.WithInstrumentationVersion("1.0.0"))
	ctx, span := tr.Start(ctx, "judge.evaluate", oteltrace.WithAttributes(
		attribute.String("entry_id", in.EntryID),
		attribute.String("prompt_version", in.PromptVersion),
		attribute.String("model", e.model),
	))
	defer span.End()

	log := clog.FromContext(ctx).With("entry_id", in.EntryID).With("prompt_version", in.PromptVersion)
	ctx = clog.WithLogger(ctx, log)

	r := &run{e: e, in: in, out: &Outcome{}}
	for state := StateBuildPrompt; state != StateDone && state != StateFailed; {
		log.With("state", string(state)).With("attempt", r.attempt).Debug("Evaluation state")
		state = r.step(ctx, state)
	}

	span.SetAttributes(attribute.Int("judge.calls", r.out.Calls))
	if r.err != nil {
		r.out.Transitions = append(r.out.Transitions, Transition{State: StateFailed, Attempt: r.attempt, Err: r.err})
		evaluationCounter.WithLabelValues(KindOf(r.err).String()).Inc()
		span.RecordError(r.err)
		span.SetStatus(codes.Error, r.err.Error())
		log.With("error", r.err).Error("Evaluation failed")
		return r.out, r.err
	}

	res := r.out.Result
	r.out.Transitions = append(r.out.Transitions, Transition{State: StateDone, Attempt: r.attempt})
	evaluationCounter.WithLabelValues(string(res.Verdict)).Inc()
	scoreHistogram.Observe(res.Score())
	for _, code := range res.Violations {
		violationCounter.WithLabelValues(code).Inc()
	}
	span.SetAttributes(
		attribute.String("judge.verdict", string(res.Verdict)),
		attribute.Float64("judge.score", res.Score()),
	)
	log.With("verdict", string(res.Verdict)).
		With("score", res.Score()).
		With("calls", r.out.Calls).
		Info("Evaluation complete")
	return r.out, nil
}

// run is the mutable state of one evaluation.
type run struct {
	e   *Evaluator
	in  Input
	out *Outcome
	err error

	attempt     int
	user        string
	temperature float64
	text        string
	parsed      *Result
	sanitized   []taxonomy.Code
	validation  Validation
}

func (r *run) record(t Transition) {
	t.Attempt = r.attempt
	r.out.Transitions = append(r.out.Transitions, t)
}

func (r *run) fail(kind Kind, err error, validationErrors []string) State {
	r.err = &Error{Kind: kind, Err: err, Errors: validationErrors}
	return StateFailed
}

func (r *run) step(ctx context.Context, state State) State {
	switch state {
	case StateBuildPrompt:
		return r.buildPrompt()
	case StateGenerate:
		return r.generate(ctx)
	case StateParse:
		return r.parse(ctx)
	case StateSanitizeScore:
		return r.sanitizeScore()
	case StateValidate:
		return r.validate(ctx)
	case StateRetry:
		return r.retry(ctx)
	default:
		return r.fail(KindConfiguration, fmt.Errorf("unknown state %q", state), nil)
	}
}

func (r *run) buildPrompt() State {
	r.attempt = 1
	r.record(Transition{State: StateBuildPrompt})
	if strings.TrimSpace(r.in.Transcript) == "" {
		return r.fail(KindConfiguration, errors.New("transcript is empty"), nil)
	}
	r.user = UserMessage(r.in.Transcript, r.in.PromptVersion, nil)
	r.temperature = r.e.temperature
	return StateGenerate
}

func (r *run) generate(ctx context.Context) State {
	r.record(Transition{State: StateGenerate, Prompt: r.user})
	r.out.Calls++
	text, err := r.e.gen.Generate(ctx, generate.Request{
		System:      r.e.system,
		User:        r.user,
		Temperature: r.temperature,
		MaxTokens:   r.e.maxTokens,
		Model:       r.e.model,
	})
	switch {
	case errors.Is(err, generate.ErrNoModel):
		return r.fail(KindConfiguration, err, nil)
	case err != nil:
		return r.fail(KindTransport, err, nil)
	}
	r.text = text
	return StateParse
}

func (r *run) parse(ctx context.Context) State {
	parsed, strategy, err := result.Extract[Result](r.text)
	var perr *result.ParseError
	if errors.As(err, &perr) {
		r.record(Transition{State: StateParse, Err: err})
		return r.fail(KindParse, err, nil)
	}
	r.record(Transition{State: StateParse, Strategy: strategy})
	if err != nil {
		// A field of the wrong type is left zero and reported by validation,
		// which the corrective retry can fix.
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			return r.fail(KindParse, err, nil)
		}
		clog.FromContext(ctx).With("field", typeErr.Field).With("error", err).Warn("Judge output has a mistyped field")
	}
	r.parsed = &parsed
	return StateSanitizeScore
}

// sanitizeScore computes the persisted violation set and score. The
// self-reported score and raw violations stay on r.parsed until validation
// has seen them.
func (r *run) sanitizeScore() State {
	r.record(Transition{State: StateSanitizeScore})
	r.sanitized = r.e.tax.Sanitize(r.parsed.Violations)
	return StateValidate
}

func (r *run) validate(ctx context.Context) State {
	r.validation = r.e.validator.Validate(r.parsed, r.in.Transcript)
	if r.validation.OK {
		r.record(Transition{State: StateValidate})
		r.out.Result = r.finalize()
		return StateDone
	}

	r.record(Transition{State: StateValidate, Errors: r.validation.Errors})
	if r.attempt > 1 {
		r.out.Rejected = r.parsed.clone()
		return r.fail(KindValidation, errors.New(r.validation.String()), r.validation.Errors)
	}
	clog.FromContext(ctx).With("errors", r.validation.String()).Warn("Judge output failed validation, retrying once")
	return StateRetry
}

func (r *run) retry(context.Context) State {
	r.attempt++
	r.record(Transition{State: StateRetry, Errors: r.validation.Errors})
	retryCounter.Inc()
	r.user = UserMessage(r.in.Transcript, r.in.PromptVersion, r.validation.Errors)
	r.temperature = r.e.retryTemperature
	return StateGenerate
}

// finalize builds the persisted result from a validated judge answer.
func (r *run) finalize() *Result {
	res := r.parsed.clone()
	score := float64(r.e.tax.Score(r.sanitized))
	res.OverallScore = &score
	res.Violations = taxonomy.Strings(r.sanitized)

	if res.EvalID == "" {
		res.EvalID = r.e.newID()
	}
	res.EntryID = r.in.EntryID
	res.PromptVersion = r.in.PromptVersion
	if r.e.model != "" {
		res.Model = r.e.model
	}
	if res.Timestamp == "" {
		res.Timestamp = r.e.now().UTC().Format(time.RFC3339)
	}
	res.FullTranscript = r.in.Transcript
	if res.Fixes == nil {
		res.Fixes = []Fix{}
	}
	return res
}
