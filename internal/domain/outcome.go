package domain

import (
	"encoding/json"
	"fmt"
)

// OutcomeKind enumerates the closed set of classified results for one
// (implementation, test) pair.
type OutcomeKind int

const (
	// KindValid means the implementation judged the instance valid.
	KindValid OutcomeKind = iota
	// KindInvalid means the implementation judged the instance invalid.
	KindInvalid
	// KindErrored means the implementation failed to produce a judgement.
	KindErrored
	// KindSkipped means the implementation declined the test with a reason.
	KindSkipped
)

// tag values used on the wire and in reports.
const (
	tagValid   = "valid"
	tagInvalid = "invalid"
	tagError   = "error"
	tagSkipped = "skipped"
)

func (k OutcomeKind) String() string {
	switch k {
	case KindValid:
		return tagValid
	case KindInvalid:
		return tagInvalid
	case KindErrored:
		return tagError
	case KindSkipped:
		return tagSkipped
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// Outcome is the classified result of one implementation running one test.
// Created once by the classifier and never mutated.
type Outcome struct {
	Kind OutcomeKind
	// Context carries free-form detail for errored outcomes.
	Context map[string]any
	// Message is the human-readable reason for skipped outcomes.
	Message string
	// CaseErrored marks an errored outcome caused by a whole-case failure
	// (crash, timeout) rather than by this single test.
	CaseErrored bool
}

// Convenience constructors for the common kinds.

func ValidOutcome() Outcome   { return Outcome{Kind: KindValid} }
func InvalidOutcome() Outcome { return Outcome{Kind: KindInvalid} }

// ErroredOutcome builds a single-test error with optional context.
func ErroredOutcome(context map[string]any) Outcome {
	return Outcome{Kind: KindErrored, Context: context}
}

// CaseErroredOutcome marks every test of a failed case.
func CaseErroredOutcome(context map[string]any) Outcome {
	return Outcome{Kind: KindErrored, Context: context, CaseErrored: true}
}

// SkippedOutcome builds a skip with its reason.
func SkippedOutcome(message string) Outcome {
	return Outcome{Kind: KindSkipped, Message: message}
}

// Failed reports whether this outcome counts against fail-fast/max-fail
// policies (anything that is not Valid).
func (o Outcome) Failed() bool {
	return o.Kind != KindValid
}

// outcomeJSON is the wire shape for report records.
type outcomeJSON struct {
	Tag         string         `json:"tag"`
	Context     map[string]any `json:"context,omitempty"`
	Message     string         `json:"message,omitempty"`
	CaseErrored bool           `json:"case_errored,omitempty"`
}

// MarshalJSON encodes the outcome as a tagged record.
func (o Outcome) MarshalJSON() ([]byte, error) {
	return json.Marshal(outcomeJSON{
		Tag:         o.Kind.String(),
		Context:     o.Context,
		Message:     o.Message,
		CaseErrored: o.CaseErrored,
	})
}

// UnmarshalJSON decodes a tagged record; unknown tags are rejected so a
// report consumer never silently misreads an outcome.
func (o *Outcome) UnmarshalJSON(data []byte) error {
	var raw outcomeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.Tag {
	case tagValid:
		o.Kind = KindValid
	case tagInvalid:
		o.Kind = KindInvalid
	case tagError:
		o.Kind = KindErrored
	case tagSkipped:
		o.Kind = KindSkipped
	default:
		return fmt.Errorf("unknown outcome tag %q", raw.Tag)
	}
	o.Context = raw.Context
	o.Message = raw.Message
	o.CaseErrored = raw.CaseErrored
	return nil
}
