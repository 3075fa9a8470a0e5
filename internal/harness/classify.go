package harness

import (
	"encoding/json"

	"github.com/tidwall/gjson"

	"github.com/jsvx/crosscheck/internal/domain"
)

// classifyResult maps one raw per-test response element onto the outcome
// taxonomy. Unrecognized shapes become errored outcomes with the raw payload
// preserved; nothing is silently dropped.
func classifyResult(raw json.RawMessage) domain.Outcome {
	if valid := gjson.GetBytes(raw, "valid"); valid.Exists() {
		switch valid.Type {
		case gjson.True:
			return domain.ValidOutcome()
		case gjson.False:
			return domain.InvalidOutcome()
		}
	}
	if gjson.GetBytes(raw, "errored").Bool() {
		return domain.ErroredOutcome(decodeContext(raw))
	}
	if gjson.GetBytes(raw, "skipped").Bool() {
		return domain.SkippedOutcome(gjson.GetBytes(raw, "message").String())
	}
	return domain.ErroredOutcome(map[string]any{"response": decodeAny(raw)})
}

// classifyResults pairs a case's tests with the response elements. Short
// responses leave the uncovered tests errored; extra elements are ignored.
func classifyResults(tests []domain.Test, results []json.RawMessage) []domain.Outcome {
	outcomes := make([]domain.Outcome, len(tests))
	for i := range tests {
		if i >= len(results) {
			outcomes[i] = domain.ErroredOutcome(map[string]any{
				"error": "implementation returned no result for this test",
			})
			continue
		}
		outcomes[i] = classifyResult(results[i])
	}
	return outcomes
}

// erroredCase marks every test of a failed case.
func erroredCase(n int, message string) []domain.Outcome {
	outcomes := make([]domain.Outcome, n)
	for i := range outcomes {
		outcomes[i] = domain.CaseErroredOutcome(map[string]any{"error": message})
	}
	return outcomes
}

// erroredExchange marks every test of a case whose single exchange was
// malformed (bad sequence echo, unparseable line) while the transport stayed
// healthy.
func erroredExchange(n int, message string) []domain.Outcome {
	outcomes := make([]domain.Outcome, n)
	for i := range outcomes {
		outcomes[i] = domain.ErroredOutcome(map[string]any{"error": message})
	}
	return outcomes
}

func decodeContext(raw json.RawMessage) map[string]any {
	ctxField := gjson.GetBytes(raw, "context")
	if !ctxField.Exists() {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(ctxField.Raw), &out); err != nil {
		// Context that is not an object is still preserved.
		return map[string]any{"context": ctxField.Value()}
	}
	return out
}

func decodeAny(raw json.RawMessage) any {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return v
}
