package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsvx/crosscheck/internal/domain"
	"github.com/jsvx/crosscheck/internal/report"
)

func writeReportFile(t *testing.T, cases ...report.CaseRecord) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "report.ndjson")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := report.NewWriter(f)
	require.NoError(t, w.WriteMetadata(report.Metadata{
		Dialect: "https://json-schema.org/draft/2020-12/schema",
		Implementations: []domain.Implementation{{
			ID:       "impl-a",
			Name:     "fake",
			Language: "go",
			Homepage: "https://example.com",
			Issues:   "https://example.com/issues",
			Source:   "https://example.com/src",
			Dialects: []string{"https://json-schema.org/draft/2020-12/schema"},
		}},
		Started: time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC),
	}))
	for _, rec := range cases {
		require.NoError(t, w.WriteCase(rec))
	}
	return path
}

func oneCaseRecord() report.CaseRecord {
	return report.CaseRecord{
		Seq: 1,
		Case: domain.TestCase{
			Description: "integers",
			Schema:      json.RawMessage(`{"type":"integer"}`),
			Tests: []domain.Test{
				{Description: "one", Instance: json.RawMessage(`1`)},
				{Description: "str", Instance: json.RawMessage(`"s"`)},
			},
		},
		Results: []map[string]domain.Outcome{
			{"impl-a": domain.ValidOutcome()},
			{"impl-a": domain.InvalidOutcome()},
		},
	}
}

func TestSummaryCmd(t *testing.T) {
	path := writeReportFile(t, oneCaseRecord())
	var out bytes.Buffer
	globals := testGlobals(nil)
	globals.Stdout = &out

	cmd := &SummaryCmd{Report: path}
	require.NoError(t, cmd.Run(globals))

	assert.Contains(t, out.String(), "impl-a")
	assert.Contains(t, out.String(), "cases: 1")
}

func TestSummaryCmdEmptyReport(t *testing.T) {
	path := writeReportFile(t)
	globals := testGlobals(nil)
	globals.Stdout = &bytes.Buffer{}

	err := (&SummaryCmd{Report: path}).Run(globals)
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 66, exitErr.Code)
}

func TestSummaryCmdMissingFile(t *testing.T) {
	err := (&SummaryCmd{Report: "/does/not/exist"}).Run(testGlobals(nil))
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 78, exitErr.Code)
}

func TestValidateCmd(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		path := writeReportFile(t, oneCaseRecord())
		var out bytes.Buffer
		globals := testGlobals(nil)
		globals.Stdout = &out

		require.NoError(t, (&ValidateCmd{Report: path}).Run(globals))
		assert.Contains(t, out.String(), "report ok")
	})

	t.Run("empty", func(t *testing.T) {
		path := writeReportFile(t)
		globals := testGlobals(nil)
		globals.Stdout = &bytes.Buffer{}

		err := (&ValidateCmd{Report: path}).Run(globals)
		var exitErr *ExitError
		require.ErrorAs(t, err, &exitErr)
		assert.Equal(t, 66, exitErr.Code)
	})

	t.Run("garbage", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "garbage.ndjson")
		require.NoError(t, os.WriteFile(path, []byte("not a report\n"), 0o644))
		globals := testGlobals(nil)
		globals.Stdout = &bytes.Buffer{}

		err := (&ValidateCmd{Report: path}).Run(globals)
		var exitErr *ExitError
		require.ErrorAs(t, err, &exitErr)
		assert.Equal(t, 65, exitErr.Code)
	})
}
