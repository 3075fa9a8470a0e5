// Package report assembles and serializes the ordered record of a run. The
// stream format is newline-delimited JSON: one metadata record, then one
// record per completed case, each line independently parseable.
package report

import (
	"time"

	"github.com/jsvx/crosscheck/internal/domain"
)

// Metadata is the first record of every report stream.
type Metadata struct {
	Dialect         string                  `json:"dialect"`
	Implementations []domain.Implementation `json:"implementations"`
	Started         time.Time               `json:"started"`
}

// CaseRecord is one completed case: the case itself plus, for each of its
// tests in order, the mapping from implementation id to classified outcome.
// The mapping holds entries only for implementations still live when the
// case ran.
type CaseRecord struct {
	// Seq is the 1-based ordinal of the case in the input stream.
	Seq     int                       `json:"seq"`
	Case    domain.TestCase           `json:"case"`
	Results []map[string]domain.Outcome `json:"results"`
}

// Report is a fully parsed report, held in memory only by consumers that
// asked for it; the writer never keeps more than the current record.
type Report struct {
	Metadata Metadata
	Cases    []CaseRecord
}
