package report

import (
	"encoding/json"
	"fmt"
	"io"
)

// Writer streams report records as NDJSON. Append order is the caller's
// responsibility; the orchestrator serializes writes through a single
// goroutine.
type Writer struct {
	encoder     *json.Encoder
	wroteHeader bool
}

// NewWriter wraps w in a report writer.
func NewWriter(w io.Writer) *Writer {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &Writer{encoder: enc}
}

// WriteMetadata emits the leading metadata record. Must be called exactly
// once, before any case record.
func (w *Writer) WriteMetadata(meta Metadata) error {
	if w.wroteHeader {
		return fmt.Errorf("report: metadata already written")
	}
	w.wroteHeader = true
	return w.encoder.Encode(meta)
}

// WriteCase emits one completed case record.
func (w *Writer) WriteCase(rec CaseRecord) error {
	if !w.wroteHeader {
		return fmt.Errorf("report: case record before metadata")
	}
	return w.encoder.Encode(rec)
}
