package report

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrEmptyReport marks a structurally sound report containing zero case
// records, distinguishable from a report that failed to parse at all.
var ErrEmptyReport = errors.New("report contains no case records")

// maxRecordBytes bounds one report line; cases embed schemas and registries
// so lines can be large.
const maxRecordBytes = 16 * 1024 * 1024

// Load re-parses a report stream line by line. On ErrEmptyReport the
// returned report still carries the parsed metadata.
func Load(r io.Reader) (*Report, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxRecordBytes)

	rep := &Report{}
	lineNo := 0
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		lineNo++
		if lineNo == 1 {
			if err := json.Unmarshal(line, &rep.Metadata); err != nil {
				return nil, fmt.Errorf("line 1: malformed metadata record: %w", err)
			}
			continue
		}
		var rec CaseRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("line %d: malformed case record: %w", lineNo, err)
		}
		rep.Cases = append(rep.Cases, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	if lineNo == 0 {
		return nil, errors.New("report has no metadata record")
	}
	if len(rep.Cases) == 0 {
		return rep, ErrEmptyReport
	}
	return rep, nil
}
