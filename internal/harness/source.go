package harness

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/jsvx/crosscheck/internal/domain"
)

// CaseSource yields test cases in input order. Next returns io.EOF when the
// stream is exhausted.
type CaseSource interface {
	Next() (domain.TestCase, error)
}

// NDJSONSource reads one test case per line.
type NDJSONSource struct {
	sc     *bufio.Scanner
	lineNo int
}

// maxCaseBytes bounds one input line; registries can be large.
const maxCaseBytes = 16 * 1024 * 1024

// NewNDJSONSource wraps r in a line-delimited case source.
func NewNDJSONSource(r io.Reader) *NDJSONSource {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxCaseBytes)
	return &NDJSONSource{sc: sc}
}

// Next returns the next case, io.EOF at end of input, or a parse error
// naming the offending line.
func (s *NDJSONSource) Next() (domain.TestCase, error) {
	for s.sc.Scan() {
		s.lineNo++
		line := bytes.TrimSpace(s.sc.Bytes())
		if len(line) == 0 {
			continue
		}
		tc, err := domain.ParseTestCase(line)
		if err != nil {
			return domain.TestCase{}, fmt.Errorf("input line %d: %w", s.lineNo, err)
		}
		return tc, nil
	}
	if err := s.sc.Err(); err != nil {
		return domain.TestCase{}, fmt.Errorf("read input: %w", err)
	}
	return domain.TestCase{}, io.EOF
}

// SliceSource yields a fixed set of cases, used by smoke runs and tests.
type SliceSource struct {
	cases []domain.TestCase
	next  int
}

func NewSliceSource(cases ...domain.TestCase) *SliceSource {
	return &SliceSource{cases: cases}
}

func (s *SliceSource) Next() (domain.TestCase, error) {
	if s.next >= len(s.cases) {
		return domain.TestCase{}, io.EOF
	}
	tc := s.cases[s.next]
	s.next++
	return tc, nil
}

// FilterSource passes through only cases whose description matches the
// glob pattern. The pattern is wrapped in wildcards so a bare word matches
// anywhere in the description.
type FilterSource struct {
	src     CaseSource
	pattern string
}

func NewFilterSource(src CaseSource, pattern string) *FilterSource {
	return &FilterSource{src: src, pattern: "*" + pattern + "*"}
}

func (s *FilterSource) Next() (domain.TestCase, error) {
	for {
		tc, err := s.src.Next()
		if err != nil {
			return domain.TestCase{}, err
		}
		ok, err := matchDescription(s.pattern, tc.Description)
		if err != nil {
			return domain.TestCase{}, fmt.Errorf("bad filter pattern %q: %w", s.pattern, err)
		}
		if ok {
			return tc, nil
		}
	}
}

// matchDescription globs against a case description. path.Match stops '*'
// at '/', but descriptions routinely contain URIs, so the separator is
// mapped to an unused byte on both sides before matching.
func matchDescription(pattern, description string) (bool, error) {
	const sep = "\x01"
	return path.Match(
		strings.ReplaceAll(pattern, "/", sep),
		strings.ReplaceAll(description, "/", sep),
	)
}
