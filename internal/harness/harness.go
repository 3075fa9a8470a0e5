// Package harness orchestrates a run: it starts every requested
// implementation, fans each test case out to the live sessions
// concurrently, classifies what comes back, and streams the report in
// strict input order.
package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jsvx/crosscheck/internal/dialect"
	"github.com/jsvx/crosscheck/internal/domain"
	"github.com/jsvx/crosscheck/internal/protocol"
	"github.com/jsvx/crosscheck/internal/report"
)

// Runner is the session surface the orchestrator needs. *protocol.Session
// satisfies it; tests substitute fakes.
type Runner interface {
	ID() string
	Start(ctx context.Context) (domain.Implementation, error)
	SetDialect(ctx context.Context, uri string) error
	NextSeq() int
	Run(ctx context.Context, seq int, tc domain.TestCase) (*protocol.RunResult, error)
	Crashed() bool
	Stop() error
}

// ReportSink accepts completed report records in order. *report.Writer
// satisfies it.
type ReportSink interface {
	WriteMetadata(meta report.Metadata) error
	WriteCase(rec report.CaseRecord) error
}

// Options configures one run.
type Options struct {
	// Dialect is the run's selected dialect.
	Dialect dialect.Dialect
	// FailFast stops after the first case containing a non-valid outcome.
	FailFast bool
	// MaxFail stops once the cumulative count of non-valid outcomes
	// reaches this threshold. Zero disables. Mutually exclusive with
	// FailFast.
	MaxFail int
	// SetSchema rewrites each non-boolean case schema to carry an
	// explicit $schema for the run's dialect.
	SetSchema bool
	Logger    *zap.Logger
	// now is injectable for report-timestamp tests.
	now func() time.Time
}

// Harness drives one run over a fixed set of sessions.
type Harness struct {
	opts    Options
	runners []Runner
	sink    ReportSink
	log     *zap.Logger
}

// New validates the configuration and builds a harness. FailFast and MaxFail
// together are rejected before anything starts.
func New(runners []Runner, sink ReportSink, opts Options) (*Harness, error) {
	if opts.FailFast && opts.MaxFail > 0 {
		return nil, errors.New("fail-fast and max-fail are mutually exclusive")
	}
	if opts.Dialect.URI == "" {
		opts.Dialect = dialect.Latest()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.now == nil {
		opts.now = time.Now
	}
	return &Harness{
		opts:    opts,
		runners: runners,
		sink:    sink,
		log:     opts.Logger,
	}, nil
}

// Run executes the whole run: startup, the per-case loop, and teardown.
// Per-implementation failures narrow the live set; only an empty live set or
// a broken input stream ends the run early.
func (h *Harness) Run(ctx context.Context, cases CaseSource) (Summary, error) {
	live, impls := h.startAll(ctx)
	defer func() {
		for _, r := range h.runners {
			if err := r.Stop(); err != nil {
				h.log.Warn("stop failed", zap.String("implementation", r.ID()), zap.Error(err))
			}
		}
	}()

	if len(live) == 0 {
		h.log.Error("no implementations available")
		return Summary{Result: ResultConfigError}, nil
	}

	if err := h.sink.WriteMetadata(report.Metadata{
		Dialect:         h.opts.Dialect.URI,
		Implementations: impls,
		Started:         h.opts.now(),
	}); err != nil {
		return Summary{Result: ResultConfigError}, fmt.Errorf("write report metadata: %w", err)
	}

	summary := Summary{Result: ResultOK}
	failures := 0
	for len(live) > 0 && ctx.Err() == nil {
		tc, err := cases.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return summary, err
		}
		summary.Cases++

		h.checkDeclaredDialect(tc)
		if h.opts.SetSchema {
			if tc, err = tc.WithSchemaDialect(h.opts.Dialect.URI); err != nil {
				return summary, fmt.Errorf("set $schema on case %q: %w", tc.Description, err)
			}
		}

		rec, caseFailures, survivors := h.dispatch(ctx, summary.Cases, tc, live)
		if err := h.sink.WriteCase(rec); err != nil {
			return summary, fmt.Errorf("write case record: %w", err)
		}
		live = survivors

		failures += caseFailures
		summary.Failures = failures
		if h.opts.FailFast && caseFailures > 0 {
			summary.DidStopEarly = true
			break
		}
		if h.opts.MaxFail > 0 && failures >= h.opts.MaxFail {
			summary.DidStopEarly = true
			break
		}
	}

	switch {
	case summary.Cases == 0:
		summary.Result = ResultNoInput
	case summary.Failures > 0:
		summary.Result = ResultDataError
	}
	return summary, nil
}

// startAll attempts the handshake on every requested implementation
// concurrently. Implementations that cannot start, speak the wrong protocol
// version, return bad metadata, or do not support the run's dialect are
// dropped with a diagnostic and never appear in the report.
func (h *Harness) startAll(ctx context.Context) ([]Runner, []domain.Implementation) {
	type slot struct {
		runner Runner
		impl   domain.Implementation
	}
	slots := make([]*slot, len(h.runners))

	var g errgroup.Group
	for i, r := range h.runners {
		g.Go(func() error {
			impl, err := r.Start(ctx)
			if err != nil {
				h.log.Warn("implementation dropped at startup",
					zap.String("implementation", r.ID()), zap.Error(err))
				return nil
			}
			if !impl.SupportsDialect(h.opts.Dialect.URI) {
				h.log.Warn("implementation does not support dialect; dropped",
					zap.String("implementation", r.ID()),
					zap.String("dialect", h.opts.Dialect.URI),
					zap.Strings("supported", impl.Dialects))
				_ = r.Stop()
				return nil
			}
			if err := r.SetDialect(ctx, h.opts.Dialect.URI); err != nil {
				h.log.Warn("implementation dropped setting dialect",
					zap.String("implementation", r.ID()), zap.Error(err))
				_ = r.Stop()
				return nil
			}
			slots[i] = &slot{runner: r, impl: impl}
			return nil
		})
	}
	_ = g.Wait()

	var live []Runner
	var impls []domain.Implementation
	for _, s := range slots {
		if s == nil {
			continue
		}
		live = append(live, s.runner)
		impls = append(impls, s.impl)
	}
	return live, impls
}

// dispatch fans one case out to every live session, waits for all of them,
// and assembles the case record. Sessions that crash during this case get
// whole-case errored outcomes and are excluded from the returned survivor
// set; recoverable exchange errors yield errored outcomes but keep the
// session live.
func (h *Harness) dispatch(ctx context.Context, caseSeq int, tc domain.TestCase, live []Runner) (report.CaseRecord, int, []Runner) {
	outcomes := make([][]domain.Outcome, len(live))

	var wg sync.WaitGroup
	for i, r := range live {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes[i] = h.runOne(ctx, r, tc)
		}()
	}
	wg.Wait()

	rec := report.CaseRecord{
		Seq:     caseSeq,
		Case:    tc,
		Results: make([]map[string]domain.Outcome, len(tc.Tests)),
	}
	failures := 0
	for ti := range tc.Tests {
		rec.Results[ti] = make(map[string]domain.Outcome, len(live))
		for i, r := range live {
			o := outcomes[i][ti]
			rec.Results[ti][r.ID()] = o
			if o.Failed() {
				failures++
			}
		}
	}

	survivors := live[:0]
	for _, r := range live {
		if r.Crashed() {
			h.log.Warn("implementation crashed; dropped for remaining cases",
				zap.String("implementation", r.ID()),
				zap.Int("case", caseSeq))
			continue
		}
		survivors = append(survivors, r)
	}
	return rec, failures, survivors
}

// runOne performs one session's exchange for one case and classifies it.
func (h *Harness) runOne(ctx context.Context, r Runner, tc domain.TestCase) []domain.Outcome {
	seq := r.NextSeq()
	res, err := r.Run(ctx, seq, tc)
	if err == nil {
		return classifyResults(tc.Tests, res.Results)
	}

	var seqErr *protocol.SequenceError
	var respErr *protocol.ResponseError
	switch {
	case errors.As(err, &seqErr), errors.As(err, &respErr):
		// One malformed exchange; the session stays live unless the
		// transport itself also died.
		h.log.Warn("exchange failed", zap.String("implementation", r.ID()), zap.Error(err))
		return erroredExchange(len(tc.Tests), err.Error())
	default:
		h.log.Warn("session crashed during case", zap.String("implementation", r.ID()), zap.Error(err))
		return erroredCase(len(tc.Tests), err.Error())
	}
}

// RunCase performs a single exchange for one case on one session and
// classifies the results. Used by smoke-style consumers that bypass the
// full orchestrator.
func RunCase(ctx context.Context, r Runner, tc domain.TestCase) ([]domain.Outcome, error) {
	res, err := r.Run(ctx, r.NextSeq(), tc)
	if err != nil {
		return nil, err
	}
	return classifyResults(tc.Tests, res.Results), nil
}

// checkDeclaredDialect emits an advisory diagnostic when a case schema
// declares a resolvable dialect that differs from the run's selection.
// Unresolvable identifiers are ignored entirely.
func (h *Harness) checkDeclaredDialect(tc domain.TestCase) {
	declared := gjson.GetBytes(tc.Schema, "$schema")
	if !declared.Exists() || declared.Type != gjson.String {
		return
	}
	d, ok := dialect.Lookup(declared.String())
	if !ok {
		return
	}
	if d.URI != h.opts.Dialect.URI {
		h.log.Warn("case declares a different dialect than the run; proceeding with the run's dialect",
			zap.String("case", tc.Description),
			zap.String("declared", d.URI),
			zap.String("selected", h.opts.Dialect.URI))
	}
}
