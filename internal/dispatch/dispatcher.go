// Package dispatch fans one retrieval query out to every configured backend
// and reconciles the answers into a ranked, bounded context.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/nexus/internal/assemble"
	"github.com/hyperjump/nexus/internal/backend"
	"github.com/hyperjump/nexus/internal/models"
	"github.com/hyperjump/nexus/internal/normalize"
	"github.com/hyperjump/nexus/internal/ranking"
)

// DefaultBackendTimeout bounds each backend call.
const DefaultBackendTimeout = 10 * time.Second

// NoSourcesMarker is the context returned when every backend failed.
const NoSourcesMarker = "No sources available: every search backend failed."

var (
	// ErrNoSources is returned by New when no backend is configured.
	ErrNoSources = errors.New("no search backends configured")
	// ErrBackendPanic wraps a panic recovered from a backend call.
	ErrBackendPanic = errors.New("backend panicked")
)

// Dispatcher runs the retrieval pipeline: fan-out, normalize, rank, assemble.
// Adapters and collaborators are shared across requests and never mutated;
// all per-query state lives on the stack of Dispatch.
type Dispatcher struct {
	adapters     []backend.Adapter
	normalizer   *normalize.Normalizer
	ranker       *ranking.Ranker
	assembler    *assemble.Assembler
	timeout      time.Duration
	defaultLimit int
	logger       *zap.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithBackendTimeout sets the deadline applied to each backend call.
func WithBackendTimeout(d time.Duration) Option {
	return func(disp *Dispatcher) {
		if d > 0 {
			disp.timeout = d
		}
	}
}

// WithDefaultLimit sets the per-backend result count used when a query has none.
func WithDefaultLimit(n int) Option {
	return func(disp *Dispatcher) {
		if n > 0 {
			disp.defaultLimit = n
		}
	}
}

// WithLogger sets a logger for state transitions and backend failures.
func WithLogger(l *zap.Logger) Option {
	return func(disp *Dispatcher) {
		if l != nil {
			disp.logger = l
		}
	}
}

// New creates a Dispatcher over adapters, queried in the given order.
// Nil collaborators take their defaults.
func New(adapters []backend.Adapter, n *normalize.Normalizer, r *ranking.Ranker, a *assemble.Assembler, opts ...Option) (*Dispatcher, error) {
	if len(adapters) == 0 {
		return nil, ErrNoSources
	}
	d := &Dispatcher{
		adapters:     adapters,
		normalizer:   n,
		ranker:       r,
		assembler:    a,
		timeout:      DefaultBackendTimeout,
		defaultLimit: models.DefaultLimit,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.normalizer == nil {
		d.normalizer = normalize.New(normalize.WithLogger(d.logger))
	}
	if d.ranker == nil {
		d.ranker = ranking.NewRanker(nil)
	}
	if d.assembler == nil {
		d.assembler = assemble.New(assemble.Options{})
	}
	return d, nil
}

// Backends returns the configured adapters' names in query order.
func (d *Dispatcher) Backends() []string {
	names := make([]string, len(d.adapters))
	for i, a := range d.adapters {
		names[i] = a.Name()
	}
	return names
}

type branchResult struct {
	index   int
	raws    []models.RawResult
	err     error
	elapsed time.Duration
}

// Dispatch answers one query. Backend failures never fail the dispatch: a
// failed backend is reported as skipped, and when every backend fails the
// retrieval is returned in the failed state with NoSourcesMarker as context.
// Only an invalid query returns an error.
func (d *Dispatcher) Dispatch(ctx context.Context, q models.RetrievalQuery) (*models.Retrieval, error) {
	start := time.Now()
	if q.Limit <= 0 {
		q.Limit = d.defaultLimit
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	ret := &models.Retrieval{Query: q.Query, State: models.StateIdle}
	d.transition(ret, models.StateDispatching)
	results := d.fanOut(ctx, q)

	var (
		raws    []models.RawResult
		queried []models.SourceType
	)
	ret.Branches = make([]models.BranchReport, len(d.adapters))
	for i, res := range results {
		a := d.adapters[i]
		report := models.BranchReport{
			Backend:    a.Name(),
			SourceType: a.SourceType(),
			ElapsedMs:  res.elapsed.Milliseconds(),
		}
		if res.err != nil {
			report.State = models.BranchSkipped
			report.Error = res.err.Error()
			d.logger.Warn("backend skipped",
				zap.String("backend", a.Name()),
				zap.Duration("elapsed", res.elapsed),
				zap.Error(res.err))
		} else {
			report.State = models.BranchSucceeded
			report.Count = len(res.raws)
			raws = append(raws, res.raws...)
			queried = append(queried, a.SourceType())
		}
		ret.Branches[i] = report
	}

	if len(queried) == 0 {
		d.transition(ret, models.StateFailed)
		ret.Context = NoSourcesMarker
		ret.QueryTime = time.Since(start).Milliseconds()
		d.logger.Warn("no sources available", zap.String("query", q.Query))
		return ret, nil
	}

	d.transition(ret, models.StateNormalizing)
	docs := d.normalizer.Normalize(raws)

	d.transition(ret, models.StateRanking)
	ranked := d.ranker.Rank(docs)

	d.transition(ret, models.StateAssembling)
	assembled := d.assembler.Assemble(ranked, queried)
	ret.Context = assembled.Context
	ret.Documents = assembled.Included
	ret.Omitted = assembled.Omitted

	d.transition(ret, models.StateDone)
	ret.QueryTime = time.Since(start).Milliseconds()
	d.logger.Debug("retrieval done",
		zap.Int("raw", len(raws)),
		zap.Int("documents", len(docs)),
		zap.Int("included", len(ret.Documents)),
		zap.Int("omitted", ret.Omitted),
		zap.Int64("query_time_ms", ret.QueryTime))
	return ret, nil
}

// fanOut calls every adapter concurrently. Results are indexed by adapter
// position so completion order never affects the merged output.
func (d *Dispatcher) fanOut(ctx context.Context, q models.RetrievalQuery) []branchResult {
	ch := make(chan branchResult, len(d.adapters))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(len(d.adapters))
	for i, a := range d.adapters {
		eg.Go(func() error {
			start := time.Now()
			raws, err := d.callAdapter(egCtx, a, q)
			ch <- branchResult{index: i, raws: raws, err: err, elapsed: time.Since(start)}
			return nil
		})
	}
	_ = eg.Wait()
	close(ch)

	results := make([]branchResult, len(d.adapters))
	for res := range ch {
		results[res.index] = res
	}
	return results
}

// callAdapter runs one backend call under its own deadline. A backend that
// ignores cancellation is abandoned when the deadline passes; its late result
// is discarded.
func (d *Dispatcher) callAdapter(ctx context.Context, a backend.Adapter, q models.RetrievalQuery) ([]models.RawResult, error) {
	bctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	type outcome struct {
		raws []models.RawResult
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- outcome{err: fmt.Errorf("%w: %v", ErrBackendPanic, p)}
			}
		}()
		raws, err := a.Search(bctx, q.Query, q.Filter(), q.Limit)
		done <- outcome{raws: raws, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			return nil, o.err
		}
		return stamp(o.raws, a.SourceType(), q.Limit), nil
	case <-bctx.Done():
		return nil, fmt.Errorf("%s: %w", a.Name(), bctx.Err())
	}
}

// stamp returns a copy of raws, at most limit long, tagged with the adapter's
// source type. Adapters may hand back cached slices shared across requests.
func stamp(raws []models.RawResult, st models.SourceType, limit int) []models.RawResult {
	out := make([]models.RawResult, min(len(raws), limit))
	copy(out, raws)
	for i := range out {
		out[i].SourceType = st
	}
	return out
}

func (d *Dispatcher) transition(ret *models.Retrieval, to models.DispatchState) {
	d.logger.Debug("dispatch state",
		zap.String("from", string(ret.State)),
		zap.String("to", string(to)))
	ret.State = to
}
