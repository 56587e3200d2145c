// Package soak drives long-running conformance runs: it repeatedly obtains
// status documents from a caller-supplied fetcher at Poisson-spaced intervals,
// matches each one against a schema, accumulates branch coverage in a shared
// ledger, and keeps counters a harness can assert on when the run concludes.
package soak

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"
	"time"

	shapecover "github.com/reoring/shapecover"
	"github.com/reoring/shapecover/codec"
)

// Fetcher produces one decoded status document per call. The network or
// process transport behind it is the caller's concern.
type Fetcher func(ctx context.Context) (any, error)

// Options configures a workload run.
type Options struct {
	// TestDuration bounds the run. Defaults to 10s.
	TestDuration time.Duration
	// RequestsPerSecond is the mean Poisson request rate. Defaults to 0.5.
	RequestsPerSecond float64
	// Severity is stamped on every mismatch issue and selects the log level
	// mismatches are reported at. The zero value Ignore reports at debug
	// level; Config.Options maps an unset config severity to Error.
	Severity shapecover.Severity
}

func (o Options) withDefaults() Options {
	if o.TestDuration <= 0 {
		o.TestDuration = 10 * time.Second
	}
	if o.RequestsPerSecond <= 0 {
		o.RequestsPerSecond = 0.5
	}
	return o
}

// Counter is a named monotonic counter safe for concurrent use.
type Counter struct {
	name string
	v    atomic.Int64
}

func (c *Counter) Name() string { return c.name }
func (c *Counter) Value() int64 { return c.v.Load() }
func (c *Counter) Inc()         { c.v.Add(1) }
func (c *Counter) Add(d int64)  { c.v.Add(d) }

// Metric is one reported measurement.
type Metric struct {
	Name  string
	Value int64
}

// Workload owns one soak run: a schema, a shared coverage ledger, and the
// fetcher producing documents to validate.
type Workload struct {
	schema any
	ledger *shapecover.Ledger
	fetch  Fetcher
	log    *slog.Logger
	opts   Options

	requests   Counter
	replies    Counter
	fetchErrs  Counter
	mismatches Counter
	totalBytes Counter
}

// New builds a workload and registers the schema's coverage requirements in
// the ledger up front, so branches no document ever touches stay visible. A
// malformed schema surfaces here as *shapecover.SchemaError before any
// document is fetched.
func New(schema any, ledger *shapecover.Ledger, fetch Fetcher, log *slog.Logger, opts Options) (*Workload, error) {
	if ledger == nil {
		return nil, errors.New("soak: nil ledger")
	}
	if fetch == nil {
		return nil, errors.New("soak: nil fetcher")
	}
	if log == nil {
		log = slog.Default()
	}
	if err := ledger.RegisterRequirements(schema); err != nil {
		return nil, err
	}
	w := &Workload{
		schema: schema,
		ledger: ledger,
		fetch:  fetch,
		log:    log,
		opts:   opts.withDefaults(),
	}
	w.requests.name = "status requests issued"
	w.replies.name = "status replies received"
	w.fetchErrs.name = "status fetch errors"
	w.mismatches.name = "status schema mismatches"
	w.totalBytes.name = "status reply size sum"
	return w, nil
}

// Ledger returns the shared coverage ledger.
func (w *Workload) Ledger() *shapecover.Ledger { return w.ledger }

// Requests, Replies, FetchErrors, Mismatches, and TotalBytes expose the
// workload counters for harness assertions.
func (w *Workload) Requests() *Counter    { return &w.requests }
func (w *Workload) Replies() *Counter     { return &w.replies }
func (w *Workload) FetchErrors() *Counter { return &w.fetchErrs }
func (w *Workload) Mismatches() *Counter  { return &w.mismatches }
func (w *Workload) TotalBytes() *Counter  { return &w.totalBytes }

// Run fetches and validates documents until TestDuration elapses or the
// parent context is canceled. Reaching the duration is a normal completion;
// validation results are reported through counters and Check, not the return
// value. Only external cancellation and schema malformation return an error.
func (w *Workload) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, w.opts.TestDuration)
	defer cancel()

	for {
		if err := w.poissonWait(ctx); err != nil {
			return w.finish(ctx)
		}
		w.requests.Inc()
		issued := time.Now()
		doc, err := w.fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return w.finish(ctx)
			}
			w.fetchErrs.Inc()
			w.log.Error("status fetch failed", "err", err)
			continue
		}
		w.replies.Inc()
		if data, err := codec.EncodeDocument(doc); err == nil {
			w.totalBytes.Add(int64(len(data)))
			w.log.Debug("status reply", "bytes", len(data), "latency", time.Since(issued))
		}

		ok, iss, err := shapecover.Match(ctx, w.schema, doc,
			shapecover.MatchOpt{Ledger: w.ledger}.WithSeverity(w.opts.Severity))
		if err != nil {
			return err
		}
		if !ok {
			w.mismatches.Inc()
			w.logMismatch(iss)
		}
	}
}

// poissonWait sleeps an exponentially distributed interval so request arrival
// is Poisson at the configured mean rate.
func (w *Workload) poissonWait(ctx context.Context) error {
	delay := time.Duration(rand.ExpFloat64() / w.opts.RequestsPerSecond * float64(time.Second))
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// finish maps end-of-run context state: the duration deadline is success,
// anything else propagates.
func (w *Workload) finish(ctx context.Context) error {
	if err := ctx.Err(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

func (w *Workload) logMismatch(iss shapecover.Issues) {
	level := slog.LevelError
	switch w.opts.Severity {
	case shapecover.Warn:
		level = slog.LevelWarn
	case shapecover.Ignore:
		level = slog.LevelDebug
	}
	w.log.Log(context.Background(), level, "status document failed validation", "issues", iss.Error(), "count", len(iss))
}

// Check reports whether the run saw zero fetch errors and zero mismatching
// documents. Coverage completeness is asserted separately via the ledger.
func (w *Workload) Check() bool {
	return w.fetchErrs.Value() == 0 && w.mismatches.Value() == 0
}

// Metrics returns an end-of-run snapshot, including the derived average reply
// size.
func (w *Workload) Metrics() []Metric {
	var avg int64
	if n := w.replies.Value(); n > 0 {
		avg = w.totalBytes.Value() / n
	}
	return []Metric{
		{Name: w.requests.name, Value: w.requests.Value()},
		{Name: w.replies.name, Value: w.replies.Value()},
		{Name: "average reply size", Value: avg},
		{Name: w.fetchErrs.name, Value: w.fetchErrs.Value()},
		{Name: w.mismatches.name, Value: w.mismatches.Value()},
	}
}
