package batch

import (
	"context"
	"sync"

	"github.com/denismitr/tenants/internal/database"
	"github.com/denismitr/tenants/internal/logger"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

const DefaultConcurrency = 1

type Status int

const (
	Succeeded Status = iota
	KnownFailure
	UnknownFailure
)

func (s Status) String() string {
	switch s {
	case Succeeded:
		return "succeeded"
	case KnownFailure:
		return "known failure"
	case UnknownFailure:
		return "unknown failure"
	default:
		return "unknown status"
	}
}

// Operation is the work done for one tenant
type Operation func(ctx context.Context, tenant string) error

type Outcome struct {
	Tenant string
	Status Status
	Err    error
}

// Report lists an outcome for every tenant the runner attempted, in input order
type Report struct {
	Outcomes []Outcome
}

func (r *Report) Attempted() int {
	return len(r.Outcomes)
}

func (r *Report) Succeeded() []string {
	var result []string
	for _, o := range r.Outcomes {
		if o.Status == Succeeded {
			result = append(result, o.Tenant)
		}
	}

	return result
}

func (r *Report) Failures() []Outcome {
	var result []Outcome
	for _, o := range r.Outcomes {
		if o.Status != Succeeded {
			result = append(result, o)
		}
	}

	return result
}

type Option func(r *Runner)

func IgnoreEmptyTenants(ignore bool) Option {
	return func(r *Runner) {
		r.ignoreEmpty = ignore
	}
}

// Runner applies an operation to a list of tenants with at most
// concurrency operations in flight
type Runner struct {
	concurrency int
	ignoreEmpty bool
	lg          logger.Logger
}

func New(concurrency int, lg logger.Logger, opts ...Option) *Runner {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}

	if lg == nil {
		lg = logger.NullLogger{}
	}

	r := &Runner{concurrency: concurrency, lg: lg}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

func (r *Runner) Concurrency() int {
	return r.concurrency
}

// Run attempts every tenant once. Tenant not found and tenant already exists
// are reported and skipped. Any other error stops dispatching, operations
// already running are allowed to finish with the caller context and the
// first such error is returned.
func (r *Runner) Run(ctx context.Context, tenants []string, op Operation) (*Report, error) {
	if len(tenants) == 0 {
		if !r.ignoreEmpty {
			r.lg.Warnf("no tenants to process, set DB or list tenants in the configuration")
		}

		return &Report{}, nil
	}

	var mu sync.Mutex
	outcomes := make([]*Outcome, len(tenants))

	// gctx only gates dispatching, operations receive ctx
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for i := range tenants {
		if gctx.Err() != nil {
			break
		}

		i, tenant := i, tenants[i]
		g.Go(func() error {
			// a slot may free up right after another tenant failed
			if gctx.Err() != nil {
				return nil
			}

			outcome := r.runOne(ctx, tenant, op)

			mu.Lock()
			outcomes[i] = &outcome
			mu.Unlock()

			if outcome.Status == UnknownFailure {
				return errors.Wrapf(outcome.Err, "tenant [%s]", tenant)
			}

			return nil
		})
	}

	err := g.Wait()

	report := &Report{}
	for _, o := range outcomes {
		if o != nil {
			report.Outcomes = append(report.Outcomes, *o)
		}
	}

	if err == nil && report.Attempted() < len(tenants) && ctx.Err() != nil {
		err = errors.Wrapf(ctx.Err(), "batch interrupted after %d of %d tenants", report.Attempted(), len(tenants))
	}

	return report, err
}

func (r *Runner) runOne(ctx context.Context, tenant string, op Operation) Outcome {
	r.lg.Noticef("[%s] started", tenant)

	err := op(ctx, tenant)
	switch {
	case err == nil:
		return Outcome{Tenant: tenant, Status: Succeeded}
	case database.IsRecoverable(err):
		if errors.Is(err, database.ErrTenantAlreadyExists) {
			r.lg.Noticef("tenant [%s] already exists, skipping", tenant)
		} else {
			r.lg.Noticef("tenant [%s] not found, skipping", tenant)
		}

		return Outcome{Tenant: tenant, Status: KnownFailure, Err: err}
	default:
		return Outcome{Tenant: tenant, Status: UnknownFailure, Err: err}
	}
}
