package kaiten

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/root-talis/kaiten/driver"
	"github.com/root-talis/kaiten/revision"
	"github.com/root-talis/kaiten/source"
)

// ---

type Kaiten interface {
	// Init creates the ledger table. Calling it again is a no-op.
	Init(ctx context.Context) error

	// Status reconciles the work directory with the ledger.
	Status(ctx context.Context) (*Status, error)

	// History returns the ledger records ordered by timestamp.
	History(ctx context.Context) ([]revision.Record, error)

	// Upgrade applies pending revisions oldest first.
	Upgrade(ctx context.Context, options UpgradeOptions) (*Result, error)

	// Rollback reverts applied revisions newest first.
	Rollback(ctx context.Context, options RollbackOptions) (*Result, error)
}

type Status struct {
	Reconciliation
	Head *revision.Record
}

type UpgradeOptions struct {
	// Count limits the number of revisions to apply. Zero applies all of them.
	Count int
}

type RollbackOptions struct {
	// Count is the number of revisions to revert. Zero reverts one.
	Count int

	// Target reverts every applied revision down to and including this id.
	// It cannot be combined with Count.
	Target string
}

// Result lists the revisions that were committed, in execution order. It is
// returned along with the error when an operation stops half way.
type Result struct {
	Direction revision.Direction
	Revisions []revision.Revision
}

type Option func(*kaitenImpl)

func WithLogger(logger zerolog.Logger) Option {
	return func(k *kaitenImpl) {
		k.logger = logger
	}
}

// ---

type kaitenImpl struct {
	source source.Source
	driver driver.Driver
	logger zerolog.Logger
}

// ---

func New(source source.Source, driver driver.Driver, options ...Option) Kaiten {
	k := &kaitenImpl{
		source: source,
		driver: driver,
		logger: zerolog.Nop(),
	}

	for _, option := range options {
		option(k)
	}

	return k
}

// ---

func (k *kaitenImpl) Init(ctx context.Context) error {
	if err := k.driver.CreateLedger(ctx); err != nil {
		return fmt.Errorf("failed to initialize ledger: %w", err)
	}

	k.logger.Info().Msg("ledger initialized")

	return nil
}

func (k *kaitenImpl) Status(ctx context.Context) (*Status, error) {
	reconciliation, err := k.reconcile(ctx)
	if err != nil {
		return nil, err
	}

	head, err := k.head(ctx)
	if err != nil {
		return nil, err
	}

	return &Status{
		Reconciliation: reconciliation,
		Head:           head,
	}, nil
}

func (k *kaitenImpl) History(ctx context.Context) ([]revision.Record, error) {
	if err := k.ensureLedger(ctx); err != nil {
		return nil, err
	}

	return k.records(ctx)
}

func (k *kaitenImpl) Upgrade(ctx context.Context, options UpgradeOptions) (*Result, error) {
	if options.Count < 0 {
		return nil, fmt.Errorf("%w: count must not be negative, got %d", ErrInvalidOptions, options.Count)
	}

	reconciliation, err := k.reconcile(ctx)
	if err != nil {
		return nil, err
	}

	selected := reconciliation.Pending
	if options.Count > 0 && options.Count < len(selected) {
		selected = selected[:options.Count]
	}

	return k.run(ctx, selected, revision.Up)
}

func (k *kaitenImpl) Rollback(ctx context.Context, options RollbackOptions) (*Result, error) {
	if options.Count < 0 {
		return nil, fmt.Errorf("%w: count must not be negative, got %d", ErrInvalidOptions, options.Count)
	}
	if options.Count > 0 && options.Target != "" {
		return nil, fmt.Errorf("%w: count and target are mutually exclusive", ErrInvalidOptions)
	}

	reconciliation, err := k.reconcile(ctx)
	if err != nil {
		return nil, err
	}

	applied := reconciliation.Applied
	newestFirst := make([]revision.Revision, 0, len(applied))
	for i := len(applied) - 1; i >= 0; i-- {
		newestFirst = append(newestFirst, applied[i])
	}

	selected, err := selectForRollback(newestFirst, options)
	if err != nil {
		return nil, err
	}

	return k.run(ctx, selected, revision.Down)
}

func selectForRollback(newestFirst []revision.Revision, options RollbackOptions) ([]revision.Revision, error) {
	if options.Target != "" {
		for i, rev := range newestFirst {
			if rev.ID == options.Target {
				return newestFirst[:i+1], nil
			}
		}

		return nil, fmt.Errorf("%w: %s", ErrUnknownRevision, options.Target)
	}

	count := options.Count
	if count == 0 {
		count = 1
	}
	if count > len(newestFirst) {
		count = len(newestFirst)
	}

	return newestFirst[:count], nil
}

// run checks every selected revision before the first write, then executes them
// one revision at a time so that the result names exactly what was committed.
func (k *kaitenImpl) run(ctx context.Context, selected []revision.Revision, dir revision.Direction) (*Result, error) {
	result := &Result{
		Direction: dir,
		Revisions: make([]revision.Revision, 0, len(selected)),
	}

	if err := preflight(selected, dir); err != nil {
		return result, err
	}

	if len(selected) == 0 {
		k.logger.Info().Str("direction", dir.String()).Msg("nothing to do")
		return result, nil
	}

	k.logger.Info().Str("direction", dir.String()).Int("count", len(selected)).Msg("starting")

	for _, rev := range selected {
		batch := []revision.Revision{rev}

		var err error
		if dir == revision.Up {
			err = k.driver.Apply(ctx, batch)
		} else {
			err = k.driver.Remove(ctx, batch)
		}

		if err != nil {
			k.logger.Error().
				Err(err).
				Str("direction", dir.String()).
				Str("revision", rev.ID).
				Int("count", len(result.Revisions)).
				Msg("stopped")
			return result, err
		}

		k.logger.Info().
			Str("direction", dir.String()).
			Str("revision", rev.ID).
			Str("description", rev.Description).
			Msg("done")

		result.Revisions = append(result.Revisions, rev)
	}

	return result, nil
}
