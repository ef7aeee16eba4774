package kaiten

import (
	"context"
	"fmt"

	"github.com/root-talis/kaiten/driver"
	"github.com/root-talis/kaiten/revision"
)

func (k *kaitenImpl) ensureLedger(ctx context.Context) error {
	exists, err := k.driver.LedgerExists(ctx)
	if err != nil {
		return fmt.Errorf("failed to check ledger: %w", err)
	}

	if !exists {
		return driver.ErrNotInitialized
	}

	return nil
}

func (k *kaitenImpl) records(ctx context.Context) ([]revision.Record, error) {
	records, err := k.driver.Records(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get the list of applied revisions: %w", err)
	}

	return records, nil
}

func (k *kaitenImpl) head(ctx context.Context) (*revision.Record, error) {
	head, err := k.driver.Head(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger head: %w", err)
	}

	return head, nil
}

// reconcile reads the work directory and the ledger. The ledger is checked
// before the work directory is scanned.
func (k *kaitenImpl) reconcile(ctx context.Context) (Reconciliation, error) {
	if err := k.ensureLedger(ctx); err != nil {
		return Reconciliation{}, err
	}

	all, err := k.source.Revisions()
	if err != nil {
		return Reconciliation{}, fmt.Errorf("failed to get the list of available revisions: %w", err)
	}

	records, err := k.records(ctx)
	if err != nil {
		return Reconciliation{}, err
	}

	return Reconcile(all, records), nil
}
