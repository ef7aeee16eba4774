package driver

import (
	"context"
	"errors"
	"fmt"

	"github.com/root-talis/kaiten/revision"
)

// Driver keeps the ledger of applied revisions and executes revision scripts
// against a database.
type Driver interface {
	// LedgerExists reports whether the ledger table is present.
	LedgerExists(ctx context.Context) (bool, error)

	// CreateLedger creates the ledger table unless it already exists.
	CreateLedger(ctx context.Context) error

	// Head returns the most recent ledger record, or nil when the ledger is empty.
	Head(ctx context.Context) (*revision.Record, error)

	// Records returns every ledger record ordered by timestamp.
	Records(ctx context.Context) ([]revision.Record, error)

	// Apply runs the upgrade statements of every revision in order. Each
	// revision is committed together with its ledger row in one transaction.
	// It stops at the first failing revision.
	Apply(ctx context.Context, revisions []revision.Revision) error

	// Remove runs the downgrade statements of every revision in order and
	// deletes their ledger rows, one transaction per revision.
	Remove(ctx context.Context, revisions []revision.Revision) error
}

var (
	ErrNotInitialized = errors.New("ledger table does not exist, run init first")
	ErrInvalidLedger  = errors.New("an error has occurred when reading ledger table")
)

// ---

// OperationError describes a revision that failed to apply or roll back.
// Index is the position of the failing statement, or -1 when the failure
// happened outside of the revision's statements (transaction or ledger write).
type OperationError struct {
	Direction revision.Direction
	Revision  revision.Record
	Statement string
	Index     int
	Err       error
}

func (e *OperationError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s of revision %s failed: %s", e.Direction, e.Revision.ID, e.Err)
	}

	return fmt.Sprintf(
		"%s of revision %s failed at statement #%d \"%s\": %s",
		e.Direction, e.Revision.ID, e.Index+1, e.Statement, e.Err,
	)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}
