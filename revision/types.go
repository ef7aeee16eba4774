package revision

import "time"

type Direction rune

const (
	Down Direction = 'd'
	Up   Direction = 'u'
)

func (d Direction) String() string {
	switch d {
	case Up:
		return "upgrade"
	case Down:
		return "downgrade"
	default:
		return "unknown"
	}
}

// ---

// Revision is a single reversible schema change read from the work directory.
// Upgrade and Downgrade hold the statements split from UpgradeSQL and DowngradeSQL.
type Revision struct {
	ID          string
	Description string
	Timestamp   time.Time

	UpgradeSQL   string
	DowngradeSQL string
	Upgrade      []string
	Downgrade    []string
}

// Statements returns the statements to run in the given direction.
func (r Revision) Statements(dir Direction) []string {
	if dir == Down {
		return r.Downgrade
	}
	return r.Upgrade
}

// Record returns the ledger row written for r once it is applied.
func (r Revision) Record() Record {
	return Record{
		ID:          r.ID,
		Description: r.Description,
		Timestamp:   r.Timestamp,
	}
}

// ---

// Record is one row of the ledger table.
type Record struct {
	ID          string
	Description string
	Timestamp   time.Time
}

// ---

type Status uint

const (
	Pending Status = iota
	Applied
	Missing
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Applied:
		return "applied"
	case Missing:
		return "missing"
	default:
		return "unknown"
	}
}

// State pairs a revision with its reconciled status. Missing states carry only the
// ledger fields since no artifact exists for them.
type State struct {
	Revision
	Status Status
}
