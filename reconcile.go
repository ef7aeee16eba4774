package kaiten

import (
	"sort"

	"github.com/root-talis/kaiten/revision"
)

// Reconciliation is the work directory matched against the ledger.
// Pending and Applied keep the creation order of the work directory.
type Reconciliation struct {
	States  []revision.State
	Pending []revision.Revision
	Applied []revision.Revision

	// Missing holds ledger records without an artifact in the work directory.
	Missing []revision.Record
}

// Reconcile splits all into pending and applied revisions by id membership in
// records. Timestamps never decide membership.
func Reconcile(all []revision.Revision, records []revision.Record) Reconciliation {
	applied := make(map[string]struct{}, len(records))
	for _, record := range records {
		applied[record.ID] = struct{}{}
	}

	known := make(map[string]struct{}, len(all))

	result := Reconciliation{
		States:  make([]revision.State, 0, len(all)),
		Pending: make([]revision.Revision, 0),
		Applied: make([]revision.Revision, 0),
		Missing: make([]revision.Record, 0),
	}

	for _, rev := range all {
		known[rev.ID] = struct{}{}

		status := revision.Pending
		if _, ok := applied[rev.ID]; ok {
			status = revision.Applied
			result.Applied = append(result.Applied, rev)
		} else {
			result.Pending = append(result.Pending, rev)
		}

		result.States = append(result.States, revision.State{Revision: rev, Status: status})
	}

	for _, record := range records {
		if _, ok := known[record.ID]; ok {
			continue
		}

		result.Missing = append(result.Missing, record)
		result.States = append(result.States, revision.State{
			Revision: revision.Revision{
				ID:          record.ID,
				Description: record.Description,
				Timestamp:   record.Timestamp,
			},
			Status: revision.Missing,
		})
	}

	sort.SliceStable(result.Missing, func(i, j int) bool {
		return result.Missing[i].Timestamp.Before(result.Missing[j].Timestamp)
	})

	sort.SliceStable(result.States, func(i, j int) bool {
		return result.States[i].Timestamp.Before(result.States[j].Timestamp)
	})

	return result
}
