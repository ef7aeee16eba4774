package main

import (
	"fmt"
	"io"

	"github.com/gosuri/uitable"

	"github.com/root-talis/kaiten"
	"github.com/root-talis/kaiten/revision"
)

const maxColWidth = 60

func newTable() *uitable.Table {
	table := uitable.New()
	table.MaxColWidth = maxColWidth
	table.Wrap = true
	return table
}

func printHistory(w io.Writer, records []revision.Record) {
	if len(records) == 0 {
		fmt.Fprintln(w, "no revisions applied")
		return
	}

	table := newTable()
	table.AddRow("ID", "TIMESTAMP", "DESCRIPTION", "")
	for i, record := range records {
		head := ""
		if i == len(records)-1 {
			head = "(head)"
		}
		table.AddRow(record.ID, revision.FormatTimestamp(record.Timestamp), record.Description, head)
	}

	fmt.Fprintln(w, table)
}

func filterStates(states []revision.State, filter string) []revision.State {
	if filter == "all" {
		return states
	}

	result := make([]revision.State, 0, len(states))
	for _, state := range states {
		if state.Status.String() == filter {
			result = append(result, state)
		}
	}

	return result
}

func printStates(w io.Writer, states []revision.State, head *revision.Record) {
	if len(states) == 0 {
		fmt.Fprintln(w, "no revisions")
		return
	}

	table := newTable()
	table.AddRow("ID", "STATUS", "TIMESTAMP", "DESCRIPTION", "")
	for _, state := range states {
		marker := ""
		if head != nil && head.ID == state.ID {
			marker = "(head)"
		}
		table.AddRow(state.ID, state.Status, revision.FormatTimestamp(state.Timestamp), state.Description, marker)
	}

	fmt.Fprintln(w, table)
}

func printPatches(w io.Writer, states []revision.State) {
	for _, state := range states {
		if state.Status == revision.Missing {
			continue
		}

		fmt.Fprintf(w, "\n== %s %s\n", state.ID, state.Description)
		fmt.Fprintf(w, "-- %s\n%s\n", revision.UpgradeMarker, state.UpgradeSQL)
		fmt.Fprintf(w, "-- %s\n%s\n", revision.DowngradeMarker, state.DowngradeSQL)
	}
}

// printResult lists committed revisions. It is also called on failure, so that
// the revisions committed before the error are reported.
func printResult(w io.Writer, result *kaiten.Result, err error) {
	if result == nil {
		return
	}

	if len(result.Revisions) == 0 {
		if err != nil {
			return
		}
		fmt.Fprintf(w, "nothing to %s\n", result.Direction)
		return
	}

	for _, rev := range result.Revisions {
		fmt.Fprintf(w, "%s %s %s\n", result.Direction, rev.ID, rev.Description)
	}
}
