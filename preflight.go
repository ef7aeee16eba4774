package kaiten

import (
	"fmt"
	"strings"

	"github.com/root-talis/kaiten/revision"
)

type PreflightViolation struct {
	ID          string
	Description string

	// Asymmetric is set when the revision has a script for the opposite direction.
	Asymmetric bool
}

// PreflightError lists every selected revision that has no statements for the
// requested direction. Nothing has been written to the database when it is returned.
type PreflightError struct {
	Direction  revision.Direction
	Violations []PreflightViolation
}

func (e *PreflightError) Error() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s aborted, %d revision(s) have no %s script:", e.Direction, len(e.Violations), e.Direction)
	for _, violation := range e.Violations {
		fmt.Fprintf(&b, " %s (%s)", violation.ID, violation.Description)
		if violation.Asymmetric {
			b.WriteString(" [asymmetric]")
		}
	}

	return b.String()
}

func preflight(revisions []revision.Revision, dir revision.Direction) error {
	opposite := revision.Down
	if dir == revision.Down {
		opposite = revision.Up
	}

	var violations []PreflightViolation
	for _, rev := range revisions {
		if len(rev.Statements(dir)) > 0 {
			continue
		}

		violations = append(violations, PreflightViolation{
			ID:          rev.ID,
			Description: rev.Description,
			Asymmetric:  len(rev.Statements(opposite)) > 0,
		})
	}

	if len(violations) == 0 {
		return nil
	}

	return &PreflightError{
		Direction:  dir,
		Violations: violations,
	}
}
