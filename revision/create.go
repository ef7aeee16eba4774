package revision

import (
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"
)

const (
	idLength  = 12
	Extension = ".sql"
)

// NewID returns a random opaque revision id: the trailing hex digits of a v4 uuid.
func NewID() string {
	u := uuid.New()
	return hex.EncodeToString(u[len(u)-idLength/2:])
}

// Create returns a new revision with empty scripts stamped with the clock's time.
// The description is folded onto a single line.
func Create(clk clock.Clock, description string) Revision {
	return Revision{
		ID:          NewID(),
		Description: strings.Join(strings.Fields(description), " "),
		Timestamp:   clk.Now().UTC().Truncate(time.Microsecond),
	}
}

// FileName returns the artifact file name of rev: its id followed by its
// description with blanks replaced by underscores.
func FileName(rev Revision) string {
	name := strings.Join(strings.Fields(rev.Description), "_")
	name = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == 0 {
			return '_'
		}
		return r
	}, name)

	return rev.ID + "_" + name + Extension
}
