package source

import (
	"errors"

	"github.com/root-talis/kaiten/revision"
)

// Source lists the revisions of a work directory sorted ascending by timestamp.
type Source interface {
	Revisions() ([]revision.Revision, error)
}

var ErrNotInitialized = errors.New("work directory is not initialized, run setup first")
