package revision

import (
	"errors"
	"fmt"
)

var (
	ErrMissingHeader    = errors.New("revision header is missing")
	ErrMissingMarker    = errors.New("revision marker is missing")
	ErrInvalidTimestamp = errors.New("revision timestamp is invalid")
	ErrUnterminated     = errors.New("sql text is unterminated")
	ErrInvalidHeader    = errors.New("revision header value is invalid")
)

// ParseError reports a malformed revision artifact.
type ParseError struct {
	File string
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	switch {
	case e.File != "" && e.Line > 0:
		return fmt.Sprintf("failed to parse revision %s:%d: %s", e.File, e.Line, e.Err)
	case e.File != "":
		return fmt.Sprintf("failed to parse revision %s: %s", e.File, e.Err)
	default:
		return fmt.Sprintf("failed to parse revision: %s", e.Err)
	}
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
