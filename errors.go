package kaiten

import "errors"

var (
	ErrInvalidOptions  = errors.New("invalid options")
	ErrUnknownRevision = errors.New("revision is not applied")
)
