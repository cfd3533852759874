package core

import (
	"fmt"

	"github.com/git-pkgs/requirements/client"
)

// ErrNotFound is returned when a package or version is not found.
var ErrNotFound = client.ErrNotFound

type (
	HTTPError      = client.HTTPError
	NotFoundError  = client.NotFoundError
	RateLimitError = client.RateLimitError
)

// SyntaxError describes a manifest line that could not be parsed.
type SyntaxError struct {
	Line   int
	Column int // 1-based, 0 when unknown
	Msg    string
}

func (e *SyntaxError) Error() string {
	if e.Column > 0 {
		return fmt.Sprintf("line %d, column %d: %s", e.Line, e.Column, e.Msg)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}
