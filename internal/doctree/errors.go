package doctree

import (
	"errors"
	"fmt"
)

// ErrInvariant is matched by every *InvariantError.
var ErrInvariant = errors.New("structural invariant violation")

// InvariantError reports a source whose page/line addressing is broken.
// Merging such a source would produce wrong output, so runs abort on it.
type InvariantError struct {
	SourceID string
	Page     int
	Line     int
	Detail   string
}

func (e *InvariantError) Error() string {
	switch {
	case e.SourceID == "":
		return fmt.Sprintf("structural invariant: %s", e.Detail)
	case e.Line > 0:
		return fmt.Sprintf("structural invariant: source %s page %d line %d: %s", e.SourceID, e.Page, e.Line, e.Detail)
	default:
		return fmt.Sprintf("structural invariant: source %s page %d: %s", e.SourceID, e.Page, e.Detail)
	}
}

func (e *InvariantError) Is(target error) bool {
	return target == ErrInvariant
}
