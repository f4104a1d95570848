package mongosh

import "context"

// MissingResolver is implemented by objects that synthesize members on
// read. The runtime accessor calls ResolveMissing only for names the object
// does not already have.
type MissingResolver interface {
	ResolveMissing(ctx context.Context, name string) (any, error)
}

var (
	_ MissingResolver = (*DB)(nil)
	_ MissingResolver = (*Coll)(nil)
	_ MissingResolver = (*Cursor)(nil)
)
