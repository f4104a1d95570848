package mongosh

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// DB is the shell's database handle. Collections are materialized on first
// reference through ResolveMissing.
type DB struct {
	shell *Shell
	name  string
	colls map[string]*Coll
}

func newDB(sh *Shell, name string) *DB {
	return &DB{shell: sh, name: name, colls: make(map[string]*Coll)}
}

func (d *DB) Name() string {
	return d.name
}

func (d *DB) String() string {
	return d.name
}

func (d *DB) Shell() *Shell {
	return d.shell
}

// Coll returns the collection called name, creating it on first use.
func (d *DB) Coll(name string) (*Coll, error) {
	if c, ok := d.colls[name]; ok {
		return c, nil
	}
	if err := validateCollName(name); err != nil {
		return nil, err
	}
	c := &Coll{db: d, shell: d.shell, name: name}
	d.colls[name] = c
	return c, nil
}

// ResolveMissing turns an unknown property of db into a collection.
func (d *DB) ResolveMissing(ctx context.Context, name string) (any, error) {
	c, err := d.Coll(name)
	if err != nil {
		return nil, err
	}
	slog.DebugContext(ctx, "collection materialized", slog.String("collection", name))
	return c, nil
}

// GetCollectionNames lists the resource's collections in server order.
func (d *DB) GetCollectionNames(ctx context.Context, onSuccess func([]string) error, async bool) error {
	req := getRequest(d.shell.DBURL()+"getCollectionNames", "getCollectionNames", nil)
	return d.shell.Gateway.MakeRequest(ctx, d.shell, req, func(resp Response) error {
		raw := resultArray(resp)
		names := make([]string, 0, len(raw))
		for _, v := range raw {
			names = append(names, fmt.Sprint(v))
		}
		if onSuccess == nil {
			return nil
		}
		return onSuccess(names)
	}, async)
}

func validateCollName(name string) error {
	var msg string
	switch {
	case len(name) > 80:
		msg = "Collection name must be 80 characters or less"
	case strings.ContainsAny(name, "$\x00"):
		msg = `Collection name may not contain $ or \0`
	case strings.HasPrefix(name, "system."):
		msg = "Collection name may not begin with system.*"
	case name == "":
		msg = "Collection name may not be empty"
	default:
		return nil
	}
	return NewShellError(ErrValidation, msg)
}
