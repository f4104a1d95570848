package mws

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// fakeStore keeps everything in memory. Queries match on equality of top
// level fields and updates understand $set or replacement.
type fakeStore struct {
	mu      sync.Mutex
	clients []Client
	colls   map[string][]bson.D
	sizes   map[string]int64
}

var _ Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{colls: map[string][]bson.D{}, sizes: map[string]int64{}}
}

func (f *fakeStore) FindClient(_ context.Context, sessionID string) (*Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.clients {
		if c.SessionID == sessionID {
			return &c, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) CreateClient(_ context.Context, c Client) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clients = append(f.clients, c)
	return nil
}

func (f *fakeStore) HasAccess(_ context.Context, resID, sessionID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.ContainsFunc(f.clients, func(c Client) bool {
		return c.ResID == resID && c.SessionID == sessionID
	}), nil
}

func (f *fakeStore) Touch(_ context.Context, resID, sessionID string, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.clients {
		if f.clients[i].ResID == resID && f.clients[i].SessionID == sessionID {
			f.clients[i].Timestamp = now
		}
	}
	return nil
}

func (f *fakeStore) ExpiredClients(_ context.Context, before time.Time) ([]Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Client
	for _, c := range f.clients {
		if c.Timestamp.Before(before) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) RemoveClient(_ context.Context, c Client) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clients = slices.DeleteFunc(f.clients, func(o Client) bool {
		return o.ResID == c.ResID && o.SessionID == c.SessionID
	})
	return nil
}

func (f *fakeStore) AddCollection(_ context.Context, resID, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.clients {
		if f.clients[i].ResID == resID && !slices.Contains(f.clients[i].Collections, name) {
			f.clients[i].Collections = append(f.clients[i].Collections, name)
		}
	}
	return nil
}

func (f *fakeStore) RemoveCollection(_ context.Context, resID, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.clients {
		if f.clients[i].ResID == resID {
			f.clients[i].Collections = slices.DeleteFunc(f.clients[i].Collections, func(n string) bool { return n == name })
		}
	}
	return nil
}

func (f *fakeStore) CollectionNames(_ context.Context, resID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.clients {
		if c.ResID == resID {
			return slices.Clone(c.Collections), nil
		}
	}
	return []string{}, nil
}

func matches(doc bson.D, query any) bool {
	q, _ := query.(bson.D)
	for _, cond := range q {
		v, ok := lookupOK(doc, cond.Key)
		if !ok || !cmp.Equal(v, cond.Value) {
			return false
		}
	}
	return true
}

func (f *fakeStore) matching(coll string, query any) []int {
	var idx []int
	for i, d := range f.colls[coll] {
		if matches(d, query) {
			idx = append(idx, i)
		}
	}
	return idx
}

func (f *fakeStore) Find(_ context.Context, coll string, query any, opts FindOptions) ([]bson.D, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []bson.D{}
	for _, i := range f.matching(coll, query) {
		out = append(out, f.colls[coll][i])
	}
	out = out[min(int(opts.Skip), len(out)):]
	if opts.Limit > 0 && int(opts.Limit) < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (f *fakeStore) Insert(_ context.Context, coll string, docs []any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range docs {
		doc, _ := d.(bson.D)
		f.colls[coll] = append(f.colls[coll], doc)
		n, _ := documentSize(doc)
		f.sizes[coll] += n
	}
	return nil
}

func (f *fakeStore) Save(ctx context.Context, coll string, doc bson.D) error {
	if id, ok := lookupOK(doc, "_id"); ok {
		f.mu.Lock()
		for i, d := range f.colls[coll] {
			if v, _ := lookupOK(d, "_id"); cmp.Equal(v, id) {
				f.colls[coll][i] = doc
				f.mu.Unlock()
				return nil
			}
		}
		f.mu.Unlock()
	}
	return f.Insert(ctx, coll, []any{doc})
}

func (f *fakeStore) Remove(_ context.Context, coll string, constraint any, justOne bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.matching(coll, constraint)
	if justOne && len(idx) > 1 {
		idx = idx[:1]
	}
	for i := len(idx) - 1; i >= 0; i-- {
		f.colls[coll] = slices.Delete(f.colls[coll], idx[i], idx[i]+1)
	}
	return nil
}

func (f *fakeStore) Update(_ context.Context, coll string, query, update any, upsert, multi bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, _ := update.(bson.D)
	apply := func(doc bson.D) bson.D {
		if !hasOperators(u) {
			return u
		}
		set, _ := lookup(u, "$set").(bson.D)
		out := slices.Clone(doc)
		for _, e := range set {
			replaced := false
			for i := range out {
				if out[i].Key == e.Key {
					out[i].Value, replaced = e.Value, true
				}
			}
			if !replaced {
				out = append(out, e)
			}
		}
		return out
	}
	idx := f.matching(coll, query)
	if len(idx) == 0 && upsert {
		q, _ := query.(bson.D)
		f.colls[coll] = append(f.colls[coll], apply(slices.Clone(q)))
		return nil
	}
	if !multi && len(idx) > 1 {
		idx = idx[:1]
	}
	for _, i := range idx {
		f.colls[coll][i] = apply(f.colls[coll][i])
	}
	return nil
}

func (f *fakeStore) Count(_ context.Context, coll string, query any, skip, limit int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := max(int64(len(f.matching(coll, query)))-skip, 0)
	if limit > 0 {
		n = min(n, limit)
	}
	return n, nil
}

func (f *fakeStore) Aggregate(_ context.Context, coll string, _ any) ([]bson.D, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.colls[coll]), nil
}

func (f *fakeStore) Drop(_ context.Context, coll string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.colls, coll)
	delete(f.sizes, coll)
	return nil
}

func (f *fakeStore) CollectionSize(_ context.Context, coll string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sizes[coll], nil
}

func (f *fakeStore) Close(context.Context) error {
	return nil
}

func (f *fakeStore) clientList() []Client {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.clients)
}

func (f *fakeStore) docs(coll string) []bson.D {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.colls[coll])
}

func (f *fakeStore) collCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.colls)
}
