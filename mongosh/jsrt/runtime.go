// Package jsrt evaluates rewritten shell input on goja. Scripts see db,
// collections and cursors as plain objects whose methods call into the
// mongosh engine; unknown members resolve through __get.
package jsrt

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/dop251/goja"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/mongodb-labs/mongo-web-shell-sub000/mongosh"
	"github.com/mongodb-labs/mongo-web-shell-sub000/mongosh/rewrite"
)

// Runtime binds one goja runtime to one shell. Like the shell it is not
// safe for concurrent use.
//
//nolint:govet // fieldalignment: readability preferred
type Runtime struct {
	vm    *goja.Runtime
	shell *mongosh.Shell
	ctx   context.Context

	native  *goja.Symbol
	resolve *goja.Symbol
	array   *goja.Symbol

	db    *goja.Object
	colls map[*mongosh.Coll]*goja.Object
}

func New(sh *mongosh.Shell) (*Runtime, error) {
	r := &Runtime{
		vm:      goja.New(),
		shell:   sh,
		ctx:     context.Background(),
		native:  goja.NewSymbol("native"),
		resolve: goja.NewSymbol("resolveMissing"),
		array:   goja.NewSymbol("array"),
		colls:   make(map[*mongosh.Coll]*goja.Object),
	}
	r.db = r.newDBObject(sh.DB)

	dbQuery := r.vm.NewObject()
	if err := dbQuery.Set("shellBatchSize", sh.DefaultBatchSize); err != nil {
		return nil, err
	}
	sh.SetBatchSizeSource(func() any {
		return r.toGo(dbQuery.Get("shellBatchSize"))
	})

	globals := map[string]any{
		"db":                 r.db,
		"DBQuery":            dbQuery,
		rewrite.AccessorName: r.get,
		"print":              r.print,
		"tojson":             r.tojson,
		"ObjectId":           r.newObjectID,
		"ISODate":            r.newISODate,
	}
	for name, v := range globals {
		if err := r.vm.Set(name, v); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// VM exposes the underlying runtime, mainly for tests.
func (r *Runtime) VM() *goja.Runtime {
	return r.vm
}

// throw raises err inside the running script. Engine errors travel as
// GoError objects so that callers of Eval can still match them with
// errors.As.
func (r *Runtime) throw(err error) {
	if err == nil {
		return
	}
	var ex *goja.Exception
	if errors.As(err, &ex) {
		panic(ex)
	}
	panic(r.vm.NewGoError(err))
}

// get is the member accessor every rewritten member read goes through.
func (r *Runtime) get(call goja.FunctionCall) goja.Value {
	target, prop := call.Argument(0), call.Argument(1)
	if goja.IsUndefined(target) || goja.IsNull(target) {
		panic(r.vm.NewTypeError("Cannot read property '%s' of %s", prop.String(), target.String()))
	}
	obj := target.ToObject(r.vm)

	var val goja.Value
	sym, isSym := prop.(*goja.Symbol)
	if isSym {
		val = obj.GetSymbol(sym)
	} else {
		val = obj.Get(prop.String())
	}
	if val == nil && !isSym {
		if resolver, ok := goja.AssertFunction(obj.GetSymbol(r.resolve)); ok {
			res, err := resolver(obj, prop)
			r.throw(err)
			return res
		}
	}
	if val == nil {
		return goja.Undefined()
	}

	fn, ok := val.(*goja.Object)
	if !ok {
		return val
	}
	if _, callable := goja.AssertFunction(fn); !callable {
		return val
	}
	bind, ok := goja.AssertFunction(fn.Get("bind"))
	if !ok {
		return val
	}
	bound, err := bind(fn, target)
	r.throw(err)
	return bound
}

func (r *Runtime) print(call goja.FunctionCall) goja.Value {
	parts := make([]string, 0, len(call.Arguments))
	for _, a := range call.Arguments {
		parts = append(parts, r.display(a))
	}
	r.shell.Print(strings.Join(parts, " "))
	return goja.Undefined()
}

func (r *Runtime) tojson(call goja.FunctionCall) goja.Value {
	return r.vm.ToValue(mongosh.Tojson(r.toGo(call.Argument(0))))
}

// display renders a value the way results are printed: strings as they
// are, everything else in single line tojson form.
func (r *Runtime) display(v goja.Value) string {
	if s, ok := v.Export().(string); ok && !isObject(v) {
		return s
	}
	return mongosh.TojsonLine(r.toGo(v))
}

func isObject(v goja.Value) bool {
	_, ok := v.(*goja.Object)
	return ok
}

func (r *Runtime) newObjectID(call goja.ConstructorCall) *goja.Object {
	if goja.IsUndefined(call.Argument(0)) {
		return r.objectID(bson.NewObjectID())
	}
	oid, err := bson.ObjectIDFromHex(call.Argument(0).String())
	if err != nil {
		panic(r.vm.NewTypeError("invalid ObjectId: %s", call.Argument(0).String()))
	}
	return r.objectID(oid)
}

func (r *Runtime) newISODate(call goja.ConstructorCall) *goja.Object {
	t := time.Now()
	if arg := call.Argument(0); !goja.IsUndefined(arg) {
		parsed, err := parseISODate(arg.String())
		if err != nil {
			panic(r.vm.NewTypeError("invalid ISO date: %s", arg.String()))
		}
		t = parsed
	}
	d, ok := r.date(t.UnixMilli()).(*goja.Object)
	if !ok {
		panic(r.vm.NewTypeError("invalid ISO date: %s", call.Argument(0).String()))
	}
	return d
}

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

func parseISODate(s string) (time.Time, error) {
	var firstErr error
	for _, layout := range isoLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

// Eval runs one line of shell input. Each top-level statement runs on its
// own; a cursor result prints its first batch and any other defined result
// is printed. Pending continuations are drained after every statement so
// later statements observe the effects of earlier ones.
func (r *Runtime) Eval(ctx context.Context, input string) error {
	r.ctx = ctx
	defer func() { r.ctx = context.Background() }()

	src, err := rewrite.SwapMemberAccesses(input)
	if err != nil {
		legacy := rewrite.SwapKeywords(input)
		if legacy == input {
			return err
		}
		if src, err = rewrite.SwapMemberAccesses(legacy); err != nil {
			return err
		}
	}
	stmts, err := rewrite.SplitStatements(src)
	if err != nil {
		return err
	}

	stop := context.AfterFunc(ctx, func() {
		r.vm.Interrupt(ctx.Err())
	})
	defer func() {
		stop()
		r.vm.ClearInterrupt()
	}()

	for _, stmt := range stmts {
		slog.DebugContext(ctx, "eval", slog.String("statement", stmt))
		val, err := r.vm.RunString(stmt)
		if err == nil {
			err = r.show(ctx, val)
		}
		if drainErr := r.shell.Loop.Drain(ctx); err == nil {
			err = drainErr
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Runtime) show(ctx context.Context, val goja.Value) error {
	if val == nil || goja.IsUndefined(val) {
		return nil
	}
	if obj, ok := val.(*goja.Object); ok {
		if native, ok := r.nativeOf(obj); ok {
			if cur, ok := native.(*mongosh.Cursor); ok {
				return cur.PrintBatch(ctx)
			}
		}
	}
	r.shell.Print(r.display(val))
	return nil
}
