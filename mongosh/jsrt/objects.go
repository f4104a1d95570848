package jsrt

import (
	"github.com/dop251/goja"

	"github.com/mongodb-labs/mongo-web-shell-sub000/mongosh"
)

type method func(call goja.FunctionCall) goja.Value

func (r *Runtime) newFacade(native any, resolver mongosh.MissingResolver, methods map[string]method) *goja.Object {
	obj := r.vm.NewObject()
	r.setNative(obj, native)
	for name, fn := range methods {
		_ = obj.DefineDataProperty(name, r.vm.ToValue((func(goja.FunctionCall) goja.Value)(fn)), goja.FLAG_TRUE, goja.FLAG_TRUE, goja.FLAG_FALSE)
	}
	if resolver != nil {
		resolve := func(call goja.FunctionCall) goja.Value {
			v, err := resolver.ResolveMissing(r.ctx, call.Argument(0).String())
			r.throw(err)
			return r.toJS(v)
		}
		_ = obj.DefineDataPropertySymbol(r.resolve, r.vm.ToValue(resolve), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE)
	}
	return obj
}

func (r *Runtime) stringer(s interface{ String() string }) method {
	return func(goja.FunctionCall) goja.Value {
		return r.vm.ToValue(s.String())
	}
}

// keyword exposes a shell command as a db method for the legacy form that
// keyword swapping produces, for example db.show("collections").
func (r *Runtime) keyword(name string) method {
	return func(call goja.FunctionCall) goja.Value {
		args := make([]string, 0, len(call.Arguments))
		for _, a := range call.Arguments {
			args = append(args, a.String())
		}
		mongosh.RunKeyword(r.ctx, r.shell, name, args)
		return goja.Undefined()
	}
}

func (r *Runtime) newDBObject(db *mongosh.DB) *goja.Object {
	obj := r.newFacade(db, nil, map[string]method{
		"getName":  r.stringer(db),
		"toString": r.stringer(db),
		"getCollectionNames": func(goja.FunctionCall) goja.Value {
			var names []string
			r.throw(db.GetCollectionNames(r.ctx, func(got []string) error {
				names = got
				return nil
			}, false))
			out := make([]any, 0, len(names))
			for _, n := range names {
				out = append(out, n)
			}
			return r.vm.NewArray(out...)
		},
		"getCollection": func(call goja.FunctionCall) goja.Value {
			coll, err := db.Coll(call.Argument(0).String())
			r.throw(err)
			return r.collObject(coll)
		},
		"help": r.keyword("help"),
		"it":   r.keyword("it"),
		"show": r.keyword("show"),
		"use":  r.keyword("use"),
	})
	// Collections resolved once stay on db as plain properties.
	resolve := func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		v, err := db.ResolveMissing(r.ctx, name)
		r.throw(err)
		coll := r.toJS(v)
		_ = obj.Set(name, coll)
		return coll
	}
	_ = obj.DefineDataPropertySymbol(r.resolve, r.vm.ToValue(resolve), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE)
	return obj
}

func (r *Runtime) collObject(coll *mongosh.Coll) *goja.Object {
	if obj, ok := r.colls[coll]; ok {
		return obj
	}
	obj := r.newFacade(coll, coll, map[string]method{
		"getName":  func(goja.FunctionCall) goja.Value { return r.vm.ToValue(coll.Name()) },
		"toString": r.stringer(coll),
		"find": func(call goja.FunctionCall) goja.Value {
			return r.cursorObject(coll.Find(r.arg(call, 0), r.arg(call, 1)))
		},
		"findOne": func(call goja.FunctionCall) goja.Value {
			doc, err := coll.FindOne(r.ctx, r.arg(call, 0), r.arg(call, 1))
			r.throw(err)
			return r.toJS(doc)
		},
		"count": func(call goja.FunctionCall) goja.Value {
			n, err := coll.Count(r.ctx, r.arg(call, 0))
			r.throw(err)
			return r.vm.ToValue(n)
		},
		"insert": func(call goja.FunctionCall) goja.Value {
			r.throw(coll.Insert(r.ctx, r.arg(call, 0)))
			return goja.Undefined()
		},
		"save": func(call goja.FunctionCall) goja.Value {
			r.throw(coll.Save(r.ctx, r.arg(call, 0)))
			return goja.Undefined()
		},
		"remove": func(call goja.FunctionCall) goja.Value {
			r.throw(coll.Remove(r.ctx, r.arg(call, 0), call.Argument(1).ToBoolean()))
			return goja.Undefined()
		},
		"update": func(call goja.FunctionCall) goja.Value {
			r.throw(coll.Update(r.ctx, r.arg(call, 0), r.arg(call, 1), r.arg(call, 2), r.arg(call, 3)))
			return goja.Undefined()
		},
		"drop": func(goja.FunctionCall) goja.Value {
			r.throw(coll.Drop(r.ctx))
			return goja.Undefined()
		},
		"aggregate": func(call goja.FunctionCall) goja.Value {
			resp, err := coll.Aggregate(r.ctx, r.args(call)...)
			r.throw(err)
			return r.toJS(resp)
		},
	})
	r.colls[coll] = obj
	return obj
}

func (r *Runtime) cursorObject(cur *mongosh.Cursor) *goja.Object {
	var obj *goja.Object
	modifier := func(apply func(any) (*mongosh.Cursor, error)) method {
		return func(call goja.FunctionCall) goja.Value {
			_, err := apply(r.arg(call, 0))
			r.throw(err)
			return obj
		}
	}
	obj = r.newFacade(cur, nil, map[string]method{
		"toString": r.stringer(cur),
		"sort":     modifier(cur.Sort),
		"skip":     modifier(cur.Skip),
		"limit":    modifier(cur.Limit),
		"hasNext": func(goja.FunctionCall) goja.Value {
			has, err := cur.HasNext(r.ctx)
			r.throw(err)
			return r.vm.ToValue(has)
		},
		"next": func(goja.FunctionCall) goja.Value {
			v, err := cur.Next(r.ctx)
			r.throw(err)
			return r.toJS(v)
		},
		"toArray": func(goja.FunctionCall) goja.Value {
			return r.cursorArray(obj, cur)
		},
		"count": func(call goja.FunctionCall) goja.Value {
			n, err := cur.Count(r.ctx, call.Argument(0).ToBoolean())
			r.throw(err)
			return r.vm.ToValue(n)
		},
		"size": func(goja.FunctionCall) goja.Value {
			n, err := cur.Size(r.ctx)
			r.throw(err)
			return r.vm.ToValue(n)
		},
		"forEach": func(call goja.FunctionCall) goja.Value {
			fn, ok := goja.AssertFunction(call.Argument(0))
			if !ok {
				panic(r.vm.NewTypeError("forEach requires a function"))
			}
			for {
				has, err := cur.HasNext(r.ctx)
				r.throw(err)
				if !has {
					return goja.Undefined()
				}
				v, err := cur.Next(r.ctx)
				r.throw(err)
				_, err = fn(goja.Undefined(), r.toJS(v))
				r.throw(err)
			}
		},
	})

	// Integer properties index the materialized results; anything else
	// missing is undefined.
	resolve := func(call goja.FunctionCall) goja.Value {
		v, err := cur.ResolveMissing(r.ctx, call.Argument(0).String())
		r.throw(err)
		if v == mongosh.Undefined {
			return goja.Undefined()
		}
		return r.cursorArray(obj, cur).Get(call.Argument(0).String())
	}
	_ = obj.DefineDataPropertySymbol(r.resolve, r.vm.ToValue(resolve), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE)
	return obj
}

// cursorArray returns the script array for the cursor's results, building
// it once so that changes made through one reference show in every other.
func (r *Runtime) cursorArray(obj *goja.Object, cur *mongosh.Cursor) *goja.Object {
	if arr, ok := obj.GetSymbol(r.array).(*goja.Object); ok {
		return arr
	}
	items, err := cur.ToArray(r.ctx)
	r.throw(err)
	arr := r.toJSArray(items)
	_ = obj.DefineDataPropertySymbol(r.array, arr, goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE)
	return arr
}
