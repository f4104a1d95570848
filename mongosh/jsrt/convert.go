package jsrt

import (
	"sort"
	"strconv"
	"time"

	"github.com/dop251/goja"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/mongodb-labs/mongo-web-shell-sub000/mongosh"
)

// nativeRef carries a Go value on a script object under the native symbol.
type nativeRef struct {
	v any
}

func (r *Runtime) setNative(obj *goja.Object, v any) {
	_ = obj.DefineDataPropertySymbol(r.native, r.vm.ToValue(&nativeRef{v: v}), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE)
}

func (r *Runtime) nativeOf(obj *goja.Object) (any, bool) {
	v := obj.GetSymbol(r.native)
	if v == nil {
		return nil, false
	}
	ref, ok := v.Export().(*nativeRef)
	if !ok {
		return nil, false
	}
	return ref.v, true
}

// toGo converts a script value for the engine. Objects become bson.D in
// key order, arrays bson.A, dates bson.DateTime and regular expressions
// bson.Regex. undefined becomes mongosh.Undefined.
func (r *Runtime) toGo(v goja.Value) any {
	switch {
	case v == nil || goja.IsUndefined(v):
		return mongosh.Undefined
	case goja.IsNull(v):
		return nil
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		return v.Export()
	}
	if native, ok := r.nativeOf(obj); ok {
		return native
	}
	if _, ok := goja.AssertFunction(obj); ok {
		return obj.String()
	}
	switch obj.ClassName() {
	case "Array":
		n := obj.Get("length").ToInteger()
		arr := make(bson.A, 0, n)
		for i := range n {
			item := r.toGo(obj.Get(strconv.FormatInt(i, 10)))
			if item == mongosh.Undefined {
				item = nil
			}
			arr = append(arr, item)
		}
		return arr
	case "Date":
		if t, ok := obj.Export().(time.Time); ok {
			return bson.NewDateTimeFromTime(t)
		}
		return nil
	case "RegExp":
		return bson.Regex{Pattern: obj.Get("source").String(), Options: obj.Get("flags").String()}
	case "String", "Number", "Boolean":
		return obj.Export()
	}
	keys := obj.Keys()
	doc := make(bson.D, 0, len(keys))
	for _, k := range keys {
		val := obj.Get(k)
		if goja.IsUndefined(val) {
			continue
		}
		if _, ok := goja.AssertFunction(val); ok {
			continue
		}
		doc = append(doc, bson.E{Key: k, Value: r.toGo(val)})
	}
	return doc
}

// arg returns argument i for the engine, with undefined mapped to nil so
// that omitted arguments count as unset.
func (r *Runtime) arg(call goja.FunctionCall, i int) any {
	v := r.toGo(call.Argument(i))
	if v == mongosh.Undefined {
		return nil
	}
	return v
}

func (r *Runtime) args(call goja.FunctionCall) []any {
	out := make([]any, 0, len(call.Arguments))
	for i := range call.Arguments {
		out = append(out, r.arg(call, i))
	}
	return out
}

// toJS converts an engine value for scripts, keeping document key order.
func (r *Runtime) toJS(v any) goja.Value {
	switch v := v.(type) {
	case nil:
		return goja.Null()
	case goja.Value:
		return v
	case *mongosh.DB:
		return r.db
	case *mongosh.Coll:
		return r.collObject(v)
	case *mongosh.Cursor:
		return r.cursorObject(v)
	case int32:
		return r.vm.ToValue(int64(v))
	case bson.D:
		obj := r.vm.NewObject()
		for _, e := range v {
			_ = obj.Set(e.Key, r.toJS(e.Value))
		}
		return obj
	case bson.M:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		obj := r.vm.NewObject()
		for _, k := range keys {
			_ = obj.Set(k, r.toJS(v[k]))
		}
		return obj
	case bson.A:
		return r.toJSArray(v)
	case []any:
		return r.toJSArray(v)
	case bson.ObjectID:
		return r.objectID(v)
	case bson.DateTime:
		return r.date(int64(v))
	case time.Time:
		return r.date(v.UnixMilli())
	case func():
		return r.vm.ToValue(func(goja.FunctionCall) goja.Value {
			v()
			return goja.Undefined()
		})
	case bson.Regex:
		re, err := r.vm.New(r.vm.Get("RegExp"), r.vm.ToValue(v.Pattern), r.vm.ToValue(v.Options))
		if err != nil {
			return r.vm.ToValue(v.Pattern)
		}
		return re
	}
	switch v.(type) {
	case string, bool, int, int64, uint32, float64:
		return r.vm.ToValue(v)
	}
	if v == mongosh.Undefined {
		return goja.Undefined()
	}
	return r.opaque(v)
}

// opaque wraps a value scripts cannot inspect, such as a Decimal128, so
// that it prints in shell form and converts back unchanged.
func (r *Runtime) opaque(v any) *goja.Object {
	obj := r.vm.NewObject()
	r.setNative(obj, v)
	_ = obj.Set("toString", func(goja.FunctionCall) goja.Value {
		return r.vm.ToValue(mongosh.TojsonLine(v))
	})
	return obj
}

func (r *Runtime) toJSArray(items []any) *goja.Object {
	vals := make([]any, 0, len(items))
	for _, item := range items {
		vals = append(vals, r.toJS(item))
	}
	return r.vm.NewArray(vals...)
}

func (r *Runtime) date(ms int64) goja.Value {
	d, err := r.vm.New(r.vm.Get("Date"), r.vm.ToValue(ms))
	if err != nil {
		return goja.Null()
	}
	return d
}

func (r *Runtime) objectID(oid bson.ObjectID) *goja.Object {
	obj := r.opaque(oid)
	_ = obj.Set("str", oid.Hex())
	return obj
}
