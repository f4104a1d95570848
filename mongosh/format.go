package mongosh

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type undefined struct{}

func (undefined) String() string { return "undefined" }

// Undefined stands for the script value undefined on the Go side.
var Undefined any = undefined{}

// Tojson renders v the way the shell's tojson does: one key per line,
// indented with tabs.
func Tojson(v any) string {
	return tojson(v, "", false)
}

// TojsonLine renders v on a single line, as printed results are shown.
func TojsonLine(v any) string {
	return tojson(v, "", true)
}

func tojson(v any, indent string, nolint bool) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case undefined:
		return "undefined"
	case string:
		return quoteString(v)
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return formatNumber(v)
	case bson.ObjectID:
		return `ObjectId("` + v.Hex() + `")`
	case bson.DateTime:
		return isoDate(v.Time())
	case time.Time:
		return isoDate(v)
	case bson.D:
		return tojsonObject(v, indent, nolint)
	case bson.M:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		doc := make(bson.D, 0, len(v))
		for _, k := range keys {
			doc = append(doc, bson.E{Key: k, Value: v[k]})
		}
		return tojsonObject(doc, indent, nolint)
	case bson.A:
		return tojsonArray(v, indent, nolint)
	case []any:
		return tojsonArray(v, indent, nolint)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func tojsonObject(doc bson.D, indent string, nolint bool) string {
	lineEnding, tab := "\n", "\t"
	if nolint {
		lineEnding, tab = " ", ""
	}
	var b strings.Builder
	b.WriteString("{" + lineEnding)
	inner := indent + tab
	if len(doc) == 0 {
		b.WriteString(inner + lineEnding)
	}
	for i, e := range doc {
		b.WriteString(inner + `"` + e.Key + `" : ` + tojson(e.Value, inner, nolint))
		if i < len(doc)-1 {
			b.WriteString(",")
		}
		b.WriteString(lineEnding)
	}
	b.WriteString(indent + "}")
	return b.String()
}

func tojsonArray(arr []any, indent string, nolint bool) string {
	if len(arr) == 0 {
		return "[ ]"
	}
	lineEnding := "\n"
	if nolint {
		lineEnding, indent = " ", ""
	}
	inner := indent + "\t"
	if nolint {
		inner = ""
	}
	var b strings.Builder
	b.WriteString("[" + lineEnding)
	for i, v := range arr {
		b.WriteString(inner + tojson(v, inner, nolint))
		if i < len(arr)-1 {
			b.WriteString("," + lineEnding)
		}
	}
	b.WriteString(lineEnding + indent + "]")
	return b.String()
}

func quoteString(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(&b, `\u%04x`, r)
				continue
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// formatNumber prints a float the way script number-to-string conversion
// does for the common cases: integral values without a fraction, plain
// decimals between 1e-6 and 1e21, exponent form otherwise.
func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}
	abs := math.Abs(f)
	if abs >= 1e-6 && abs < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	s := strconv.FormatFloat(f, 'e', -1, 64)
	mant, exp, _ := strings.Cut(s, "e")
	sign := exp[0]
	exp = strings.TrimLeft(exp[1:], "0")
	return mant + "e" + string(sign) + exp
}

func isoDate(t time.Time) string {
	t = t.UTC()
	layout := "2006-01-02T15:04:05"
	if t.Nanosecond()/int(time.Millisecond) != 0 {
		layout += ".000"
	}
	return `ISODate("` + t.Format(layout) + `Z")`
}
