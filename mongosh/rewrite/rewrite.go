// Package rewrite turns shell input into source the evaluation runtime can
// run: member reads become accessor calls, shell keywords become db method
// calls, and multi-statement input is split along parser ranges.
package rewrite

import (
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/parser"
)

// AccessorName is the global function member reads are routed through.
const AccessorName = "__get"

func parse(source string) (*ast.Program, error) {
	prog, err := parser.ParseFile(nil, "", source, 0, parser.WithDisableSourceMaps)
	if err != nil {
		return nil, newParseError(err)
	}
	return prog, nil
}

// SwapMemberAccesses rewrites every member read obj.prop or obj[expr] in
// source into __get(obj, "prop") or __get(obj, expr). Assignment targets,
// update and delete operands, for-in/of targets and destructuring targets
// keep their member syntax, but their object sub-expressions are rewritten.
// Text outside rewritten nodes is passed through byte for byte.
func SwapMemberAccesses(source string) (string, error) {
	prog, err := parse(source)
	if err != nil {
		return "", err
	}
	ed := &editor{ext: extents{src: source}}
	w := &walker{ed: ed}
	w.statements(prog.Body)
	return ed.text(span{0, len(source)}), nil
}

type edit struct {
	span
	text string
}

// editor accumulates non-overlapping replacements sorted by start offset.
// Registering a range that encloses earlier edits supersedes them, since
// the replacement text was built from their output already.
type editor struct {
	ext   extents
	edits []edit
}

// text returns the source of s with every registered edit inside it applied.
func (ed *editor) text(s span) string {
	var b strings.Builder
	pos := s.start
	for _, e := range ed.edits {
		if e.start < s.start || e.end > s.end {
			continue
		}
		b.WriteString(ed.ext.src[pos:e.start])
		b.WriteString(e.text)
		pos = e.end
	}
	b.WriteString(ed.ext.src[pos:s.end])
	return b.String()
}

func (ed *editor) replace(s span, text string) {
	kept := ed.edits[:0]
	for _, e := range ed.edits {
		if e.start >= s.start && e.end <= s.end {
			continue
		}
		kept = append(kept, e)
	}
	i := sort.Search(len(kept), func(i int) bool { return kept[i].start >= s.end })
	kept = append(kept, edit{})
	copy(kept[i+1:], kept[i:])
	kept[i] = edit{span: s, text: text}
	ed.edits = kept
}

// quote renders s as a double quoted JavaScript string literal.
func quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\u2028', '\u2029', utf8.RuneError:
			b.WriteString(`\u`)
			b.WriteString(strconv.FormatInt(int64(r)|0x10000, 16)[1:])
		default:
			if r < 0x20 {
				b.WriteString(`\u00`)
				if r < 0x10 {
					b.WriteByte('0')
				}
				b.WriteString(strconv.FormatInt(int64(r), 16))
				continue
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
