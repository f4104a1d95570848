package rewrite

import (
	"regexp"
	"strings"
)

var statementSep = regexp.MustCompile(`\s*;\s*`)

// keywords are the shell commands SwapKeywords turns into db method calls.
var keywords = map[string]struct{}{
	"help": {},
	"it":   {},
	"show": {},
	"use":  {},
}

// SwapKeywords rewrites statements that start with a shell keyword, such as
// "show collections", into db.show("collections"). Every remaining token is
// passed as a string argument; the keyword handler rejects extras.
func SwapKeywords(source string) string {
	stmts := statementSep.Split(source, -1)
	for i, stmt := range stmts {
		tokens := strings.Fields(stmt)
		if len(tokens) == 0 {
			continue
		}
		if _, ok := keywords[tokens[0]]; !ok {
			continue
		}
		args := make([]string, 0, len(tokens)-1)
		for _, tok := range tokens[1:] {
			args = append(args, quote(tok))
		}
		stmts[i] = "db." + tokens[0] + "(" + strings.Join(args, ", ") + ")"
	}
	return strings.Join(stmts, "; ")
}
