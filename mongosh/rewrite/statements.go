package rewrite

// SplitStatements splits source into one span per top-level statement. Each
// span runs from the start of its statement to the start of the next, so
// separators, whitespace and comments stay with the statement before them
// and the spans concatenate back to source exactly.
func SplitStatements(source string) ([]string, error) {
	prog, err := parse(source)
	if err != nil {
		return nil, err
	}
	if len(prog.Body) == 0 {
		if source == "" {
			return nil, nil
		}
		return []string{source}, nil
	}

	ext := extents{src: source}
	out := make([]string, 0, len(prog.Body))
	prev := 0
	for _, stmt := range prog.Body[1:] {
		start := ext.start(stmt)
		if start <= prev {
			continue
		}
		out = append(out, source[prev:start])
		prev = start
	}
	return append(out, source[prev:]), nil
}
