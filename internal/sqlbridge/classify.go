package sqlbridge

import "strings"

// rowKeywords are leading keywords of statements that produce a row set.
var rowKeywords = map[string]bool{
	"SELECT":   true,
	"SHOW":     true,
	"WITH":     true,
	"EXPLAIN":  true,
	"DESCRIBE": true,
	"DESC":     true,
	"VALUES":   true,
	"TABLE":    true,
	"PRAGMA":   true,
}

// ReturnsRows reports whether a statement produces a row set rather than an
// update count. It looks at the leading keyword after comments, plus a
// RETURNING clause anywhere, which covers INSERT ... RETURNING and friends.
func ReturnsRows(query string) bool {
	q := stripLeading(query)
	if q == "" {
		return false
	}

	end := strings.IndexFunc(q, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '(' || r == ';'
	})
	keyword := q
	if end >= 0 {
		keyword = q[:end]
	}
	if rowKeywords[strings.ToUpper(keyword)] {
		return true
	}
	return hasReturning(query)
}

// stripLeading removes whitespace, line comments, block comments and opening
// parens from the front of a statement.
func stripLeading(q string) string {
	for {
		q = strings.TrimLeft(q, " \t\r\n(")
		switch {
		case strings.HasPrefix(q, "--"):
			nl := strings.IndexByte(q, '\n')
			if nl < 0 {
				return ""
			}
			q = q[nl+1:]
		case strings.HasPrefix(q, "/*"):
			stop := strings.Index(q, "*/")
			if stop < 0 {
				return ""
			}
			q = q[stop+2:]
		default:
			return q
		}
	}
}

// hasReturning looks for RETURNING as a standalone word.
func hasReturning(q string) bool {
	upper := strings.ToUpper(q)
	for from := 0; ; {
		i := strings.Index(upper[from:], "RETURNING")
		if i < 0 {
			return false
		}
		i += from
		before := i == 0 || isBoundary(upper[i-1])
		end := i + len("RETURNING")
		after := end == len(upper) || isBoundary(upper[end])
		if before && after && i > 0 {
			return true
		}
		from = end
	}
}

func isBoundary(b byte) bool {
	switch b {
	case ' ', '\t', '\r', '\n', '(', ')', ';', ',':
		return true
	}
	return false
}
