package executor

import (
	"strings"
)

var readOnlyKeywords = map[string]bool{
	"select":  true,
	"with":    true,
	"explain": true,
	"values":  true,
}

// statementKeywords lists the leading keywords of statements that are not read-only in
// SQLite or PostgreSQL.
var statementKeywords = map[string]bool{
	"insert": true, "update": true, "delete": true, "replace": true, "merge": true,
	"create": true, "alter": true, "drop": true, "truncate": true, "rename": true,
	"attach": true, "detach": true, "pragma": true, "vacuum": true, "reindex": true, "analyze": true,
	"grant": true, "revoke": true, "begin": true, "start": true, "commit": true, "end": true,
	"rollback": true, "savepoint": true, "release": true, "set": true, "reset": true,
	"copy": true, "call": true, "do": true, "lock": true, "comment": true, "cluster": true,
	"discard": true, "listen": true, "notify": true, "unlisten": true, "prepare": true,
	"execute": true, "deallocate": true, "refresh": true, "import": true, "load": true,
	"security": true, "declare": true, "fetch": true, "move": true, "close": true, "checkpoint": true,
}

// stripTrailingSemicolons removes any run of trailing ';' and surrounding whitespace.
func stripTrailingSemicolons(stmt string) string {
	trimmed := strings.TrimSpace(stmt)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}

// hasStatementSeparator reports a ';' outside string literals, quoted identifiers and comments.
func hasStatementSeparator(stmt string) bool {
	for i := 0; i < len(stmt); i++ {
		switch c := stmt[i]; c {
		case ';':
			return true
		case '\'', '"', '`':
			i = skipQuoted(stmt, i, c)
		case '-':
			if i+1 < len(stmt) && stmt[i+1] == '-' {
				i = skipLine(stmt, i)
			}
		case '/':
			if i+1 < len(stmt) && stmt[i+1] == '*' {
				i = skipBlock(stmt, i)
			}
		}
	}
	return false
}

// skipQuoted returns the index of the closing quote; doubled quotes are escapes.
func skipQuoted(s string, start int, quote byte) int {
	for i := start + 1; i < len(s); i++ {
		if s[i] != quote {
			continue
		}
		if i+1 < len(s) && s[i+1] == quote {
			i++
			continue
		}
		return i
	}
	return len(s)
}

func skipLine(s string, start int) int {
	if nl := strings.IndexByte(s[start:], '\n'); nl >= 0 {
		return start + nl
	}
	return len(s)
}

func skipBlock(s string, start int) int {
	if end := strings.Index(s[start+2:], "*/"); end >= 0 {
		return start + 2 + end + 1
	}
	return len(s)
}

// leadingKeyword returns the first word of stmt in lower case, skipping comments.
func leadingKeyword(stmt string) string {
	s := stmt
	for {
		s = strings.TrimSpace(s)
		switch {
		case strings.HasPrefix(s, "--"):
			s = s[skipLine(s, 0):]
		case strings.HasPrefix(s, "/*"):
			end := skipBlock(s, 0)
			if end >= len(s) {
				return ""
			}
			s = s[end+1:]
		default:
			end := strings.IndexFunc(s, func(r rune) bool {
				return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z')
			})
			if end < 0 {
				end = len(s)
			}
			return strings.ToLower(s[:end])
		}
	}
}

// isReadOnly rejects statements led by a known non-read-only keyword. Anything else that
// is not a query cannot parse, so the engine reports it as a syntax error. Writes hidden
// behind a WITH or EXPLAIN ANALYZE pass here and are refused by the engine.
func isReadOnly(stmt string) bool {
	kw := leadingKeyword(stmt)
	return readOnlyKeywords[kw] || !statementKeywords[kw]
}
