// Package keys derives result-cache keys from compiled statements.
package keys

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// Result is the key for the rows of sql against table at generation gen.
// sql is hashed byte for byte, literals included. Bumping the table
// generation orphans every earlier key.
func Result(table string, gen uint64, sql string) string {
	sum := xxhash.Sum64String(sql)
	return fmt.Sprintf("q:%s:g%d:f=%016x", sanitizeTable(strings.TrimSpace(table)), gen, sum)
}

// Generation is the key holding the generation counter of table.
func Generation(table string) string {
	return "gen:" + sanitizeTable(strings.TrimSpace(table))
}

// Snowflake identifiers are case-insensitive unless quoted; keys are folded to
// upper case so DB.SCHEMA.T and db.schema.t share a generation.
func sanitizeTable(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	var prev rune
	for _, r := range strings.ToUpper(s) {
		var out rune
		switch {
		case isASCIIWhitespace(r):
			out = '_'
		case isAlphaNum(r) || r == '.' || r == '_' || r == '-' || r == '$':
			out = r
		default:
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isASCIIWhitespace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f'
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r < unicode.MaxASCII && unicode.IsDigit(r))
}
