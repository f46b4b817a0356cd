package geometry

import (
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/snowflake-featureserver/internal/core/apperr"
)

// EncodeWKT renders a closed ring as a single-quoted SQL string literal:
// 'POLYGON((x1 y1,x2 y2,...))'. The ring is never closed on the caller's behalf.
func EncodeWKT(ring orb.Ring) (string, error) {
	if len(ring) < 3 {
		return "", apperr.DataShapef("polygon ring has %d vertices, need at least 3", len(ring))
	}
	if !ring.Closed() {
		return "", apperr.DataShapef("polygon ring is not closed")
	}

	var b strings.Builder
	b.Grow(len(ring)*32 + 16)
	b.WriteString("'POLYGON((")
	for i, p := range ring {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(formatCoord(p[0]))
		b.WriteByte(' ')
		b.WriteString(formatCoord(p[1]))
	}
	b.WriteString("))'")
	return b.String(), nil
}

// plain decimal, '.' separator, no exponent
func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
