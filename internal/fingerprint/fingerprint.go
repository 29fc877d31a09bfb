// Package fingerprint reduces a file's normalized schema to a fixed-size
// digest. Two files share a fingerprint iff they have the same column count,
// the same normalized names in the same order, the same inferred type tokens
// in the same order and the same delimiter.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"filesift/internal/schema"
)

// fieldSep separates canonical fields. It cannot occur in normalized
// identifiers or type tokens, so the encoding is injective.
const fieldSep = "\x1f"

// Compute returns the hex SHA-256 of the canonical schema signature.
func Compute(def schema.Definition, delimiter rune) string {
	var b strings.Builder
	for _, c := range def.Columns {
		b.WriteString(c.Normalized)
		b.WriteByte('=')
		b.WriteString(c.Type.Token())
		b.WriteString(fieldSep)
	}
	b.WriteString("delim=")
	b.WriteRune(delimiter)

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Short returns the leading fragment of a fingerprint used in artifact
// names. Full digests stay in metadata; eight hex characters are plenty to
// tell groups of one run apart.
func Short(fp string) string {
	if len(fp) <= 8 {
		return fp
	}
	return fp[:8]
}
