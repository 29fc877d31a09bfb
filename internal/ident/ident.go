// Package ident turns raw header cells and file names into safe SQL
// identifiers. Normalization is deterministic and idempotent; collision
// handling is scoped, so per-file column names and run-wide table names
// resolve independently.
package ident

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultMaxLength matches the tightest identifier limit among the targeted
// databases once provenance suffixes are accounted for.
const DefaultMaxLength = 128

// collisionAttempts bounds suffix probing so a pathological header row fails
// loudly instead of spinning.
const collisionAttempts = 10000

// ErrCollision reports that a scope could not find a free suffixed variant.
var ErrCollision = errors.New("ident: identifier collision unresolved")

// Normalize maps raw to a safe identifier: lowercase, every run of
// characters outside [a-z0-9_] becomes a single underscore, a leading digit
// gains an underscore prefix and the result is truncated to maxLen. Empty
// input (or input that normalizes to nothing) becomes "col". The function is
// idempotent: applying it to its own output is a no-op.
func Normalize(raw string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultMaxLength
	}

	var b strings.Builder
	b.Grow(len(raw))
	lastUnderscore := false
	for _, r := range strings.ToLower(raw) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}

	out := b.String()
	if out == "" {
		out = "col"
	}
	if out[0] >= '0' && out[0] <= '9' {
		out = "_" + out
	}
	// The alphabet is ASCII after normalization, so byte truncation is
	// rune-safe.
	if len(out) > maxLen {
		out = out[:maxLen]
	}
	return out
}

// Scope resolves collisions among normalized identifiers by appending _2,
// _3, ... to later claimants. The first claimant keeps the plain form.
type Scope struct {
	maxLen int
	seen   map[string]struct{}
}

// NewScope returns an empty scope enforcing maxLen (DefaultMaxLength if
// maxLen is not positive).
func NewScope(maxLen int) *Scope {
	if maxLen <= 0 {
		maxLen = DefaultMaxLength
	}
	return &Scope{maxLen: maxLen, seen: make(map[string]struct{})}
}

// Len returns the number of identifiers claimed so far.
func (s *Scope) Len() int { return len(s.seen) }

// Claim normalizes raw and reserves a unique identifier within the scope.
// Suffixes count against the length limit, so long names are shortened to
// make room rather than silently exceeding it.
func (s *Scope) Claim(raw string) (string, error) {
	base := Normalize(raw, s.maxLen)
	if _, taken := s.seen[base]; !taken {
		s.seen[base] = struct{}{}
		return base, nil
	}

	for n := 2; n < collisionAttempts; n++ {
		suffix := fmt.Sprintf("_%d", n)
		if len(suffix) > s.maxLen {
			// No room left for a distinguishing suffix.
			break
		}
		trimmed := base
		if len(trimmed)+len(suffix) > s.maxLen {
			trimmed = trimmed[:s.maxLen-len(suffix)]
		}
		candidate := trimmed + suffix
		if _, taken := s.seen[candidate]; !taken {
			s.seen[candidate] = struct{}{}
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrCollision, raw)
}
