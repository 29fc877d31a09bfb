package sniff

import (
	"errors"
	"strings"
)

// ErrUndetectableDelimiter reports that no candidate splits every sampled
// line into the same field count of at least two.
var ErrUndetectableDelimiter = errors.New("sniff: no candidate delimiter yields a consistent field count")

// DefaultDelimiters is the candidate set used when the config does not
// provide one.
const DefaultDelimiters = ",\t|;"

// Detect picks the field delimiter for a decoded sample. A candidate is
// valid only when splitting by it gives an identical field count >= 2 on
// every line; among valid candidates the highest field count wins, so a more
// specific separator beats one that merely appears inside values. Ties keep
// the earlier candidate.
func Detect(lines []string, candidates []rune) (rune, error) {
	if len(lines) == 0 || len(candidates) == 0 {
		return 0, ErrUndetectableDelimiter
	}

	best := rune(0)
	bestFields := 0

	for _, cand := range candidates {
		sep := string(cand)
		fields := len(strings.Split(lines[0], sep))
		if fields < 2 {
			continue
		}

		consistent := true
		for _, line := range lines[1:] {
			if len(strings.Split(line, sep)) != fields {
				consistent = false
				break
			}
		}
		if !consistent {
			continue
		}

		if fields > bestFields {
			best = cand
			bestFields = fields
		}
	}

	if best == 0 {
		return 0, ErrUndetectableDelimiter
	}
	return best, nil
}
