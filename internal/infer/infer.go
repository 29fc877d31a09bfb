package infer

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Decimal defaults and ceiling. Observed precision/scale only override the
// defaults when the data demands more; 38 is the widest portable NUMERIC.
const (
	defaultPrecision = 18
	defaultScale     = 4
	maxPrecision     = 38
)

// Config carries the tunable parts of inference. Zero values fall back to
// the package defaults so a bare Config{} behaves like the strict policy.
type Config struct {
	// Policy is "strict" (every non-null sample must satisfy a type) or
	// "majority" (at least Threshold of them must).
	Policy string
	// Threshold is the required satisfaction fraction under "majority".
	Threshold float64
	// NullMarkers are compared case-insensitively after trimming.
	NullMarkers []string
	// BooleanTokens are compared case-insensitively.
	BooleanTokens []string
	// DatePatterns are Go reference layouts; layouts containing a time
	// component promote the column to datetime.
	DatePatterns []string
}

// Default values applied when Config fields are empty.
var (
	DefaultNullMarkers   = []string{"", "null", "n/a", "na", "-"}
	DefaultBooleanTokens = []string{"0", "1", "true", "false", "yes", "no"}
	DefaultDatePatterns  = []string{
		"2006-01-02",
		"01/02/2006",
		"02.01.2006",
		"2006-01-02 15:04:05",
		"01/02/2006 15:04:05",
		"2006-01-02T15:04:05",
	}
)

// layoutLenSlack widens the cheap length pre-filter around the configured
// layouts. Single-digit layout components may consume one or two input
// characters, so exact layout lengths are not a hard bound either way.
const layoutLenSlack = 4

// Inferrer evaluates sampled column values against the type ladder. It is
// safe for concurrent use once built.
type Inferrer struct {
	threshold  float64
	nullSet    map[string]struct{}
	boolSet    map[string]struct{}
	dateOnly   []string
	withTime   []string
	minDateLen int
	maxDateLen int
}

// New builds an Inferrer from cfg, applying package defaults for any empty
// field. An unknown policy falls back to strict.
func New(cfg Config) *Inferrer {
	inf := &Inferrer{threshold: 1.0}
	if strings.EqualFold(cfg.Policy, "majority") {
		inf.threshold = cfg.Threshold
		if inf.threshold <= 0 || inf.threshold > 1 {
			inf.threshold = 1.0
		}
	}

	markers := cfg.NullMarkers
	if markers == nil {
		markers = DefaultNullMarkers
	}
	inf.nullSet = make(map[string]struct{}, len(markers))
	for _, m := range markers {
		inf.nullSet[strings.ToLower(m)] = struct{}{}
	}

	tokens := cfg.BooleanTokens
	if len(tokens) == 0 {
		tokens = DefaultBooleanTokens
	}
	inf.boolSet = make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		inf.boolSet[strings.ToLower(tok)] = struct{}{}
	}

	patterns := cfg.DatePatterns
	if len(patterns) == 0 {
		patterns = DefaultDatePatterns
	}
	for i, p := range patterns {
		if strings.Contains(p, "15") || strings.Contains(p, "04") {
			inf.withTime = append(inf.withTime, p)
		} else {
			inf.dateOnly = append(inf.dateOnly, p)
		}
		if lo := len(p) - layoutLenSlack; i == 0 || lo < inf.minDateLen {
			inf.minDateLen = lo
		}
		if hi := len(p) + layoutLenSlack; hi > inf.maxDateLen {
			inf.maxDateLen = hi
		}
	}
	return inf
}

// IsNull reports whether v is one of the configured null markers.
func (inf *Inferrer) IsNull(v string) bool {
	_, ok := inf.nullSet[strings.ToLower(v)]
	return ok
}

// columnStats is the single-pass accumulation over a column's non-null
// values. Each family counts how many values it accepts; range extremes
// decide the width inside a family afterwards.
type columnStats struct {
	nonNull int

	boolean int

	integral    int
	beyondInt32 bool

	decimal      int
	maxIntDigits int
	maxScale     int

	temporal int
	hasTime  bool

	maxRunes int
}

// Column infers the type of one column. values are the non-mismatched
// samples in row order; totalRows is the number of sampled data rows
// including any dropped mismatches, which makes short columns nullable.
func (inf *Inferrer) Column(values []string, totalRows int) Column {
	var st columnStats
	nullSeen := false

	for _, v := range values {
		if inf.IsNull(v) {
			nullSeen = true
			continue
		}
		st.nonNull++

		if n := utf8.RuneCountInString(v); n > st.maxRunes {
			st.maxRunes = n
		}
		if _, ok := inf.boolSet[strings.ToLower(v)]; ok {
			st.boolean++
		}
		if ok, wide := integralValue(v); ok {
			st.integral++
			if wide {
				st.beyondInt32 = true
			}
		}
		if intDigits, scale, ok := decimalValue(v); ok {
			st.decimal++
			if intDigits > st.maxIntDigits {
				st.maxIntDigits = intDigits
			}
			if scale > st.maxScale {
				st.maxScale = scale
			}
		}
		if ok, timed := inf.temporalValue(v); ok {
			st.temporal++
			if timed {
				st.hasTime = true
			}
		}
	}

	nullable := nullSeen || st.nonNull < totalRows

	if st.nonNull == 0 {
		return Column{Kind: KindText, Length: TextLength(0), Nullable: true}
	}

	need := inf.threshold * float64(st.nonNull)
	passes := func(count int) bool { return float64(count) >= need }

	switch {
	case passes(st.boolean):
		return Column{Kind: KindBoolean, Nullable: nullable}

	case passes(st.integral):
		if st.beyondInt32 {
			return Column{Kind: KindBigInteger, Nullable: nullable}
		}
		return Column{Kind: KindInteger, Nullable: nullable}

	case passes(st.decimal):
		if col, ok := decimalColumn(st, nullable); ok {
			return col
		}

	case passes(st.temporal):
		if st.hasTime {
			return Column{Kind: KindDateTime, Nullable: nullable}
		}
		return Column{Kind: KindDate, Nullable: nullable}
	}

	return Column{Kind: KindText, Length: TextLength(st.maxRunes), Nullable: nullable}
}

// decimalColumn sizes a decimal from observed extremes. Values whose integer
// part alone exceeds the precision ceiling cannot be represented, so the
// column falls through to text.
func decimalColumn(st columnStats, nullable bool) (Column, bool) {
	if st.maxIntDigits > maxPrecision {
		return Column{}, false
	}
	precision := st.maxIntDigits + st.maxScale
	scale := st.maxScale
	if precision <= defaultPrecision && scale <= defaultScale {
		precision, scale = defaultPrecision, defaultScale
	} else if precision > maxPrecision {
		scale = maxPrecision - st.maxIntDigits
		precision = maxPrecision
	}
	return Column{Kind: KindDecimal, Precision: precision, Scale: scale, Nullable: nullable}, true
}

// integralValue reports whether v is an optional-sign digit string that fits
// a 64-bit integer, and whether it exceeds the 32-bit range.
func integralValue(v string) (ok, beyondInt32 bool) {
	if _, err := strconv.ParseInt(v, 10, 64); err != nil {
		return false, false
	}
	_, err := strconv.ParseInt(v, 10, 32)
	return true, err != nil
}

// decimalValue scans v as a plain decimal literal: optional sign, digits
// with at most one point, optional exponent. It returns the digit count of
// the integer part and the scale after normalizing the exponent away.
// strconv.ParseFloat is deliberately not used here: it admits "NaN", "Inf"
// and hexadecimal floats, none of which are database decimals.
func decimalValue(v string) (intDigits, scale int, ok bool) {
	i := 0
	if i < len(v) && (v[i] == '+' || v[i] == '-') {
		i++
	}

	digitsBefore, digitsAfter := 0, 0
	leadingZeros := 0
	for i < len(v) && v[i] >= '0' && v[i] <= '9' {
		if v[i] == '0' && digitsBefore == leadingZeros {
			leadingZeros++
		}
		digitsBefore++
		i++
	}
	if i < len(v) && v[i] == '.' {
		i++
		for i < len(v) && v[i] >= '0' && v[i] <= '9' {
			digitsAfter++
			i++
		}
	}
	if digitsBefore+digitsAfter == 0 {
		return 0, 0, false
	}

	exp := 0
	if i < len(v) && (v[i] == 'e' || v[i] == 'E') {
		i++
		sign := 1
		if i < len(v) && (v[i] == '+' || v[i] == '-') {
			if v[i] == '-' {
				sign = -1
			}
			i++
		}
		expDigits := 0
		for i < len(v) && v[i] >= '0' && v[i] <= '9' {
			exp = exp*10 + int(v[i]-'0')
			expDigits++
			i++
			if exp > 1000 {
				return 0, 0, false
			}
		}
		if expDigits == 0 {
			return 0, 0, false
		}
		exp *= sign
	}
	if i != len(v) {
		return 0, 0, false
	}

	// Leading zeros carry no precision: "0.5" has no integer digits.
	digitsBefore -= leadingZeros

	if exp >= 0 {
		intDigits = digitsBefore + exp
		scale = digitsAfter - exp
		if scale < 0 {
			scale = 0
		}
	} else {
		intDigits = digitsBefore + exp
		if intDigits < 0 {
			intDigits = 0
		}
		scale = digitsAfter - exp
	}
	return intDigits, scale, true
}

// temporalValue reports whether v parses under any configured layout and
// whether the matching layout carries a time component. Date-only layouts
// are tried first so that pure dates never count as timed.
func (inf *Inferrer) temporalValue(v string) (ok, timed bool) {
	if len(v) < inf.minDateLen || len(v) > inf.maxDateLen {
		return false, false
	}
	if v[0] < '0' || v[0] > '9' {
		return false, false
	}
	for _, layout := range inf.dateOnly {
		if _, err := time.Parse(layout, v); err == nil {
			return true, false
		}
	}
	for _, layout := range inf.withTime {
		if _, err := time.Parse(layout, v); err == nil {
			return true, true
		}
	}
	return false, false
}
