package infer

import (
	"strings"
	"testing"
)

// TestColumnLadder verifies that columns land on the narrowest type of the
// widening ladder under the default strict policy.
func TestColumnLadder(t *testing.T) {
	t.Parallel()

	inf := New(Config{})

	tests := []struct {
		name   string
		values []string
		want   Column
	}{
		{
			name:   "all empty is nullable text",
			values: []string{"", "", ""},
			want:   Column{Kind: KindText, Length: 50, Nullable: true},
		},
		{
			name:   "default boolean tokens",
			values: []string{"1", "0", "true"},
			want:   Column{Kind: KindBoolean},
		},
		{
			name:   "yes no case insensitive",
			values: []string{"yes", "no", "YES"},
			want:   Column{Kind: KindBoolean},
		},
		{
			name:   "small integers",
			values: []string{"10", "-20", "+30"},
			want:   Column{Kind: KindInteger},
		},
		{
			name:   "int32 boundary stays integer",
			values: []string{"2147483647", "5"},
			want:   Column{Kind: KindInteger},
		},
		{
			name:   "one wide value promotes to biginteger",
			values: []string{"10", "20", "9999999999999"},
			want:   Column{Kind: KindBigInteger},
		},
		{
			name:   "int32 overflow promotes to biginteger",
			values: []string{"2147483648"},
			want:   Column{Kind: KindBigInteger},
		},
		{
			name:   "small decimals keep the default shape",
			values: []string{"1.5", "2.25"},
			want:   Column{Kind: KindDecimal, Precision: 18, Scale: 4},
		},
		{
			name:   "wide decimal grows precision",
			values: []string{"123456789012345.678", "1.2345"},
			want:   Column{Kind: KindDecimal, Precision: 19, Scale: 4},
		},
		{
			name:   "deep scale is preserved",
			values: []string{"1.23456"},
			want:   Column{Kind: KindDecimal, Precision: 6, Scale: 5},
		},
		{
			name:   "digits beyond int64 become exact decimals",
			values: []string{"1234567890123456789012345"},
			want:   Column{Kind: KindDecimal, Precision: 25, Scale: 0},
		},
		{
			name:   "iso dates",
			values: []string{"2021-01-02", "2021-12-31"},
			want:   Column{Kind: KindDate},
		},
		{
			name:   "dotted european dates",
			values: []string{"31.12.2021", "01.02.2021"},
			want:   Column{Kind: KindDate},
		},
		{
			name:   "time component promotes to datetime",
			values: []string{"2021-01-02", "2021-01-02 10:30:00"},
			want:   Column{Kind: KindDateTime},
		},
		{
			name:   "t separated timestamps",
			values: []string{"2021-01-02T10:30:00"},
			want:   Column{Kind: KindDateTime},
		},
		{
			name:   "invalid calendar values are text",
			values: []string{"2021-13-45", "2021-01-02"},
			want:   Column{Kind: KindText, Length: 50},
		},
		{
			name:   "plain words are short text",
			values: []string{"hello", "world"},
			want:   Column{Kind: KindText, Length: 50},
		},
		{
			name:   "null markers leave the type and set nullable",
			values: []string{"5", "NULL", "7", "n/a"},
			want:   Column{Kind: KindInteger, Nullable: true},
		},
		{
			name:   "dash marker is null not text",
			values: []string{"-", "12"},
			want:   Column{Kind: KindInteger, Nullable: true},
		},
		{
			name:   "oversized integer part falls to text",
			values: []string{strings.Repeat("9", 40) + ".5"},
			want:   Column{Kind: KindText, Length: 50},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := inf.Column(tt.values, len(tt.values))
			if got != tt.want {
				t.Fatalf("Column(%v) = %+v, want %+v", tt.values, got, tt.want)
			}
		})
	}
}

// TestColumnTextBuckets verifies the longest observed value picks the
// smallest bucket that holds it.
func TestColumnTextBuckets(t *testing.T) {
	t.Parallel()

	inf := New(Config{})

	tests := []struct {
		runes      int
		wantLength int
	}{
		{1, 50},
		{50, 50},
		{51, 255},
		{255, 255},
		{256, 1000},
		{1000, 1000},
		{1001, 0},
	}

	for _, tt := range tests {
		got := inf.Column([]string{strings.Repeat("x", tt.runes)}, 1)
		if got.Kind != KindText || got.Length != tt.wantLength {
			t.Fatalf("Column(len %d) = %+v, want text(%d)", tt.runes, got, tt.wantLength)
		}
	}
}

// TestColumnTextBucketsCountRunes verifies multi-byte values are measured in
// runes, not bytes.
func TestColumnTextBucketsCountRunes(t *testing.T) {
	t.Parallel()

	inf := New(Config{})
	got := inf.Column([]string{strings.Repeat("é", 50) + "!?"}, 1) // 52 runes, 102 bytes
	if got.Length != 255 {
		t.Fatalf("Column() length = %d, want 255", got.Length)
	}
}

// TestColumnShortColumnIsNullable verifies that a column with fewer values
// than sampled rows is nullable even without explicit null markers.
func TestColumnShortColumnIsNullable(t *testing.T) {
	t.Parallel()

	inf := New(Config{})

	got := inf.Column([]string{"1", "2"}, 3)
	if got.Kind != KindInteger || !got.Nullable {
		t.Fatalf("Column() = %+v, want nullable integer", got)
	}

	got = inf.Column([]string{"1", "2"}, 2)
	if got.Nullable {
		t.Fatalf("Column() = %+v, want non-nullable", got)
	}
}

// TestColumnMajorityPolicy verifies the configurable strictness: under
// majority a bounded share of outliers no longer demotes the column.
func TestColumnMajorityPolicy(t *testing.T) {
	t.Parallel()

	values := []string{"1", "2", "3", "oops"}

	strict := New(Config{Policy: "strict"})
	if got := strict.Column(values, len(values)); got.Kind != KindText {
		t.Fatalf("strict Column() = %+v, want text", got)
	}

	majority := New(Config{Policy: "majority", Threshold: 0.75})
	if got := majority.Column(values, len(values)); got.Kind != KindInteger {
		t.Fatalf("majority Column() = %+v, want integer", got)
	}

	tight := New(Config{Policy: "majority", Threshold: 0.9})
	if got := tight.Column(values, len(values)); got.Kind != KindText {
		t.Fatalf("majority(0.9) Column() = %+v, want text", got)
	}
}

// TestColumnBooleanTokenSet verifies the boolean decision tracks the
// configured token list rather than a built-in notion of truthiness.
func TestColumnBooleanTokenSet(t *testing.T) {
	t.Parallel()

	values := []string{"1", "0", "true"}

	wide := New(Config{})
	if got := wide.Column(values, len(values)); got.Kind != KindBoolean {
		t.Fatalf("default tokens Column() = %+v, want boolean", got)
	}

	narrow := New(Config{BooleanTokens: []string{"0", "1"}})
	if got := narrow.Column(values, len(values)); got.Kind != KindText {
		t.Fatalf("narrow tokens Column() = %+v, want text", got)
	}
}

// TestColumnCustomNullMarkers verifies marker configuration replaces the
// default set entirely.
func TestColumnCustomNullMarkers(t *testing.T) {
	t.Parallel()

	inf := New(Config{NullMarkers: []string{"", "missing"}})

	got := inf.Column([]string{"5", "MISSING"}, 2)
	if got.Kind != KindInteger || !got.Nullable {
		t.Fatalf("Column() = %+v, want nullable integer", got)
	}

	// "NULL" is plain text under the custom set.
	got = inf.Column([]string{"5", "NULL"}, 2)
	if got.Kind != KindText {
		t.Fatalf("Column() = %+v, want text", got)
	}
}

// TestDecimalValue exercises the decimal literal scanner directly, including
// the forms strconv.ParseFloat would wrongly admit.
func TestDecimalValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in        string
		intDigits int
		scale     int
		ok        bool
	}{
		{"1.5", 1, 1, true},
		{"-12.345", 2, 3, true},
		{"+.5", 0, 1, true},
		{"0.5", 0, 1, true},
		{"007", 1, 0, true},
		{"12.", 2, 0, true},
		{"1e5", 6, 0, true},
		{"1.5e3", 4, 0, true},
		{"1.5e-2", 0, 3, true},
		{"2.5E+1", 2, 0, true},
		{"NaN", 0, 0, false},
		{"Inf", 0, 0, false},
		{"0x10", 0, 0, false},
		{"1.2.3", 0, 0, false},
		{".", 0, 0, false},
		{"", 0, 0, false},
		{"+", 0, 0, false},
		{"1e", 0, 0, false},
		{"1,5", 0, 0, false},
	}

	for _, tt := range tests {
		intDigits, scale, ok := decimalValue(tt.in)
		if intDigits != tt.intDigits || scale != tt.scale || ok != tt.ok {
			t.Fatalf("decimalValue(%q) = (%d, %d, %v), want (%d, %d, %v)",
				tt.in, intDigits, scale, ok, tt.intDigits, tt.scale, tt.ok)
		}
	}
}

// TestToken verifies the canonical fingerprint tokens.
func TestToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		col  Column
		want string
	}{
		{Column{Kind: KindBoolean}, "boolean"},
		{Column{Kind: KindInteger}, "integer"},
		{Column{Kind: KindBigInteger}, "biginteger"},
		{Column{Kind: KindDecimal, Precision: 18, Scale: 4}, "decimal(18,4)"},
		{Column{Kind: KindDate}, "date"},
		{Column{Kind: KindDateTime}, "datetime"},
		{Column{Kind: KindText, Length: 255}, "text(255)"},
		{Column{Kind: KindText}, "text"},
	}

	for _, tt := range tests {
		if got := tt.col.Token(); got != tt.want {
			t.Fatalf("Token(%+v) = %q, want %q", tt.col, got, tt.want)
		}
	}
}

// TestTokenIgnoresNullability verifies two columns differing only in
// nullability share a token, so sparse files group with dense ones.
func TestTokenIgnoresNullability(t *testing.T) {
	t.Parallel()

	a := Column{Kind: KindInteger, Nullable: true}
	b := Column{Kind: KindInteger}
	if a.Token() != b.Token() {
		t.Fatalf("tokens differ: %q vs %q", a.Token(), b.Token())
	}
}
