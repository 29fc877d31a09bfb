package sniff

import (
	"bytes"
	"errors"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// ErrEncodingFailure reports that neither the strict UTF-8 pass nor the
// Windows-1252 fallback produced usable text.
var ErrEncodingFailure = errors.New("sniff: no decode strategy produced usable text")

// Encoding names recorded in file metadata.
const (
	EncodingUTF8  = "utf-8"
	EncodingCP1252 = "windows-1252"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Decode converts raw file bytes to text. Valid UTF-8 passes through after
// BOM stripping; anything else is decoded as Windows-1252, the dominant
// legacy encoding for the spreadsheet exports this tool sees. Inputs that
// still contain NUL bytes are rejected as binary rather than mis-sampled.
func Decode(raw []byte) (text string, encoding string, err error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)

	if bytes.IndexByte(raw, 0x00) >= 0 {
		return "", "", ErrEncodingFailure
	}

	if utf8.Valid(raw) {
		return string(raw), EncodingUTF8, nil
	}

	decoded, err := charmap.Windows1252.NewDecoder().Bytes(raw)
	if err != nil {
		return "", "", ErrEncodingFailure
	}
	return string(decoded), EncodingCP1252, nil
}

// SampleLines returns up to n non-empty lines from text with trailing
// carriage returns removed. Used to feed the delimiter detector.
func SampleLines(text string, n int) []string {
	if n <= 0 {
		return nil
	}
	out := make([]string, 0, n)
	start := 0
	for i := 0; i <= len(text); i++ {
		if i == len(text) || text[i] == '\n' {
			line := text[start:i]
			start = i + 1
			if len(line) > 0 && line[len(line)-1] == '\r' {
				line = line[:len(line)-1]
			}
			if line == "" {
				continue
			}
			out = append(out, line)
			if len(out) == n {
				break
			}
		}
	}
	return out
}
