package sniff

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrMalformedFile reports that more than half of the sampled data rows did
// not match the header's field count.
var ErrMalformedFile = errors.New("sniff: sampled rows inconsistent with header")

// FileSample is the bounded read used for inference: the raw header names
// and, per column, the sampled values in row order.
type FileSample struct {
	Header  []string
	Columns [][]string

	// Rows counts sampled records kept; Mismatched counts records dropped
	// for having a field count different from the header's.
	Rows       int
	Mismatched int
}

// SampleText reads the header and up to maxRows data records from decoded
// text. Records are parsed with the delimiter as the CSV comma so quoted
// fields and embedded newlines behave; a record whose width differs from the
// header is dropped and counted rather than failing the file, but when
// dropped records outnumber kept ones the file fails with ErrMalformedFile.
func SampleText(text string, delim rune, maxRows int) (*FileSample, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("%w: empty input", ErrMalformedFile)
		}
		return nil, fmt.Errorf("%w: header: %v", ErrMalformedFile, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	s := &FileSample{
		Header:  header,
		Columns: make([][]string, len(header)),
	}

	for s.Rows+s.Mismatched < maxRows {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Parse errors behave like width mismatches: dropped, counted.
			s.Mismatched++
			continue
		}
		if len(rec) != len(header) {
			s.Mismatched++
			continue
		}
		for i, v := range rec {
			s.Columns[i] = append(s.Columns[i], strings.TrimSpace(v))
		}
		s.Rows++
	}

	if err := s.checkMismatch(); err != nil {
		return nil, err
	}
	return s, nil
}

// FromRows builds a sample from pre-split records, for inputs that arrive as
// cells rather than delimited text (HTML tables). Width and threshold
// semantics match SampleText.
func FromRows(header []string, rows [][]string, maxRows int) (*FileSample, error) {
	if len(header) == 0 {
		return nil, fmt.Errorf("%w: empty header", ErrMalformedFile)
	}

	h := make([]string, len(header))
	for i, c := range header {
		h[i] = strings.TrimSpace(c)
	}

	s := &FileSample{
		Header:  h,
		Columns: make([][]string, len(h)),
	}

	for _, rec := range rows {
		if s.Rows+s.Mismatched >= maxRows {
			break
		}
		if len(rec) != len(h) {
			s.Mismatched++
			continue
		}
		for i, v := range rec {
			s.Columns[i] = append(s.Columns[i], strings.TrimSpace(v))
		}
		s.Rows++
	}

	if err := s.checkMismatch(); err != nil {
		return nil, err
	}
	return s, nil
}

// checkMismatch fails the sample when dropped records outnumber kept ones.
func (s *FileSample) checkMismatch() error {
	total := s.Rows + s.Mismatched
	if total > 0 && s.Mismatched*2 > total {
		return fmt.Errorf("%w: %d of %d sampled rows mismatch header width %d",
			ErrMalformedFile, s.Mismatched, total, len(s.Header))
	}
	return nil
}
