// Package htmltable adapts HTML report exports to the delimited pipeline.
// Many upstream systems hand over "CSV" dumps that are really a single
// <table> in an HTML shell; this package lifts the cells back out so the
// same inference and grouping machinery applies.
package htmltable

import (
	"errors"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrNoTable reports that the document contains no table with a usable
// header row.
var ErrNoTable = errors.New("htmltable: no usable table in document")

// Extract parses the document and returns the header and data rows of its
// first usable table.
//
// Semantics:
//   - The first <table> in DOM order with a non-empty header wins; later
//     tables are ignored.
//   - The header comes from the first <thead> row when present, otherwise
//     from the first body row. The HTML parser wraps loose <tr> elements in
//     an implicit <tbody>, so bare tables take this second path.
//   - Cell text is whitespace-normalized: nested markup flattens to words
//     separated by single spaces.
//
// Ragged rows are returned as-is; the caller counts them against the
// malformed-file threshold like any short delimited row.
func Extract(r io.Reader) (header []string, rows [][]string, err error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, nil, err
	}

	var found bool
	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		h, body := tableCells(table)
		if len(h) == 0 {
			return true // keep looking
		}
		header, rows, found = h, body, true
		return false
	})
	if !found {
		return nil, nil, ErrNoTable
	}
	return header, rows, nil
}

// tableCells splits one table into a header row and data rows. Child-only
// traversal keeps rows of nested tables out of the outer table's data.
func tableCells(table *goquery.Selection) ([]string, [][]string) {
	var header []string

	headRow := table.ChildrenFiltered("thead").ChildrenFiltered("tr").First()
	if headRow.Length() > 0 {
		header = cellTexts(headRow)
	}

	var rows [][]string
	table.ChildrenFiltered("tbody").ChildrenFiltered("tr").Each(func(i int, tr *goquery.Selection) {
		if header == nil && i == 0 {
			header = cellTexts(tr)
			return
		}
		rows = append(rows, cellTexts(tr))
	})

	return header, rows
}

// cellTexts returns the whitespace-normalized texts of the row's cells in
// DOM order.
func cellTexts(tr *goquery.Selection) []string {
	var cells []string
	tr.ChildrenFiltered("td, th").Each(func(_ int, cell *goquery.Selection) {
		cells = append(cells, strings.Join(strings.Fields(cell.Text()), " "))
	})
	return cells
}
