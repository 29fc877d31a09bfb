package sink

import (
	"io"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/memory"
	"github.com/apache/arrow/go/v18/parquet"
	"github.com/apache/arrow/go/v18/parquet/compress"
	"github.com/apache/arrow/go/v18/parquet/pqarrow"

	"filesift/internal/group"
)

// writeParquet writes the combined rows as a snappy-compressed parquet file.
//
// Columns are kept as strings. The dataset artifacts preserve source text
// verbatim; typed materialization happens in the storage loaders where the
// target dialect is known.
func (s *DirSink) writeParquet(c *group.Combined) error {
	return writeAtomically(s.path(c, ".parquet"), func(w io.Writer) error {
		tbl := buildArrowTable(c)
		defer tbl.Release()

		props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
		return pqarrow.WriteTable(tbl, w, int64(len(c.Rows))+1, props, pqarrow.DefaultWriterProps())
	})
}

// buildArrowTable materializes the combined rows as a single-record table.
// The caller owns the returned table and must Release it.
func buildArrowTable(c *group.Combined) arrow.Table {
	header := c.Header()
	fields := make([]arrow.Field, len(header))
	for i, name := range header {
		fields[i] = arrow.Field{Name: name, Type: arrow.BinaryTypes.String, Nullable: true}
	}
	schema := arrow.NewSchema(fields, nil)

	bldr := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer bldr.Release()

	for _, row := range c.Rows {
		for i := range fields {
			bldr.Field(i).(*array.StringBuilder).Append(row[i])
		}
	}

	rec := bldr.NewRecord()
	defer rec.Release()

	return array.NewTableFromRecords(schema, []arrow.Record{rec})
}
