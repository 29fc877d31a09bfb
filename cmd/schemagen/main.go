// Command schemagen emits CREATE TABLE statements inferred from delimited
// text files, without combining or loading anything. Point it at a single
// file or a directory tree; every readable file yields one statement for the
// chosen dialect, or a schema document with -json.
//
// Typical use:
//
//	schemagen -input drops/orders.csv -dialect postgres
//	schemagen -input ./drops -out ./ddl -bulk
//	schemagen -input ./drops -json | jq '.[].fingerprint'
//
// Table names come from the file name (compression and format suffixes
// stripped), normalized the same way column names are; duplicate stems get
// _2, _3, ... suffixes in scan order.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"filesift/internal/config"
	"filesift/internal/ident"
	"filesift/internal/infer"
	"filesift/internal/render"
	"filesift/internal/scan"
	"filesift/internal/sniff"
)

func main() {
	os.Exit(runMain(os.Args[1:], os.Stdout, os.Stderr))
}

// schemaDoc is the machine-readable shape emitted with -json.
type schemaDoc struct {
	File        string      `json:"file"`
	Table       string      `json:"table"`
	Delimiter   string      `json:"delimiter"`
	Encoding    string      `json:"encoding"`
	Fingerprint string      `json:"fingerprint"`
	RowsSampled int         `json:"rows_sampled"`
	Columns     []columnDoc `json:"columns"`
}

type columnDoc struct {
	Name     string `json:"name"`
	Original string `json:"original,omitempty"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

// runMain is the testable entry point. Exit codes: 0 success (even when
// individual files fail), 1 setup error, 2 usage error.
func runMain(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("schemagen", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		cfgPath   = fs.String("config", "", "run config JSON path (sampling and inference sections apply)")
		input     = fs.String("input", "", "file or directory tree to infer schemas from")
		dialect   = fs.String("dialect", "mssql", "DDL dialect: mssql|postgres|sqlite")
		outDir    = fs.String("out", "", "write one .sql (or .json) file per table into this directory instead of stdout")
		bulk      = fs.Bool("bulk", false, "append a bulk-load template after each CREATE TABLE")
		jsonOut   = fs.Bool("json", false, "emit schema documents as JSON instead of SQL")
		pretty    = fs.Bool("pretty", true, "indent JSON output")
		surrogate = fs.Bool("surrogate-key", false, "add a synthetic identity primary key column")
		sample    = fs.Int("sample", 0, "data rows sampled per file (overrides sample.rows)")
		verbose   = fs.Bool("v", false, "log per-file scan detail to stderr")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if strings.TrimSpace(*input) == "" {
		fmt.Fprintln(stderr, "usage: schemagen -input <file-or-dir> [-dialect mssql|postgres|sqlite] [flags]")
		return 2
	}
	d := render.Dialect(*dialect)
	switch d {
	case render.DialectMSSQL, render.DialectPostgres, render.DialectSQLite:
	default:
		fmt.Fprintf(stderr, "unknown dialect %q (mssql|postgres|sqlite)\n", *dialect)
		return 2
	}

	cfg, err := config.Load(strings.TrimSpace(*cfgPath))
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}
	if *sample > 0 {
		cfg.Sample.Rows = *sample
	}
	if issues := config.Validate(cfg); len(issues) > 0 {
		for _, iss := range issues {
			fmt.Fprintf(stderr, "config: %s\n", iss)
		}
		return 1
	}

	paths, err := resolveInputs(*input, cfg.Input.Extensions)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}
	if *outDir != "" {
		if err := os.MkdirAll(*outDir, 0o755); err != nil {
			fmt.Fprintf(stderr, "create output dir: %v\n", err)
			return 1
		}
	}

	scanner := &scan.Scanner{
		SampleRows:     cfg.Sample.Rows,
		MaxSampleBytes: cfg.Sample.MaxBytes,
		Delimiters:     cfg.Inference.Delimiters,
		IdentMaxLen:    cfg.Identifier.MaxLength,
		Inferrer: infer.New(infer.Config{
			Policy:        cfg.Inference.Policy,
			Threshold:     cfg.Inference.Threshold,
			NullMarkers:   cfg.Inference.NullMarkers,
			BooleanTokens: cfg.Inference.BooleanTokens,
			DatePatterns:  cfg.Inference.DatePatterns,
		}),
	}
	if *verbose {
		scanner.Logger = log.New(stderr, "", 0)
	}

	tables := ident.NewScope(cfg.Identifier.MaxLength)
	var docs []schemaDoc
	generated, failed := 0, 0

	for _, path := range paths {
		res := scanner.Process(path)
		if res.Failure != nil {
			fmt.Fprintf(stderr, "%s: %s: %s\n", res.Failure.Path, res.Failure.Kind, res.Failure.Reason)
			failed++
			continue
		}
		rec := res.Record

		table, err := tables.Claim(cfg.Identifier.TablePrefix + tableStem(path))
		if err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", path, err)
			failed++
			continue
		}

		if *jsonOut {
			doc := schemaDoc{
				File:        rec.Path,
				Table:       table,
				Delimiter:   string(rec.Delimiter),
				Encoding:    rec.Encoding,
				Fingerprint: rec.Fingerprint,
				RowsSampled: rec.RowsSampled,
			}
			for _, c := range rec.Schema.Columns {
				cd := columnDoc{Name: c.Normalized, Type: c.Type.Token(), Nullable: c.Type.Nullable}
				if c.Original != c.Normalized {
					cd.Original = c.Original
				}
				doc.Columns = append(doc.Columns, cd)
			}
			if *outDir != "" {
				if err := writeDoc(filepath.Join(*outDir, table+".json"), doc, *pretty); err != nil {
					fmt.Fprintf(stderr, "%v\n", err)
					return 1
				}
			} else {
				docs = append(docs, doc)
			}
			generated++
			continue
		}

		ddl, err := render.CreateTable(d, table, rec.Schema, render.Options{
			SurrogateKey: *surrogate,
			GuardExists:  true,
			SourceFiles:  []string{rec.Path},
		})
		if err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", path, err)
			failed++
			continue
		}
		if *bulk {
			ddl += "\n\n" + render.BulkLoad(d, table, rec.Path, rec.Delimiter)
		}

		if *outDir != "" {
			if err := os.WriteFile(filepath.Join(*outDir, table+".sql"), []byte(ddl+"\n"), 0o644); err != nil {
				fmt.Fprintf(stderr, "write %s.sql: %v\n", table, err)
				return 1
			}
		} else {
			if generated > 0 {
				fmt.Fprintln(stdout)
			}
			fmt.Fprintln(stdout, ddl)
		}
		generated++
	}

	if *jsonOut && *outDir == "" {
		b, err := marshalDocs(docs, *pretty)
		if err != nil {
			fmt.Fprintf(stderr, "encode schemas: %v\n", err)
			return 1
		}
		fmt.Fprintln(stdout, string(b))
	}

	fmt.Fprintf(stderr, "schemagen: %d tables, %d failures\n", generated, failed)
	return 0
}

// resolveInputs accepts either a single file or a directory tree.
func resolveInputs(input string, extensions []string) ([]string, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{input}, nil
	}
	paths, err := scan.DiscoverFiles(input, extensions)
	if err != nil {
		return nil, err
	}
	return paths, nil
}

// tableStem derives the table name seed from a path: base name with the
// compression suffix and the format extension stripped.
func tableStem(path string) string {
	base := filepath.Base(sniff.LogicalPath(path))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func marshalDocs(docs []schemaDoc, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(docs, "", "  ")
	}
	return json.Marshal(docs)
}

func writeDoc(path string, doc schemaDoc, pretty bool) error {
	var (
		b   []byte
		err error
	)
	if pretty {
		b, err = json.MarshalIndent(doc, "", "  ")
	} else {
		b, err = json.Marshal(doc)
	}
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
