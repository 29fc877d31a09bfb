package storage

import (
	"context"
	"errors"
	"testing"
)

type fakeLoader struct {
	ddl        []string
	lastTable  string
	lastCols   []string
	lastRows   [][]any
	closeCalls int

	loadN   int64
	loadErr error
}

func (f *fakeLoader) EnsureTable(ctx context.Context, ddl string) error {
	f.ddl = append(f.ddl, ddl)
	return nil
}

func (f *fakeLoader) LoadRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	f.lastTable = table
	f.lastCols = append([]string(nil), columns...)
	f.lastRows = rows
	return f.loadN, f.loadErr
}

func (f *fakeLoader) Close() { f.closeCalls++ }

func TestNewDispatchesToRegisteredFactory(t *testing.T) {
	fake := &fakeLoader{loadN: 3}
	Register("fake-dispatch", func(ctx context.Context, cfg Config) (Loader, error) {
		if cfg.DSN != "dsn://x" {
			t.Fatalf("factory got DSN %q", cfg.DSN)
		}
		return fake, nil
	})

	l, err := New(context.Background(), Config{Kind: "fake-dispatch", DSN: "dsn://x"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	n, err := l.LoadRows(context.Background(), "t", []string{"a"}, [][]any{{int64(1)}})
	if err != nil {
		t.Fatalf("LoadRows: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected n=3, got %d", n)
	}
	if fake.lastTable != "t" {
		t.Fatalf("expected table t, got %q", fake.lastTable)
	}
	l.Close()
	if fake.closeCalls != 1 {
		t.Fatalf("expected 1 close call, got %d", fake.closeCalls)
	}
}

func TestNewRejectsMissingAndUnknownKind(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error for empty kind")
	}
	if _, err := New(context.Background(), Config{Kind: "no-such-backend"}); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}

func TestNewPropagatesFactoryError(t *testing.T) {
	wantErr := errors.New("connect refused")
	Register("fake-failing", func(ctx context.Context, cfg Config) (Loader, error) {
		return nil, wantErr
	})

	if _, err := New(context.Background(), Config{Kind: "fake-failing"}); !errors.Is(err, wantErr) {
		t.Fatalf("expected factory error, got %v", err)
	}
}

func TestRegisterPanics(t *testing.T) {
	mustPanic := func(name string, fn func()) {
		t.Helper()
		defer func() {
			if recover() == nil {
				t.Fatalf("%s: expected panic", name)
			}
		}()
		fn()
	}

	mustPanic("empty kind", func() { Register("", func(ctx context.Context, cfg Config) (Loader, error) { return nil, nil }) })
	mustPanic("nil factory", func() { Register("fake-nil", nil) })

	Register("fake-dup", func(ctx context.Context, cfg Config) (Loader, error) { return nil, nil })
	mustPanic("duplicate kind", func() {
		Register("fake-dup", func(ctx context.Context, cfg Config) (Loader, error) { return nil, nil })
	})
}
