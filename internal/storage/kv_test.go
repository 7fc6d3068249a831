package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeKV struct{ closeCalls int }

func (f *fakeKV) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (f *fakeKV) Set(context.Context, string, []byte) error         { return nil }
func (f *fakeKV) Remove(context.Context, string) error              { return nil }
func (f *fakeKV) Close()                                            { f.closeCalls++ }

func TestRegisterAndNew(t *testing.T) {
	var got Config
	Register("test-fake", func(_ context.Context, cfg Config) (KV, error) {
		got = cfg
		return &fakeKV{}, nil
	})

	kv, err := New(context.Background(), Config{Kind: "test-fake", DSN: "x", Table: "t"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := kv.(*fakeKV); !ok {
		t.Fatalf("unexpected backend %T", kv)
	}
	if got.DSN != "x" || got.Table != "t" {
		t.Fatalf("config not passed through: %#v", got)
	}

	found := false
	for _, k := range Kinds() {
		if k == "test-fake" {
			found = true
		}
	}
	if !found {
		t.Fatalf("Kinds() missing test-fake: %v", Kinds())
	}
}

func TestRegister_PanicsOnDuplicate(t *testing.T) {
	f := func(context.Context, Config) (KV, error) { return &fakeKV{}, nil }
	Register("test-dup", f)

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on duplicate registration")
		}
	}()
	Register("test-dup", f)
}

func TestNew_UnsupportedKind(t *testing.T) {
	for _, kind := range []string{"", "no-such-backend"} {
		_, err := New(context.Background(), Config{Kind: kind})
		if !errors.Is(err, ErrUnsupportedKind) {
			t.Fatalf("kind %q: want ErrUnsupportedKind got %v", kind, err)
		}
	}
}

// TestNew_UnsupportedKindListsKinds checks the error names what is registered
// so a typo in storage.kind is easy to spot.
func TestNew_UnsupportedKindListsKinds(t *testing.T) {
	Register("test-listed", func(context.Context, Config) (KV, error) { return &fakeKV{}, nil })

	_, err := New(context.Background(), Config{Kind: "sqlit"})
	if !errors.Is(err, ErrUnsupportedKind) {
		t.Fatalf("want ErrUnsupportedKind got %v", err)
	}
	msg := err.Error()
	if !strings.HasPrefix(msg, "storage.kind=sqlit (have [") || !strings.Contains(msg, "test-listed") {
		t.Fatalf("error does not list registered kinds: %q", msg)
	}
}

func TestTableName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
		ok       bool
	}{
		{"", DefaultTable, true},
		{"crm_kv", "crm_kv", true},
		{" public.crm_kv ", "public.crm_kv", true},
		{"a.b.c", "", false},
		{"crm-kv", "", false},
		{"kv; DROP TABLE x", "", false},
		{"1kv", "", false},
	}
	for _, tt := range tests {
		got, err := TableName(tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Fatalf("TableName(%q): want (%q, ok=%v) got (%q, %v)", tt.in, tt.want, tt.ok, got, err)
		}
	}
}

func TestSplitQualifiedName(t *testing.T) {
	t.Parallel()

	if s, n := SplitQualifiedName("public.crm_kv"); s != "public" || n != "crm_kv" {
		t.Fatalf("got (%q,%q)", s, n)
	}
	if s, n := SplitQualifiedName("crm_kv"); s != "" || n != "crm_kv" {
		t.Fatalf("got (%q,%q)", s, n)
	}
}
