package category

import (
	"testing"

	pebblestore "github.com/cschjolb/seqflow/internal/storage/pebble"
)

func openTestDB(t *testing.T) *pebblestore.DB {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestEnsureCreatesDefaultsOnce(t *testing.T) {
	db := openTestDB(t)

	m1, err := Ensure(db, "orders")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if m1.Partitions != Defaults().Partitions {
		t.Fatalf("expected default partitions, got %d", m1.Partitions)
	}
	if m1.CreatedAtMs == 0 {
		t.Fatalf("expected a non-zero creation timestamp")
	}

	m2, err := Ensure(db, "orders")
	if err != nil {
		t.Fatalf("ensure (second call): %v", err)
	}
	if m2.CreatedAtMs != m1.CreatedAtMs {
		t.Fatalf("expected idempotent ensure, got a different creation timestamp")
	}
}

func TestLookupMissingCategory(t *testing.T) {
	db := openTestDB(t)

	if _, ok, err := Lookup(db, "never-seen"); err != nil || ok {
		t.Fatalf("expected ok=false, err=nil for an unprovisioned category, got ok=%v err=%v", ok, err)
	}

	if _, err := Ensure(db, "payments"); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	m, ok, err := Lookup(db, "payments")
	if err != nil || !ok {
		t.Fatalf("expected to find provisioned category, got ok=%v err=%v", ok, err)
	}
	if m.Name != "payments" {
		t.Fatalf("expected name 'payments', got %q", m.Name)
	}
}
