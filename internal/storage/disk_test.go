package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/nexus/internal/models"
)

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.WriteFile(path, make([]byte, size), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestDiskUsage(t *testing.T) {
	dir := t.TempDir()

	index := filepath.Join(dir, "pages")
	if err := os.MkdirAll(filepath.Join(index, "store"), 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(index, "index_meta.json"), 2)
	writeFile(t, filepath.Join(index, "store", "00000001.zap"), 10)

	db := filepath.Join(dir, "rules.db")
	writeFile(t, db, 100)
	writeFile(t, db+"-wal", 7)
	writeFile(t, db+"-shm", 3)

	usages, total, err := DiskUsage(index, "", db, filepath.Join(dir, "missing.db"))
	if err != nil {
		t.Fatal(err)
	}
	if total != 122 {
		t.Errorf("total = %d, want 122", total)
	}
	want := []Usage{{index, 12}, {db, 110}, {filepath.Join(dir, "missing.db"), 0}}
	if len(usages) != len(want) {
		t.Fatalf("usages = %+v, want %+v", usages, want)
	}
	for i := range want {
		if usages[i] != want[i] {
			t.Errorf("usages[%d] = %+v, want %+v", i, usages[i], want[i])
		}
	}
}

func TestDiskUsage_liveRulesDatabase(t *testing.T) {
	db := filepath.Join(t.TempDir(), "rules.db")
	store, err := NewSQLiteRuleStore(db)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	if err := store.Upsert(context.Background(), &models.Rule{ID: "r1", Title: "Prime de nuit", Content: "15 %"}); err != nil {
		t.Fatal(err)
	}

	_, total, err := DiskUsage(db)
	if err != nil {
		t.Fatal(err)
	}
	if total == 0 {
		t.Error("expected a non-empty database footprint")
	}
}
