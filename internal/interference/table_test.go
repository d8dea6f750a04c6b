package interference

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCountsPercent(t *testing.T) {
	if p, ok := (Counts{Good: 80, Bad: 20}).Percent(); !ok || p != 20 {
		t.Fatalf("percent=%v ok=%v want 20", p, ok)
	}
	if _, ok := (Counts{}).Percent(); ok {
		t.Fatalf("expected no percent for empty cell")
	}
}

func TestCell_Resolution4(t *testing.T) {
	cell := Cell(54.6, -6.0)
	if len(cell) != 15 {
		t.Fatalf("cell=%q want 15 hex digits", cell)
	}
	// Nearby points share the coarse cell.
	if Cell(54.60001, -6.00001) != cell {
		t.Fatalf("expected neighbouring point in the same cell")
	}
}

func TestParseAndLookup(t *testing.T) {
	cell := Cell(54.6, -6.0)
	csv := "2024-05-01\nhex,count_good_aircraft,count_bad_aircraft\n" +
		strings.ToUpper(cell) + ",80,20\n" +
		"8400001ffffffff,5,0\n"
	tbl, err := Parse(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if tbl.Date != "2024-05-01" {
		t.Fatalf("date=%q", tbl.Date)
	}
	if tbl.Len() != 2 {
		t.Fatalf("len=%d want 2", tbl.Len())
	}
	got, ok := tbl.Lookup(54.6, -6.0)
	if !ok || got.Good != 80 || got.Bad != 20 {
		t.Fatalf("lookup=%+v ok=%v", got, ok)
	}
	if _, ok := tbl.Lookup(-33.9, 151.2); ok {
		t.Fatalf("expected miss for unrelated cell")
	}
}

func TestParse_BadCount(t *testing.T) {
	_, err := Parse(strings.NewReader("hex,good,bad\n841f1d5ffffffff,x,1\n"))
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestNilTableLookup(t *testing.T) {
	var tbl *Table
	if _, ok := tbl.Lookup(0, 0); ok {
		t.Fatalf("expected miss on nil table")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jam.csv")
	if err := os.WriteFile(path, []byte("hex,good,bad\n841f1d5ffffffff,1,3\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	tbl, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if tbl.Len() != 1 {
		t.Fatalf("len=%d", tbl.Len())
	}
}
