// Package interference provides a read-only lookup of GNSS interference
// statistics per geographic cell, in the format published by gpsjam.org:
// one H3 resolution-4 cell per line with counts of aircraft reporting good and
// bad navigation accuracy.
package interference

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/uber/h3-go/v4"
)

// Resolution is the H3 resolution of the published cells.
const Resolution = 4

// Counts holds the per-cell aircraft counts.
type Counts struct {
	Good int
	Bad  int
}

// Percent returns the share of bad reports. ok is false when the cell has no
// reports at all.
func (c Counts) Percent() (float64, bool) {
	total := c.Good + c.Bad
	if total <= 0 {
		return 0, false
	}
	return float64(c.Bad) / float64(total) * 100, true
}

// Table maps cell ids to counts. A nil or empty table has no data.
type Table struct {
	cells map[string]Counts
	// Date is the optional first-line date stamp of a cached file.
	Date string
}

// NewTable builds a table from already-parsed cells.
func NewTable(cells map[string]Counts) *Table {
	t := &Table{cells: make(map[string]Counts, len(cells))}
	for k, v := range cells {
		t.cells[strings.ToLower(k)] = v
	}
	return t
}

// Len returns the number of cells.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.cells)
}

// Cell returns the id of the cell containing lat/long.
func Cell(lat, long float64) string {
	return h3.LatLngToCell(h3.NewLatLng(lat, long), Resolution).String()
}

// Lookup returns the counts of the cell containing lat/long.
func (t *Table) Lookup(lat, long float64) (Counts, bool) {
	if t.Len() == 0 {
		return Counts{}, false
	}
	c, ok := t.cells[Cell(lat, long)]
	return c, ok
}

// Parse reads a gpsjam CSV. The header line ("hex,...") and an optional
// leading date line are skipped.
func Parse(r io.Reader) (*Table, error) {
	t := &Table{cells: make(map[string]Counts)}
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for s.Scan() {
		lineNo++
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "hex") {
			continue
		}
		parts := strings.Split(line, ",")
		if len(parts) < 3 {
			if lineNo == 1 {
				t.Date = line
				continue
			}
			return nil, fmt.Errorf("interference line %d: expected hex,good,bad: %q", lineNo, line)
		}
		good, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, fmt.Errorf("interference line %d: good count: %w", lineNo, err)
		}
		bad, err := strconv.Atoi(strings.TrimSpace(parts[2]))
		if err != nil {
			return nil, fmt.Errorf("interference line %d: bad count: %w", lineNo, err)
		}
		t.cells[strings.ToLower(strings.TrimSpace(parts[0]))] = Counts{Good: good, Bad: bad}
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return t, nil
}

// Load reads a gpsjam CSV from path.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}
