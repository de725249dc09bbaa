package store

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sitemapdiff/sitemapdiff/internal/model"
)

// CSV headers. Downstream tooling matches on these exact strings.
var (
	entryHeader = []string{"Source", "URL"}
	deltaHeader = []string{"Status", "URL"}
)

// WriteEntries writes a Source,URL CSV with a header row. An empty list
// still produces a file with just the header, so a missing file always
// means the run never got that far.
func (r *RunStore) WriteEntries(filename string, entries []model.Entry) error {
	f, err := os.Create(filepath.Join(r.dir, filename))
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filename, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(entryHeader); err != nil {
		return fmt.Errorf("failed to write %s: %w", filename, err)
	}
	for _, e := range entries {
		if err := w.Write([]string{e.Source, e.URL}); err != nil {
			return fmt.Errorf("failed to write %s: %w", filename, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", filename, err)
	}
	return f.Close()
}

// ReadEntries reads a Source,URL CSV written by WriteEntries.
func (r *RunStore) ReadEntries(filename string) ([]model.Entry, error) {
	f, err := os.Open(filepath.Join(r.dir, filename))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", filename, err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = 2
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filename, err)
	}

	entries := make([]model.Entry, 0, len(rows))
	for i, row := range rows {
		if i == 0 && row[0] == entryHeader[0] && row[1] == entryHeader[1] {
			continue
		}
		entries = append(entries, model.Entry{Source: row[0], URL: row[1]})
	}
	return entries, nil
}

// WriteDelta writes a Status,URL CSV with a header row.
func (r *RunStore) WriteDelta(filename string, entries []model.DeltaEntry) error {
	f, err := os.Create(filepath.Join(r.dir, filename))
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filename, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(deltaHeader); err != nil {
		return fmt.Errorf("failed to write %s: %w", filename, err)
	}
	for _, e := range entries {
		if err := w.Write([]string{string(e.Status), e.URL}); err != nil {
			return fmt.Errorf("failed to write %s: %w", filename, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", filename, err)
	}
	return f.Close()
}

// ReadDelta reads a Status,URL CSV written by WriteDelta.
func (r *RunStore) ReadDelta(filename string) ([]model.DeltaEntry, error) {
	f, err := os.Open(filepath.Join(r.dir, filename))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", filename, err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = 2
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filename, err)
	}

	entries := make([]model.DeltaEntry, 0, len(rows))
	for i, row := range rows {
		if i == 0 && row[0] == deltaHeader[0] && row[1] == deltaHeader[1] {
			continue
		}
		entries = append(entries, model.DeltaEntry{Status: model.DeltaStatus(row[0]), URL: row[1]})
	}
	return entries, nil
}

// WriteResultSet writes a frozen result set as a Source,URL CSV in
// sorted order.
func (r *RunStore) WriteResultSet(filename string, rs *model.ResultSet) error {
	entries := make([]model.Entry, 0, rs.Len())
	for _, u := range rs.Sorted() {
		entries = append(entries, model.Entry{Source: rs.SourceOf(u), URL: u})
	}
	return r.WriteEntries(filename, entries)
}
