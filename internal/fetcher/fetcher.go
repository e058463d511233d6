// Package fetcher reads tabular dataset rows from CSV, XLSX, and HTTP sources.
package fetcher

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Row is one data row keyed by normalized header name.
type Row struct {
	Line   int // 1-based source line (or sheet row), header included
	Fields map[string]string
}

// Get returns the value for column, matched case-insensitively.
func (r Row) Get(column string) (string, bool) {
	v, ok := r.Fields[NormalizeHeader(column)]
	return v, ok
}

// NormalizeHeader lowercases and trims a column name.
func NormalizeHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
}

// zipRow pairs a header with a record. Short records leave trailing columns empty.
func zipRow(line int, header, record []string) Row {
	fields := make(map[string]string, len(header))
	for i, h := range header {
		if i < len(record) {
			fields[h] = strings.TrimSpace(record[i])
		} else {
			fields[h] = ""
		}
	}
	return Row{Line: line, Fields: fields}
}

func normalizeHeaders(record []string) []string {
	out := make([]string, len(record))
	for i, h := range record {
		out[i] = NormalizeHeader(h)
	}
	return out
}

// StreamFile picks the CSV or XLSX reader from the file extension.
func StreamFile(ctx context.Context, path string, sheet string) (<-chan Row, <-chan error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return StreamXLSX(ctx, path, XLSXOptions{SheetName: sheet})
	case ".csv", ".txt", "":
		return streamCSVFile(ctx, path)
	default:
		rowCh := make(chan Row)
		errCh := make(chan error, 1)
		close(rowCh)
		errCh <- eris.Errorf("fetcher: unsupported file type %q", filepath.Ext(path))
		close(errCh)
		return rowCh, errCh
	}
}
