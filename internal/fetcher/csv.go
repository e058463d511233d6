package fetcher

import (
	"context"
	"encoding/csv"
	"io"
	"os"

	"github.com/rotisserie/eris"
)

// CSVOptions configures the streaming CSV parser.
type CSVOptions struct {
	Delimiter  rune // default ','
	Comment    rune // 0 = none
	LazyQuotes bool
}

// StreamCSV reads a headered CSV and sends each data row on the returned
// channel. The first record is the header. Both channels are closed when
// processing completes; a read failure is sent on the error channel.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan Row, <-chan error) {
	rowCh := make(chan Row, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)
		streamCSV(ctx, r, opts, rowCh, errCh)
	}()

	return rowCh, errCh
}

func streamCSVFile(ctx context.Context, path string) (<-chan Row, <-chan error) {
	rowCh := make(chan Row, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		f, err := os.Open(path)
		if err != nil {
			errCh <- eris.Wrapf(err, "csv: open %s", path)
			return
		}
		defer f.Close() //nolint:errcheck

		streamCSV(ctx, f, CSVOptions{}, rowCh, errCh)
	}()

	return rowCh, errCh
}

func streamCSV(ctx context.Context, r io.Reader, opts CSVOptions, rowCh chan<- Row, errCh chan<- error) {
	reader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	if opts.Comment != 0 {
		reader.Comment = opts.Comment
	}
	reader.LazyQuotes = opts.LazyQuotes
	reader.FieldsPerRecord = -1

	var header []string
	for {
		if ctx.Err() != nil {
			errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
			return
		}

		record, err := reader.Read()
		if err == io.EOF {
			return
		}
		if err != nil {
			errCh <- eris.Wrap(err, "csv: read row")
			return
		}

		line, _ := reader.FieldPos(0)
		if header == nil {
			header = normalizeHeaders(record)
			continue
		}

		select {
		case rowCh <- zipRow(line, header, record):
		case <-ctx.Done():
			errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
			return
		}
	}
}
