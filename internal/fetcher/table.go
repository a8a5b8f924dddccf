package fetcher

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

const utf8BOM = "\ufeff"

// Row is one record of a tabular source keyed by column name. CSV cells are
// trimmed strings; JSON values keep their decoded types.
type Row map[string]any

// TableFormat selects how StreamTable decodes its input.
type TableFormat int

const (
	// TableCSV is delimited text whose first row names the columns.
	TableCSV TableFormat = iota
	// TableJSON is a JSON array of objects.
	TableJSON
	// TableJSONL is one JSON object per line, as written by streaming
	// exporters.
	TableJSONL
)

func (f TableFormat) String() string {
	switch f {
	case TableCSV:
		return "csv"
	case TableJSON:
		return "json"
	case TableJSONL:
		return "jsonl"
	default:
		return "unknown"
	}
}

// StreamTable decodes a tabular source row by row. Both channels are closed
// when processing completes; the error channel carries at most one error.
// Callers that stop reading early must cancel ctx.
func StreamTable(ctx context.Context, r io.Reader, format TableFormat) (<-chan Row, <-chan error) {
	rowCh := make(chan Row, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		var err error
		switch format {
		case TableCSV:
			err = streamCSV(ctx, r, rowCh)
		case TableJSON:
			err = streamJSON(ctx, r, rowCh)
		case TableJSONL:
			err = streamJSONL(ctx, r, rowCh)
		default:
			err = eris.Errorf("table: unsupported format %d", format)
		}
		if err != nil {
			errCh <- err
		}
	}()

	return rowCh, errCh
}

func streamCSV(ctx context.Context, r io.Reader, out chan<- Row) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var header []string
	for {
		if ctx.Err() != nil {
			return eris.Wrap(ctx.Err(), "csv: context cancelled")
		}

		record, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return eris.Wrap(err, "csv: read row")
		}

		if header == nil {
			if len(record) > 0 {
				record[0] = strings.TrimPrefix(record[0], utf8BOM)
			}
			header = make([]string, len(record))
			for i, col := range record {
				header[i] = strings.TrimSpace(col)
			}
			continue
		}

		row := make(Row, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = strings.TrimSpace(record[i])
			}
		}
		if err := send(ctx, out, row); err != nil {
			return err
		}
	}
}

func streamJSON(ctx context.Context, r io.Reader, out chan<- Row) error {
	decoder := json.NewDecoder(r)

	tok, err := decoder.Token()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return eris.Wrap(err, "json: read opening token")
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return eris.Errorf("json: expected '[', got %v", tok)
	}

	for decoder.More() {
		if ctx.Err() != nil {
			return eris.Wrap(ctx.Err(), "json: context cancelled")
		}

		var row Row
		if err := decoder.Decode(&row); err != nil {
			return eris.Wrap(err, "json: decode element")
		}
		if row == nil {
			continue
		}
		if err := send(ctx, out, row); err != nil {
			return err
		}
	}

	if _, err := decoder.Token(); err != nil && err != io.EOF {
		return eris.Wrap(err, "json: read closing token")
	}
	return nil
}

// streamJSONL decodes consecutive top-level objects. Blank lines and null
// records are skipped.
func streamJSONL(ctx context.Context, r io.Reader, out chan<- Row) error {
	decoder := json.NewDecoder(r)
	for n := 1; ; n++ {
		if ctx.Err() != nil {
			return eris.Wrap(ctx.Err(), "jsonl: context cancelled")
		}

		var row Row
		err := decoder.Decode(&row)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return eris.Wrapf(err, "jsonl: decode record %d", n)
		}
		if row == nil {
			continue
		}
		if err := send(ctx, out, row); err != nil {
			return err
		}
	}
}

func send(ctx context.Context, out chan<- Row, row Row) error {
	select {
	case out <- row:
		return nil
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "table: context cancelled")
	}
}
