package fetcher

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collect drains both channels. It takes StreamTable's results directly.
func collect(rowCh <-chan Row, errCh <-chan error) ([]Row, error) {
	var rows []Row
	for r := range rowCh {
		rows = append(rows, r)
	}
	var firstErr error
	for err := range errCh {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return rows, firstErr
}

func TestStreamTable_CSV(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []Row
	}{
		{
			name:  "header and rows",
			input: "ward_name,Population,PM25\nRohini,150000,85.2\nAnand Vihar,210000,180.4\n",
			want: []Row{
				{"ward_name": "Rohini", "Population": "150000", "PM25": "85.2"},
				{"ward_name": "Anand Vihar", "Population": "210000", "PM25": "180.4"},
			},
		},
		{
			name:  "byte order mark stripped from first column",
			input: "\ufeffward_name,Population\nRohini,1\n",
			want:  []Row{{"ward_name": "Rohini", "Population": "1"}},
		},
		{
			name:  "cells and header trimmed",
			input: " ward_name , Population \n  Anand Vihar  , 210000 \n",
			want:  []Row{{"ward_name": "Anand Vihar", "Population": "210000"}},
		},
		{
			name:  "short row leaves missing columns absent",
			input: "ward_name,Population,PM25\nRohini,150000\n",
			want:  []Row{{"ward_name": "Rohini", "Population": "150000"}},
		},
		{
			name:  "extra cells ignored",
			input: "ward_name\nRohini,extra\n",
			want:  []Row{{"ward_name": "Rohini"}},
		},
		{
			name:  "lazy quotes",
			input: "ward_name,note\nRohini,a \"quoted\" word\n",
			want:  []Row{{"ward_name": "Rohini", "note": `a "quoted" word`}},
		},
		{
			name:  "header only",
			input: "ward_name,Population\n",
		},
		{
			name:  "empty input",
			input: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := collect(StreamTable(context.Background(), strings.NewReader(tt.input), TableCSV))
			require.NoError(t, err)
			assert.Equal(t, tt.want, rows)
		})
	}
}

func TestStreamTable_CSVReadError(t *testing.T) {
	r := io.MultiReader(strings.NewReader("ward_name\nRohini\n"), iotest.ErrReader(errors.New("disk gone")))

	rows, err := collect(StreamTable(context.Background(), r, TableCSV))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "csv: read row")
	assert.LessOrEqual(t, len(rows), 1)
}

func TestStreamTable_JSON(t *testing.T) {
	input := `[
		{"ward_name":"Rohini","Population":150000,"Priority_Level":"Medium"},
		{"ward_name":"Dwarka","Population":null},
		null
	]`

	rows, err := collect(StreamTable(context.Background(), strings.NewReader(input), TableJSON))
	require.NoError(t, err)
	require.Len(t, rows, 2, "null elements are skipped")
	assert.Equal(t, "Rohini", rows[0]["ward_name"])
	assert.InDelta(t, 150000, rows[0]["Population"], 1e-9)
	assert.Contains(t, rows[1], "Population")
	assert.Nil(t, rows[1]["Population"])
}

func TestStreamTable_JSONErrors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantRows int
		wantErr  string
	}{
		{name: "empty input", input: ""},
		{name: "empty array", input: "[]"},
		{name: "object instead of array", input: `{"ward_name":"Rohini"}`, wantErr: "expected '['"},
		{name: "non-object element", input: `[{"ward_name":"Rohini"}, 5]`, wantRows: 1, wantErr: "json: decode element"},
		{name: "truncated", input: `[{"ward_name":`, wantErr: "json: decode element"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := collect(StreamTable(context.Background(), strings.NewReader(tt.input), TableJSON))
			assert.Len(t, rows, tt.wantRows)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestStreamTable_JSONL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantRows int
		wantErr  string
	}{
		{name: "empty input", input: ""},
		{
			name:     "one object per line",
			input:    "{\"ward_name\":\"Rohini\",\"Population\":150000,\"diff\":1}\n{\"ward_name\":\"Dwarka\"}\n",
			wantRows: 2,
		},
		{name: "blank lines and nulls skipped", input: "\n{\"ward_name\":\"Rohini\"}\n\nnull\n{\"ward_name\":\"Dwarka\"}", wantRows: 2},
		{name: "truncated last line", input: "{\"ward_name\":\"Rohini\"}\n{\"ward_", wantRows: 1, wantErr: "jsonl: decode record 2"},
		{name: "array is not a record", input: `[{"ward_name":"Rohini"}]`, wantErr: "jsonl: decode record 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := collect(StreamTable(context.Background(), strings.NewReader(tt.input), TableJSONL))
			assert.Len(t, rows, tt.wantRows)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestStreamTable_JSONLValues(t *testing.T) {
	rows, err := collect(StreamTable(context.Background(),
		strings.NewReader(`{"ward_name":"Rohini","Population":150000,"time":1718000000,"diff":-1}`), TableJSONL))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Rohini", rows[0]["ward_name"])
	assert.InDelta(t, 150000, rows[0]["Population"], 1e-9)
	assert.InDelta(t, -1, rows[0]["diff"], 1e-9)
}

func TestStreamTable_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	inputs := map[TableFormat]string{
		TableCSV:   "ward_name\nRohini\n",
		TableJSON:  `[{"ward_name":"Rohini"}]`,
		TableJSONL: `{"ward_name":"Rohini"}`,
	}
	for format, input := range inputs {
		t.Run(format.String(), func(t *testing.T) {
			_, err := collect(StreamTable(ctx, strings.NewReader(input), format))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "context cancelled")
		})
	}
}

func TestStreamTable_EarlyStop(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("ward_name\n")
	for i := 0; i < 500; i++ {
		sb.WriteString("w\n")
	}

	ctx, cancel := context.WithCancel(context.Background())
	rowCh, errCh := StreamTable(ctx, strings.NewReader(sb.String()), TableCSV)
	<-rowCh
	cancel()

	// Both channels close once the producer notices cancellation.
	for range rowCh {
	}
	for range errCh {
	}
}

func TestStreamTable_UnsupportedFormat(t *testing.T) {
	_, err := collect(StreamTable(context.Background(), strings.NewReader("x"), TableFormat(9)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")
	assert.Equal(t, "unknown", TableFormat(9).String())
	assert.Equal(t, "jsonl", TableJSONL.String())
}
