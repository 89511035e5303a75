package ingestion_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/JaimeStill/harbor/internal/ingestion"
)

func TestParseRoundTrip(t *testing.T) {
	rows, err := ingestion.Parse("tenants/t/files/f.csv", []byte("a,b\n1,2\n"))
	require.NoError(t, err)
	assert.Equal(t, []map[string]string{{"a": "1", "b": "2"}}, rows)
}

func TestParseDelimited(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []map[string]string
	}{
		{
			name:  "byte order mark stripped",
			input: "\xEF\xBB\xBFdate,amount\n2026-01-01,10\n",
			want:  []map[string]string{{"date": "2026-01-01", "amount": "10"}},
		},
		{
			name:  "empty lines skipped",
			input: "date,amount\n\n2026-01-01,10\n\n2026-01-02,12\n",
			want: []map[string]string{
				{"date": "2026-01-01", "amount": "10"},
				{"date": "2026-01-02", "amount": "12"},
			},
		},
		{
			name:  "blank separator rows skipped",
			input: "date,amount\n,\n2026-01-01,10\n",
			want:  []map[string]string{{"date": "2026-01-01", "amount": "10"}},
		},
		{
			name:  "headers trimmed and cells kept verbatim",
			input: " date , amount \n2026-01-01, 007\n",
			want:  []map[string]string{{"date": "2026-01-01", "amount": " 007"}},
		},
		{
			name:  "quoted commas",
			input: "item,amount\n\"bolts, steel\",3\n",
			want:  []map[string]string{{"item": "bolts, steel", "amount": "3"}},
		},
		{
			name:  "header only",
			input: "date,amount\n",
			want:  []map[string]string{},
		},
		{
			name:  "crlf line endings",
			input: "a,b\r\n1,2\r\n",
			want:  []map[string]string{{"a": "1", "b": "2"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := ingestion.Parse("upload.csv", []byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, rows)
		})
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"only blank lines", "\n\n"},
		{"row longer than header", "a,b\n1,2,3\n"},
		{"row shorter than header", "a,b,c\n1,2\n"},
		{"empty header cell", "a,,c\n1,2,3\n"},
		{"duplicate header", "a,a\n1,2\n"},
		{"unterminated quote", "a,b\n\"1,2\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ingestion.Parse("upload.txt", []byte(tt.input))
			assert.ErrorIs(t, err, ingestion.ErrParse)
		})
	}
}

func workbook(t *testing.T, rows [][]any) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestParseWorkbook(t *testing.T) {
	payload := workbook(t, [][]any{
		{"sku", "qty", "note"},
		{"A-1", "4", "restock"},
		{"B-2", "9"},
	})

	rows, err := ingestion.Parse("tenants/t/files/f.XLSX", payload)
	require.NoError(t, err)
	assert.Equal(t, []map[string]string{
		{"sku": "A-1", "qty": "4", "note": "restock"},
		{"sku": "B-2", "qty": "9", "note": ""},
	}, rows)
}

func TestParseWorkbookRejectsGarbage(t *testing.T) {
	_, err := ingestion.Parse("f.xlsx", []byte("not a zip archive"))
	assert.ErrorIs(t, err, ingestion.ErrParse)
}
