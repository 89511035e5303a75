package ingestion

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/xuri/excelize/v2"
)

var byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

// Parse reads tabular content into one field mapping per data row. The first
// non-empty row names the fields. Keys ending in .xlsx are read from the
// first worksheet; anything else is comma-delimited text. Cells are kept as
// strings.
func Parse(key string, payload []byte) ([]map[string]string, error) {
	if strings.EqualFold(path.Ext(key), ".xlsx") {
		rows, err := readSheet(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrParse, err)
		}
		// spreadsheet rows omit trailing empty cells
		return tabulate(rows, true)
	}

	rows, err := readDelimited(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	return tabulate(rows, false)
}

func readDelimited(payload []byte) ([][]string, error) {
	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	r := csv.NewReader(reader)
	r.FieldsPerRecord = -1

	var rows [][]string
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		rows = append(rows, row)
	}
}

func readSheet(payload []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

func tabulate(rows [][]string, padShort bool) ([]map[string]string, error) {
	var headers []string
	out := make([]map[string]string, 0, len(rows))

	for i, row := range rows {
		if blank(row) {
			continue
		}

		if headers == nil {
			h, err := headerRow(row)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrParse, err)
			}
			headers = h
			continue
		}

		if len(row) > len(headers) || (len(row) < len(headers) && !padShort) {
			return nil, fmt.Errorf(
				"%w: row %d has %d fields, header has %d",
				ErrParse, i+1, len(row), len(headers),
			)
		}

		record := make(map[string]string, len(headers))
		for col, name := range headers {
			if col < len(row) {
				record[name] = row[col]
			} else {
				record[name] = ""
			}
		}
		out = append(out, record)
	}

	if headers == nil {
		return nil, fmt.Errorf("%w: no header row", ErrParse)
	}
	return out, nil
}

func headerRow(row []string) ([]string, error) {
	headers := make([]string, len(row))
	seen := make(map[string]bool, len(row))

	for i, cell := range row {
		name := strings.TrimSpace(cell)
		if name == "" {
			return nil, fmt.Errorf("header column %d is empty", i+1)
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate header %q", name)
		}
		seen[name] = true
		headers[i] = name
	}
	return headers, nil
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
