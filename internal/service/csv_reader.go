package service

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// csvRecord is one data row keyed by header.
type csvRecord map[string]string

// field returns the first non-empty value among the header synonyms.
func (r csvRecord) field(names ...string) string {
	for _, n := range names {
		if v := strings.TrimSpace(r[n]); v != "" {
			return v
		}
	}
	return ""
}

// detectDelimiter picks the separator from the first line, in the order
// given.
func detectDelimiter(firstLine string, order ...rune) rune {
	for _, d := range order {
		if strings.ContainsRune(firstLine, d) {
			return d
		}
	}
	return order[len(order)-1]
}

// readCSV decodes a UTF-8 file with an optional BOM and a header row.
func readCSV(r io.Reader, delimiters ...rune) ([]csvRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	firstLine := string(data)
	if i := strings.IndexByte(firstLine, '\n'); i >= 0 {
		firstLine = firstLine[:i]
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = detectDelimiter(firstLine, delimiters...)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: invalid csv header: %v", ErrValidation, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var records []csvRecord
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: invalid csv row: %v", ErrValidation, err)
		}
		rec := make(csvRecord, len(header))
		for i, h := range header {
			if i < len(row) {
				rec[h] = row[i]
			}
		}
		records = append(records, rec)
	}
	return records, nil
}
