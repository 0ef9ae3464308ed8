package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Table defines tabular export content. Each row holds one value per header.
type Table struct {
	Headers []string
	Rows    [][]string
}

// CSVOption customises a CSVExporter.
type CSVOption func(*CSVExporter)

// WithDelimiter switches the field separator, e.g. ';' for spreadsheets in comma-decimal locales.
func WithDelimiter(delimiter rune) CSVOption {
	return func(e *CSVExporter) {
		e.delimiter = delimiter
	}
}

// WithBOM prefixes the output with a UTF-8 byte order mark.
func WithBOM() CSVOption {
	return func(e *CSVExporter) {
		e.bom = true
	}
}

// CSVExporter renders tables into CSV bytes.
type CSVExporter struct {
	delimiter rune
	bom       bool
}

// NewCSVExporter builds a comma separated exporter unless options say otherwise.
func NewCSVExporter(opts ...CSVOption) *CSVExporter {
	e := &CSVExporter{delimiter: ','}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ParseDelimiter reads a single-character delimiter setting. Empty means comma.
func ParseDelimiter(raw string) (rune, error) {
	if raw == "" {
		return ',', nil
	}
	if raw == `\t` {
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(raw)
	if size != len(raw) {
		return 0, fmt.Errorf("csv delimiter %q must be a single character", raw)
	}
	return r, nil
}

// Render produces CSV bytes for the table. Short rows are padded with empty values;
// rows wider than the header are rejected.
func (e *CSVExporter) Render(data Table) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one header")
	}
	buf := &bytes.Buffer{}
	if e.bom {
		buf.Write(utf8BOM)
	}
	writer := csv.NewWriter(buf)
	writer.Comma = e.delimiter
	if err := writer.Write(data.Headers); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	record := make([]string, len(data.Headers))
	for i, row := range data.Rows {
		if len(row) > len(data.Headers) {
			return nil, fmt.Errorf("csv row %d has %d values for %d headers", i, len(row), len(data.Headers))
		}
		n := copy(record, row)
		for j := n; j < len(record); j++ {
			record[j] = ""
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row %d: %w", i, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
