package parser

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/dgallion1/docresearch/internal/layout"
)

// csvBatchSize is the number of data rows per table element.
const csvBatchSize = 20

// CSVParser handles CSV files. Rows are grouped into table elements of
// csvBatchSize rows, each repeating the header row.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) ([]*layout.Element, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	b := newPageBuilder()
	if len(records) == 0 {
		return b.elements, nil
	}

	headers := records[0]
	dataRows := records[1:]
	if len(dataRows) == 0 {
		b.add(layout.TypeTable, "", markdownTable([][]string{headers}))
		return b.elements, nil
	}

	for i := 0; i < len(dataRows); i += csvBatchSize {
		end := min(i+csvBatchSize, len(dataRows))
		rows := make([][]string, 0, end-i+1)
		rows = append(rows, headers)
		rows = append(rows, dataRows[i:end]...)
		b.add(layout.TypeTable, "", markdownTable(rows))
	}

	return b.elements, nil
}
