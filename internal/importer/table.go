package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tealeg/xlsx"
)

var (
	ErrEmptyFile       = errors.New("file is empty or missing header row")
	ErrUnreadableFile  = errors.New("file could not be read")
	ErrUnsupportedFile = errors.New("unsupported file type")
)

// Table is a raw sheet: a header and its data rows, cells as text
type Table struct {
	Header []string
	Rows   [][]string
}

// ParseCSV reads a comma-separated sheet
func ParseCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableFile, err)
	}
	if len(records) == 0 {
		return nil, ErrEmptyFile
	}

	return &Table{Header: records[0], Rows: records[1:]}, nil
}

// ParseXLSX reads the first sheet of an Excel workbook
func ParseXLSX(r io.ReaderAt, size int64) (*Table, error) {
	file, err := xlsx.OpenReaderAt(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableFile, err)
	}
	if len(file.Sheets) == 0 || file.Sheets[0].MaxRow < 1 {
		return nil, ErrEmptyFile
	}

	sheet := file.Sheets[0]
	table := &Table{}
	for i, row := range sheet.Rows {
		if row == nil {
			continue
		}
		cells := make([]string, 0, len(row.Cells))
		for _, cell := range row.Cells {
			cells = append(cells, strings.TrimSpace(cell.String()))
		}
		if i == 0 {
			table.Header = cells
			continue
		}
		// Excel drops trailing empty cells
		for len(cells) < len(table.Header) {
			cells = append(cells, "")
		}
		table.Rows = append(table.Rows, cells)
	}

	if len(table.Header) == 0 {
		return nil, ErrEmptyFile
	}
	return table, nil
}

// ParseFile picks a reader by file extension
func ParseFile(filename string, r io.ReaderAt, size int64) (*Table, error) {
	switch ext := strings.ToLower(filename[strings.LastIndex(filename, ".")+1:]); ext {
	case "csv":
		return ParseCSV(io.NewSectionReader(r, 0, size))
	case "xlsx":
		return ParseXLSX(r, size)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFile, ext)
	}
}
