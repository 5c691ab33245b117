package importer

import (
	"fmt"
	"strings"
)

// ValidationError is a single field problem in one data row
type ValidationError struct {
	Row     int
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("row %d: %s", e.Row, e.Message)
	}
	return fmt.Sprintf("row %d: %s %s", e.Row, e.Field, e.Message)
}

// DuplicateKeyError is a SKU repeated within the same file
type DuplicateKeyError struct {
	Row      int
	FirstRow int
	SKU      string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("row %d: duplicate sku %s (first seen in row %d)", e.Row, e.SKU, e.FirstRow)
}

// MissingColumnsError lists every required column absent from the header
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Columns, ", "))
}
