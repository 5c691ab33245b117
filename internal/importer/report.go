package importer

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// RowError is a row-level failure reported back to the operator
type RowError struct {
	Row     int    `json:"row"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e RowError) String() string {
	if e.Field == "" {
		return fmt.Sprintf("Row %d: %s", e.Row, e.Message)
	}
	return fmt.Sprintf("Row %d: %s %s", e.Row, e.Field, e.Message)
}

// Report is the outcome of an import
type Report struct {
	SuccessCount int        `json:"success_count"`
	Errors       []RowError `json:"errors"`
}

// AddError records a parse error or a catalog rejection for a row
func (r *Report) AddError(err error) {
	var ve *ValidationError
	var de *DuplicateKeyError
	switch {
	case errors.As(err, &ve):
		r.Errors = append(r.Errors, RowError{Row: ve.Row, Field: ve.Field, Message: ve.Message})
	case errors.As(err, &de):
		r.Errors = append(r.Errors, RowError{
			Row:     de.Row,
			Field:   ColSKU,
			Message: fmt.Sprintf("duplicate %s (first seen in row %d)", de.SKU, de.FirstRow),
		})
	default:
		r.Errors = append(r.Errors, RowError{Message: err.Error()})
	}
}

// AddRowError records a message for a row
func (r *Report) AddRowError(row int, message string) {
	r.Errors = append(r.Errors, RowError{Row: row, Message: message})
}

// Sort orders errors by row
func (r *Report) Sort() {
	sort.SliceStable(r.Errors, func(i, j int) bool {
		return r.Errors[i].Row < r.Errors[j].Row
	})
}

// Summary renders the outcome, listing at most limit errors
func (r Report) Summary(limit int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Imported %d product(s)", r.SuccessCount)
	if len(r.Errors) == 0 {
		return b.String()
	}

	fmt.Fprintf(&b, ", %d error(s):", len(r.Errors))
	shown := r.Errors
	if limit >= 0 && len(shown) > limit {
		shown = shown[:limit]
	}
	for _, e := range shown {
		b.WriteString("\n")
		b.WriteString(e.String())
	}
	if rest := len(r.Errors) - len(shown); rest > 0 {
		fmt.Fprintf(&b, "\n+%d more", rest)
	}
	return b.String()
}
