package importer

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"pos-checkout/internal/models"
	"pos-checkout/internal/units"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Column names
const (
	ColSKU           = "sku"
	ColName          = "name"
	ColCategory      = "category"
	ColSoldBy        = "sold_by"
	ColUnitSize      = "unit_size"
	ColQuantity      = "quantity"
	ColCostPrice     = "cost_price"
	ColSellingPrice  = "selling_price"
	ColLowStockLevel = "low_stock_level"
)

// RequiredColumns must all be present in the header
var RequiredColumns = []string{
	ColName, ColCategory, ColSoldBy, ColUnitSize, ColQuantity, ColCostPrice, ColSellingPrice,
}

var headerAliases = map[string]string{
	"product":       ColName,
	"product_name":  ColName,
	"type":          ColSoldBy,
	"size":          ColUnitSize,
	"qty":           ColQuantity,
	"stock":         ColQuantity,
	"cost":          ColCostPrice,
	"price":         ColSellingPrice,
	"low_stock":     ColLowStockLevel,
	"reorder_level": ColLowStockLevel,
}

// payload json field -> sheet column, for error messages
var fieldColumns = map[string]string{
	"product_type":      ColSoldBy,
	"base_unit":         ColUnitSize,
	"quantity_per_unit": ColUnitSize,
	"quantity_in_stock": ColQuantity,
}

var unitSizePattern = regexp.MustCompile(`^([0-9]*\.?[0-9]+)\s*([a-zA-Z]*)$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if col, ok := fieldColumns[name]; ok {
			return col
		}
		return name
	})
	return v
}

// Row is a validated data row ready for the catalog
type Row struct {
	Index   int
	Payload models.CreateProductPayload
}

// Result of parsing a table. Errors holds *ValidationError and
// *DuplicateKeyError values in row order.
type Result struct {
	Rows   []Row
	Errors []error
}

// Parse validates a table. Header problems fail the whole file; row
// problems are collected and the remaining rows are still returned.
// Row indices are 1-based over data rows.
func Parse(table *Table) (*Result, error) {
	columns, err := mapHeader(table.Header)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	seen := make(map[string]int)

	for i, cells := range table.Rows {
		index := i + 1
		if isBlank(cells) {
			continue
		}
		if len(cells) != len(table.Header) {
			res.Errors = append(res.Errors, &ValidationError{
				Row:     index,
				Message: fmt.Sprintf("expected %d columns, got %d", len(table.Header), len(cells)),
			})
			continue
		}

		get := func(col string) string {
			pos, ok := columns[col]
			if !ok {
				return ""
			}
			return strings.TrimSpace(cells[pos])
		}

		payload, rowErrs := parseRow(index, get)
		if len(rowErrs) > 0 {
			res.Errors = append(res.Errors, rowErrs...)
			continue
		}

		if payload.SKU == "" {
			payload.SKU = generateSKU()
		} else {
			key := strings.ToUpper(payload.SKU)
			if first, dup := seen[key]; dup {
				res.Errors = append(res.Errors, &DuplicateKeyError{Row: index, FirstRow: first, SKU: payload.SKU})
				continue
			}
			seen[key] = index
		}

		res.Rows = append(res.Rows, Row{Index: index, Payload: payload})
	}

	return res, nil
}

func mapHeader(header []string) (map[string]int, error) {
	columns := make(map[string]int, len(header))
	for i, h := range header {
		name := normalizeHeader(h)
		if alias, ok := headerAliases[name]; ok {
			name = alias
		}
		if _, dup := columns[name]; !dup {
			columns[name] = i
		}
	}

	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := columns[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Columns: missing}
	}
	return columns, nil
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	return strings.Join(strings.FieldsFunc(h, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_'
	}), "_")
}

func parseRow(index int, get func(string) string) (models.CreateProductPayload, []error) {
	var errs []error
	fail := func(field, msg string) {
		errs = append(errs, &ValidationError{Row: index, Field: field, Message: msg})
	}

	payload := models.CreateProductPayload{
		SKU:      get(ColSKU),
		Name:     get(ColName),
		Category: get(ColCategory),
	}

	soldBy, ok := ParseSoldBy(get(ColSoldBy))
	if !ok {
		fail(ColSoldBy, fmt.Sprintf("unknown value %q", get(ColSoldBy)))
	}
	payload.ProductType = soldBy.ProductType()

	qpu, unit, err := parseUnitSize(get(ColUnitSize), payload.ProductType)
	if err != nil && ok {
		fail(ColUnitSize, err.Error())
	}
	payload.QuantityPerUnit = qpu
	payload.BaseUnit = unit

	qty, err := parseNumber(get(ColQuantity))
	switch {
	case err != nil:
		fail(ColQuantity, "must be a number")
	case payload.ProductType == models.ProductTypeCount && qty != math.Trunc(qty):
		fail(ColQuantity, "must be a whole number")
	default:
		payload.QuantityInStock = units.ToBase(units.Quantity{Value: qty, Scale: units.ScaleDisplay},
			payload.ProductType, qpu, unit)
	}

	if payload.CostPrice, err = parseMoney(get(ColCostPrice)); err != nil {
		fail(ColCostPrice, "must be a number")
	}
	if payload.SellingPrice, err = parseMoney(get(ColSellingPrice)); err != nil {
		fail(ColSellingPrice, "must be a number")
	}
	if raw := get(ColLowStockLevel); raw != "" {
		if payload.LowStockLevel, err = parseNumber(raw); err != nil {
			fail(ColLowStockLevel, "must be a number")
		}
	}

	if err := validate.Struct(payload); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			fail("", err.Error())
			return payload, errs
		}
		for _, fe := range verrs {
			if hasFieldError(errs, fe.Field()) {
				continue
			}
			fail(fe.Field(), describe(fe))
		}
	}

	if len(errs) == 0 && payload.SellingPrice.LessThan(payload.CostPrice) {
		fail(ColSellingPrice, "must not be lower than cost_price")
	}

	return payload, errs
}

// parseUnitSize splits "1 L" or "500g" into a size and canonical unit.
// Piece products ignore the size.
func parseUnitSize(raw string, productType models.ProductType) (float64, string, error) {
	if productType == models.ProductTypeCount {
		return 1, units.Piece, nil
	}
	if raw == "" {
		return 0, "", fmt.Errorf("is required for products sold by weight or volume")
	}

	m := unitSizePattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return 0, "", fmt.Errorf("%q is not a size like \"500 g\"", raw)
	}
	size, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, "", fmt.Errorf("%q is not a size like \"500 g\"", raw)
	}

	if m[2] == "" {
		if productType == models.ProductTypeWeight {
			return size, units.Gram, nil
		}
		return size, units.Milliliter, nil
	}

	unit, ok := units.ParseUnit(m[2])
	if !ok {
		return 0, "", fmt.Errorf("unknown unit %q", m[2])
	}
	if dim, _ := units.Dimension(unit); dim != productType {
		return 0, "", fmt.Errorf("unit %s does not match sold_by", unit)
	}
	return size, unit, nil
}

var errNotFinite = errors.New("not a finite number")

func parseNumber(raw string) (float64, error) {
	f, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
	if err != nil {
		return 0, err
	}
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, errNotFinite
	}
	return f, nil
}

func parseMoney(raw string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.ReplaceAll(raw, ",", ""))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	default:
		return "is invalid"
	}
}

func hasFieldError(errs []error, field string) bool {
	for _, err := range errs {
		var ve *ValidationError
		if errors.As(err, &ve) && ve.Field == field {
			return true
		}
	}
	return false
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func generateSKU() string {
	return "SKU-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
}
