package importer

import (
	"errors"
	"strings"
	"testing"

	"pos-checkout/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const header = "sku,name,category,sold_by,unit_size,quantity,cost_price,selling_price,low_stock_level\n"

func parseCSV(t *testing.T, body string) *Result {
	t.Helper()
	table, err := ParseCSV(strings.NewReader(body))
	require.NoError(t, err)
	res, err := Parse(table)
	require.NoError(t, err)
	return res
}

func TestParseCollectsRowErrors(t *testing.T) {
	res := parseCSV(t, header+
		"PEN-1,Pen,Stationery,piece,,10,5,8,2\n"+
		"RICE-1,Rice,Grocery,weight,500 g,0,20,30,\n"+
		"OIL-1,Oil,Grocery,volume,1 L,4,80,100,1\n")

	require.Len(t, res.Rows, 2)
	require.Len(t, res.Errors, 1)

	var ve *ValidationError
	require.True(t, errors.As(res.Errors[0], &ve))
	assert.Equal(t, 2, ve.Row)
	assert.Equal(t, ColQuantity, ve.Field)

	assert.Equal(t, 1, res.Rows[0].Index)
	assert.Equal(t, 3, res.Rows[1].Index)
}

func TestParseRejectsNonFiniteNumbers(t *testing.T) {
	res := parseCSV(t, header+
		"PEN-1,Pen,Stationery,piece,,10,5,8,\n"+
		"MILK-1,Milk,Dairy,volume,1 L,inf,40,55,\n"+
		"EGG-1,Eggs,Dairy,piece,,12,2,3,NaN\n"+
		"OIL-1,Oil,Grocery,volume,1 L,+Inf,80,100,\n")

	require.Len(t, res.Rows, 1)
	assert.Equal(t, "PEN-1", res.Rows[0].Payload.SKU)
	require.Len(t, res.Errors, 3)

	fields := map[int]string{}
	for _, err := range res.Errors {
		var ve *ValidationError
		require.True(t, errors.As(err, &ve))
		fields[ve.Row] = ve.Field
	}
	assert.Equal(t, map[int]string{2: ColQuantity, 3: ColLowStockLevel, 4: ColQuantity}, fields)
}

func TestParseNormalizesUnits(t *testing.T) {
	res := parseCSV(t, header+
		"PEN-1,Pen,Stationery,pcs,,10,5,8,\n"+
		"OIL-1,Oil,Grocery,Liquid,1 L,4,80,100,1\n"+
		"RICE-1,Rice,Grocery,by weight,500,3,20,30,\n")
	require.Empty(t, res.Errors)
	require.Len(t, res.Rows, 3)

	pen := res.Rows[0].Payload
	assert.Equal(t, models.ProductTypeCount, pen.ProductType)
	assert.Equal(t, "piece", pen.BaseUnit)
	assert.Equal(t, 10.0, pen.QuantityInStock)

	oil := res.Rows[1].Payload
	assert.Equal(t, models.ProductTypeVolume, oil.ProductType)
	assert.Equal(t, "l", oil.BaseUnit)
	assert.Equal(t, 1.0, oil.QuantityPerUnit)
	assert.Equal(t, 4000.0, oil.QuantityInStock)
	assert.Equal(t, 1.0, oil.LowStockLevel)

	rice := res.Rows[2].Payload
	assert.Equal(t, "g", rice.BaseUnit)
	assert.Equal(t, 1500.0, rice.QuantityInStock)
	assert.True(t, rice.SellingPrice.Equal(decimal.NewFromInt(30)))
}

func TestParseRowValidation(t *testing.T) {
	tests := []struct {
		name  string
		row   string
		field string
	}{
		{"missing name", "A,,Misc,piece,,1,1,2,", ColName},
		{"selling below cost", "A,Thing,Misc,piece,,1,10,5,", ColSellingPrice},
		{"unknown sold by", "A,Thing,Misc,gaseous,,1,1,2,", ColSoldBy},
		{"unit mismatch", "A,Thing,Misc,weight,1 L,1,1,2,", ColUnitSize},
		{"missing unit size", "A,Thing,Misc,volume,,1,1,2,", ColUnitSize},
		{"fractional pieces", "A,Thing,Misc,piece,,1.5,1,2,", ColQuantity},
		{"bad price", "A,Thing,Misc,piece,,1,abc,2,", ColCostPrice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := parseCSV(t, header+tt.row+"\n")
			assert.Empty(t, res.Rows)
			require.NotEmpty(t, res.Errors)

			var ve *ValidationError
			require.True(t, errors.As(res.Errors[0], &ve))
			assert.Equal(t, 1, ve.Row)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestParseDuplicateSKU(t *testing.T) {
	res := parseCSV(t, header+
		"A,One,Misc,piece,,1,1,2,\n"+
		"a,Two,Misc,piece,,1,1,2,\n")

	require.Len(t, res.Rows, 1)
	require.Len(t, res.Errors, 1)

	var de *DuplicateKeyError
	require.True(t, errors.As(res.Errors[0], &de))
	assert.Equal(t, 2, de.Row)
	assert.Equal(t, 1, de.FirstRow)
}

func TestParseGeneratesSKUAndSkipsBlankRows(t *testing.T) {
	res := parseCSV(t, header+
		",One,Misc,piece,,1,1,2,\n"+
		",,,,,,,,\n"+
		",Two,Misc,piece,,1,1,2,\n")

	require.Empty(t, res.Errors)
	require.Len(t, res.Rows, 2)
	assert.True(t, strings.HasPrefix(res.Rows[0].Payload.SKU, "SKU-"))
	assert.NotEqual(t, res.Rows[0].Payload.SKU, res.Rows[1].Payload.SKU)
	assert.Equal(t, 3, res.Rows[1].Index)
}

func TestParseColumnCountMismatch(t *testing.T) {
	res := parseCSV(t, header+"A,One,Misc,piece\n")
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0].Error(), "expected 9 columns, got 4")
}

func TestParseMissingColumns(t *testing.T) {
	table, err := ParseCSV(strings.NewReader("Name,Qty,Price\nPen,1,2\n"))
	require.NoError(t, err)

	_, err = Parse(table)
	var mce *MissingColumnsError
	require.True(t, errors.As(err, &mce))
	assert.Equal(t, []string{ColCategory, ColSoldBy, ColUnitSize, ColCostPrice}, mce.Columns)
}

func TestParseEmptyFile(t *testing.T) {
	_, err := ParseCSV(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmptyFile)
}

func TestReportSummary(t *testing.T) {
	report := Report{SuccessCount: 2}
	assert.Equal(t, "Imported 2 product(s)", report.Summary(3))

	report.AddError(&ValidationError{Row: 4, Field: ColQuantity, Message: "must be greater than 0"})
	report.AddError(&DuplicateKeyError{Row: 2, FirstRow: 1, SKU: "A"})
	report.AddRowError(7, "sku already exists")
	report.Sort()

	assert.Equal(t, 2, report.Errors[0].Row)
	assert.Equal(t,
		"Imported 2 product(s), 3 error(s):\nRow 2: sku duplicate A (first seen in row 1)\n+2 more",
		report.Summary(1))
}
