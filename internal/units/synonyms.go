package units

import (
	"strings"

	"pos-checkout/internal/models"
)

var unitSynonyms = map[string]string{
	"pc":          Piece,
	"pcs":         Piece,
	"piece":       Piece,
	"pieces":      Piece,
	"unit":        Piece,
	"units":       Piece,
	"ea":          Piece,
	"each":        Piece,
	"g":           Gram,
	"gm":          Gram,
	"gms":         Gram,
	"gr":          Gram,
	"gram":        Gram,
	"grams":       Gram,
	"kg":          Kilogram,
	"kgs":         Kilogram,
	"kilo":        Kilogram,
	"kilos":       Kilogram,
	"kilogram":    Kilogram,
	"kilograms":   Kilogram,
	"ml":          Milliliter,
	"mls":         Milliliter,
	"milliliter":  Milliliter,
	"milliliters": Milliliter,
	"millilitre":  Milliliter,
	"millilitres": Milliliter,
	"l":           Liter,
	"lt":          Liter,
	"ltr":         Liter,
	"liter":       Liter,
	"liters":      Liter,
	"litre":       Liter,
	"litres":      Liter,
}

var unitDimension = map[string]models.ProductType{
	Piece:      models.ProductTypeCount,
	Gram:       models.ProductTypeWeight,
	Kilogram:   models.ProductTypeWeight,
	Milliliter: models.ProductTypeVolume,
	Liter:      models.ProductTypeVolume,
}

var productTypeSynonyms = map[string]models.ProductType{
	"count":    models.ProductTypeCount,
	"piece":    models.ProductTypeCount,
	"pieces":   models.ProductTypeCount,
	"pcs":      models.ProductTypeCount,
	"unit":     models.ProductTypeCount,
	"weight":   models.ProductTypeWeight,
	"weighted": models.ProductTypeWeight,
	"mass":     models.ProductTypeWeight,
	"volume":   models.ProductTypeVolume,
	"liquid":   models.ProductTypeVolume,
}

// ParseUnit maps a free-text unit token to its canonical form
func ParseUnit(token string) (string, bool) {
	u, ok := unitSynonyms[strings.ToLower(strings.TrimSpace(token))]
	return u, ok
}

// Dimension returns the product type a canonical unit measures
func Dimension(unit string) (models.ProductType, bool) {
	t, ok := unitDimension[unit]
	return t, ok
}

// ParseProductType maps a loosely typed catalog value to a ProductType
func ParseProductType(value string) (models.ProductType, bool) {
	t, ok := productTypeSynonyms[strings.ToLower(strings.TrimSpace(value))]
	return t, ok
}
