package importer

import (
	"strings"

	"pos-checkout/internal/models"
)

// SoldBy is how an imported product is sold
type SoldBy string

const (
	PerPiece SoldBy = "per_piece"
	ByWeight SoldBy = "by_weight"
	ByVolume SoldBy = "by_volume"
)

var soldBySynonyms = map[string]SoldBy{
	"piece":     PerPiece,
	"pieces":    PerPiece,
	"per piece": PerPiece,
	"per_piece": PerPiece,
	"pc":        PerPiece,
	"pcs":       PerPiece,
	"unit":      PerPiece,
	"each":      PerPiece,
	"count":     PerPiece,
	"weight":    ByWeight,
	"by weight": ByWeight,
	"by_weight": ByWeight,
	"weighed":   ByWeight,
	"kg":        ByWeight,
	"gram":      ByWeight,
	"grams":     ByWeight,
	"volume":    ByVolume,
	"by volume": ByVolume,
	"by_volume": ByVolume,
	"liquid":    ByVolume,
	"liter":     ByVolume,
	"litre":     ByVolume,
	"ml":        ByVolume,
}

// ParseSoldBy maps a free-text sold-by cell to a SoldBy value
func ParseSoldBy(value string) (SoldBy, bool) {
	s, ok := soldBySynonyms[strings.ToLower(strings.TrimSpace(value))]
	return s, ok
}

// ProductType returns the product type a SoldBy value maps to
func (s SoldBy) ProductType() models.ProductType {
	switch s {
	case ByWeight:
		return models.ProductTypeWeight
	case ByVolume:
		return models.ProductTypeVolume
	default:
		return models.ProductTypeCount
	}
}
