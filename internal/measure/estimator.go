// Package measure estimates body measurements from a height and a photo.
package measure

import (
	"math"

	"makemyoutfit/internal/domain"
)

// Ratios applied to the height. They are a fixed heuristic, not a model of
// the photo.
const (
	ChestRatio = 0.54
	WaistRatio = 0.43
	HipsRatio  = 0.56
)

// Estimate derives chest, waist and hips from heightCm. The photo is required
// but its contents are not inspected.
func Estimate(heightCm float64, photo *domain.Photo) (domain.Measurements, error) {
	if photo == nil || len(photo.Data) == 0 || math.IsNaN(heightCm) || math.IsInf(heightCm, 0) || heightCm <= 0 {
		return domain.Measurements{}, domain.InvalidInput("Provide heightCm and userImage")
	}
	return domain.Measurements{
		ChestCm: int(math.Round(heightCm * ChestRatio)),
		WaistCm: int(math.Round(heightCm * WaistRatio)),
		HipsCm:  int(math.Round(heightCm * HipsRatio)),
	}, nil
}
