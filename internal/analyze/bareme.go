// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package analyze

import "github.com/olivia-legal/olivia/pkg/types"

// baremeSource labels where the static bands come from. The figures are
// indicative reference ranges, not legal advice.
const baremeSource = "barème indicatif 2024"

// bareme maps each prejudice category to its indicative compensation band in
// euros.
var bareme = map[string]types.Range{
	"gravite_lesions":            {Min: 2000, Max: 7000, Unit: "EUR", Source: baremeSource},
	"soins_intensifs":            {Min: 3000, Max: 12000, Unit: "EUR", Source: baremeSource},
	"impact_vie_quotidienne":     {Min: 4500, Max: 25000, Unit: "EUR", Source: baremeSource},
	"impact_professionnel":       {Min: 3000, Max: 20000, Unit: "EUR", Source: baremeSource},
	"souffrances_psychologiques": {Min: 1500, Max: 10000, Unit: "EUR", Source: baremeSource},
}

// Estimate sums the static bands for the detected categories. It returns nil
// when no category matched, so callers can omit the block entirely.
func Estimate(categories []types.CategoryHit) *types.Estimation {
	if len(categories) == 0 {
		return nil
	}

	est := &types.Estimation{PerCategory: make(map[string]types.Range)}
	for _, hit := range categories {
		band, ok := bareme[hit.Category]
		if !ok {
			continue
		}
		est.PerCategory[hit.Category] = band
		est.Total.Min += band.Min
		est.Total.Max += band.Max
	}
	if len(est.PerCategory) == 0 {
		return nil
	}
	est.Total.Unit = "EUR"
	est.Total.Source = baremeSource
	return est
}
