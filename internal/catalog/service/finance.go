package service

import (
	"math"

	"pricing-service/internal/catalog/model"
)

// Фиксированные надбавки к себестоимости (доставка и упаковка), в валюте.
const (
	FeeDelivery = 20.0
	FeePacking  = 50.0
)

// DefaultCommission: комиссия в процентах, если в файле 0 или пусто.
const DefaultCommission = 17.0

// TotalCost: целевая себестоимость с учётом комиссии маркетплейса.
// При комиссии >= 100% формула теряет смысл, возвращаем 0.
func TotalCost(baseCost, commission float64) float64 {
	den := 1 - commission/100
	if den <= 0 {
		return 0
	}
	v := (baseCost + FeeDelivery + FeePacking) / den
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func Markup(totalCost float64, pct int) float64 {
	return totalCost * (1 + float64(pct)/100)
}

// NormalizeCommission: сначала доля (0,1) → проценты, затем 0 → DefaultCommission.
func NormalizeCommission(raw float64) float64 {
	if raw > 0 && raw < 1 {
		raw *= 100
	}
	if raw == 0 || math.IsNaN(raw) {
		return DefaultCommission
	}
	return raw
}

// Derive пересчитывает TotalCost и всю лестницу наценок разом.
// Единственное место, где эти поля записываются.
func Derive(it *model.Item) {
	it.TotalCost = TotalCost(it.BaseCost, it.Commission)
	for i, pct := range model.MarkupTiers {
		it.Markup[i] = Markup(it.TotalCost, pct)
	}
}

// SetCommission меняет комиссию и сразу пересчитывает производные поля.
func SetCommission(it *model.Item, commission float64) {
	it.Commission = commission
	Derive(it)
}
