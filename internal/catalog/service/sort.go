package service

import (
	"cmp"
	"slices"
	"strings"

	"pricing-service/internal/catalog/model"
)

// ToggleSort: переход сортировки по клику на колонку key:
// нет → asc → desc → нет; клик по другой колонке всегда даёт asc.
func ToggleSort(cur model.SortConfig, key model.Field) model.SortConfig {
	if cur.Key != key || cur.Direction == model.SortNone {
		return model.SortConfig{Key: key, Direction: model.SortAsc}
	}
	if cur.Direction == model.SortAsc {
		return model.SortConfig{Key: key, Direction: model.SortDesc}
	}
	return model.SortConfig{}
}

// EffectiveSort: у сквозных видов без явной сортировки свежие изменения идут сверху.
func EffectiveSort(cfg model.SortConfig, kind ViewKind) model.SortConfig {
	if cfg.Direction != model.SortNone && cfg.Key != "" {
		return cfg
	}
	switch kind {
	case ViewPriceChanged:
		return model.SortConfig{Key: model.FieldLastPriceChangeDate, Direction: model.SortDesc}
	case ViewCommented:
		return model.SortConfig{Key: model.FieldLastCommentDate, Direction: model.SortDesc}
	}
	return model.SortConfig{}
}

// SortItems возвращает отсортированную копию; сортировка устойчивая,
// пустые значения всегда в конце независимо от направления.
func SortItems(items []model.ViewItem, cfg model.SortConfig) []model.ViewItem {
	out := slices.Clone(items)
	if cfg.Direction == model.SortNone || cfg.Key == "" {
		return out
	}
	desc := cfg.Direction == model.SortDesc
	if isStringField(cfg.Key) {
		slices.SortStableFunc(out, func(a, b model.ViewItem) int {
			sa, okA := stringOf(&a, cfg.Key)
			sb, okB := stringOf(&b, cfg.Key)
			if c, done := nullsLast(okA, okB); done {
				return c
			}
			c := strings.Compare(strings.ToLower(sa), strings.ToLower(sb))
			if desc {
				c = -c
			}
			return c
		})
		return out
	}
	if isDateField(cfg.Key) {
		slices.SortStableFunc(out, func(a, b model.ViewItem) int {
			da, okA := dateOf(&a, cfg.Key)
			db, okB := dateOf(&b, cfg.Key)
			if c, done := nullsLast(okA, okB); done {
				return c
			}
			c := da.Compare(db)
			if desc {
				c = -c
			}
			return c
		})
		return out
	}
	slices.SortStableFunc(out, func(a, b model.ViewItem) int {
		na, okA := numberOf(&a, cfg.Key)
		nb, okB := numberOf(&b, cfg.Key)
		if c, done := nullsLast(okA, okB); done {
			return c
		}
		c := cmp.Compare(na, nb)
		if desc {
			c = -c
		}
		return c
	})
	return out
}

func nullsLast(okA, okB bool) (int, bool) {
	switch {
	case okA && okB:
		return 0, false
	case okA:
		return -1, true
	case okB:
		return 1, true
	}
	return 0, true
}
