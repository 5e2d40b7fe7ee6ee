package service

import (
	"time"

	"pricing-service/internal/catalog/model"
)

var t0 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

// fixedClock возвращает часы, которые идут на минуту вперёд при каждом вызове.
func fixedClock() func() time.Time {
	cur := t0
	return func() time.Time {
		cur = cur.Add(time.Minute)
		return cur
	}
}

func newTable(id, name string, norm *Normalizer, ids ...string) *model.Table {
	t := &model.Table{ID: id, Name: name, Filters: model.DefaultFilters()}
	for _, raw := range ids {
		it := model.Item{ID: raw, NormalizedID: norm.Normalize(raw), BaseCost: 100, Commission: DefaultCommission}
		Derive(&it)
		t.Data = append(t.Data, it)
	}
	return t
}

func ptr[T any](v T) *T { return &v }
