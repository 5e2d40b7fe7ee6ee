package service

import (
	"math"
	"reflect"
	"slices"
	"strings"
	"time"

	"pricing-service/internal/catalog/model"
)

// LowCRMStock: остаток CRM ниже этого порога скрывается фильтром «мало на складе».
const LowCRMStock = 6

// Границы фильтра по датам, если одна из сторон не задана.
var (
	dateFloor = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)
	dateCeil  = time.Date(2100, 12, 31, 23, 59, 59, 0, time.UTC)
)

// Scope определяет, где применяется конвейер: у вида таблицы и у сквозных видов разные этапы.
type Scope int

const (
	ScopeTable Scope = iota
	ScopeGlobal
)

type Query struct {
	Filters model.Filters
	Scope   Scope
	Kind    ViewKind // только для ScopeGlobal: сортировка по умолчанию
}

type Page struct {
	Items      []model.ViewItem `json:"items"`
	Page       int              `json:"page"`
	PerPage    int              `json:"perPage"`
	TotalPages int              `json:"totalPages"`
	TotalItems int              `json:"totalItems"`
	Sort       model.SortConfig `json:"sort"`
}

// Compose: поиск → переключатели → скрытые категории → изменённые цены →
// диапазоны → даты → сортировка → страница.
func Compose(items []model.ViewItem, q Query, norm *Normalizer) Page {
	sorted, sortCfg := Arrange(items, q, norm)
	p := Paginate(sorted, q.Filters.CurrentPage, q.Filters.ItemsPerPage)
	p.Sort = sortCfg
	return p
}

// Arrange делает всё, кроме разбивки на страницы: отфильтрованный и отсортированный список
// и фактически применённая сортировка.
func Arrange(items []model.ViewItem, q Query, norm *Normalizer) ([]model.ViewItem, model.SortConfig) {
	filtered := FilterItems(items, q.Filters, q.Scope, norm)
	sortCfg := q.Filters.Sort
	if q.Scope == ScopeGlobal {
		sortCfg = EffectiveSort(sortCfg, q.Kind)
	}
	return SortItems(filtered, sortCfg), sortCfg
}

// FilterItems применяет этапы фильтрации строго по порядку. Входной срез не меняется.
func FilterItems(items []model.ViewItem, f model.Filters, scope Scope, norm *Normalizer) []model.ViewItem {
	out := slices.Clone(items)

	if term := norm.Normalize(strings.TrimSpace(f.SearchID)); term != "" {
		out = slices.DeleteFunc(out, func(v model.ViewItem) bool {
			return !strings.Contains(v.NormalizedID, term)
		})
	}

	out = slices.DeleteFunc(out, func(v model.ViewItem) bool { return !passToggles(&v, f) })

	if scope == ScopeTable {
		if len(f.HiddenCRMCategories) > 0 {
			hidden := make(map[string]struct{}, len(f.HiddenCRMCategories))
			for _, id := range f.HiddenCRMCategories {
				hidden[id] = struct{}{}
			}
			out = slices.DeleteFunc(out, func(v model.ViewItem) bool {
				if v.CRMCategoryID == nil {
					return false
				}
				_, ok := hidden[*v.CRMCategoryID]
				return ok
			})
		}
		if f.HidePriceChanged {
			out = slices.DeleteFunc(out, func(v model.ViewItem) bool { return len(v.PriceHistory) > 0 })
		}
	}

	if len(f.Ranges) > 0 {
		out = slices.DeleteFunc(out, func(v model.ViewItem) bool { return !passRanges(&v, f.Ranges) })
	}

	if scope == ScopeGlobal {
		if f.PriceChangeDate.Active() {
			out = slices.DeleteFunc(out, func(v model.ViewItem) bool {
				return !inDateRange(v.LastPriceChangeDate, f.PriceChangeDate)
			})
		}
		if f.CommentDate.Active() {
			out = slices.DeleteFunc(out, func(v model.ViewItem) bool {
				return !inDateRange(v.LastCommentDate, f.CommentDate)
			})
		}
	}
	return out
}

func passToggles(v *model.ViewItem, f model.Filters) bool {
	if f.ShowOnlyMarketplace && (v.PromPrice == nil || *v.PromPrice <= 0) {
		return false
	}
	// nil: остаток неизвестен, это не ноль
	if f.HideZeroCRMStock && v.CRMStock != nil && *v.CRMStock == 0 {
		return false
	}
	if f.HideLowCRMStock && v.CRMStock != nil && *v.CRMStock < LowCRMStock {
		return false
	}
	return true
}

func passRanges(v *model.ViewItem, ranges map[model.Field]model.Range) bool {
	for field, r := range ranges {
		if r.Empty() || !KnownField(field) || isStringField(field) {
			continue
		}
		val, ok := numberOf(v, field)
		if !ok {
			switch field {
			case model.FieldCRMPrice, model.FieldPromPrice:
				val = 0
			default:
				// неизвестное значение в диапазон не попадает и не отсекается
				continue
			}
		}
		lo, hi := math.Inf(-1), math.Inf(1)
		if r.Min != nil {
			lo = *r.Min
		}
		if r.Max != nil {
			hi = *r.Max
		}
		if val < lo || val > hi {
			return false
		}
	}
	return true
}

func inDateRange(d *time.Time, r model.DateRange) bool {
	if d == nil {
		return false
	}
	from, to := dateFloor, dateCeil
	if r.From != nil {
		from = *r.From
	}
	if r.To != nil {
		to = *r.To
	}
	return !d.Before(from) && !d.After(to)
}

// Paginate режет отсортированный список на страницы; page с 1.
// Страница за пределами списка пустая.
func Paginate(items []model.ViewItem, page, perPage int) Page {
	if perPage <= 0 {
		perPage = model.DefaultItemsPerPage
	}
	if page < 1 {
		page = 1
	}
	total := len(items)
	pages := (total + perPage - 1) / perPage
	if pages == 0 {
		pages = 1
	}
	p := Page{Page: page, PerPage: perPage, TotalPages: pages, TotalItems: total, Items: []model.ViewItem{}}
	start := (page - 1) * perPage
	if start >= total {
		return p
	}
	end := min(start+perPage, total)
	p.Items = items[start:end]
	return p
}

// UpdateFilters принимает новые фильтры; любое изменение, кроме номера страницы,
// возвращает на первую страницу.
func UpdateFilters(prev, next model.Filters) model.Filters {
	a, b := prev, next
	a.CurrentPage, b.CurrentPage = 0, 0
	if !reflect.DeepEqual(normalizedFilters(a), normalizedFilters(b)) {
		next.CurrentPage = 1
	}
	if next.CurrentPage < 1 {
		next.CurrentPage = 1
	}
	if next.ItemsPerPage <= 0 {
		next.ItemsPerPage = model.DefaultItemsPerPage
	}
	return next
}

// normalizedFilters убирает разницу nil/пустая коллекция перед сравнением.
func normalizedFilters(f model.Filters) model.Filters {
	if len(f.Ranges) == 0 {
		f.Ranges = nil
	} else {
		rs := make(map[model.Field]model.Range, len(f.Ranges))
		for k, r := range f.Ranges {
			if !r.Empty() {
				rs[k] = r
			}
		}
		f.Ranges = rs
		if len(rs) == 0 {
			f.Ranges = nil
		}
	}
	if len(f.HiddenCRMCategories) == 0 {
		f.HiddenCRMCategories = nil
	}
	return f
}
