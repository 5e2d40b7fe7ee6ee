package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"pricing-service/internal/catalog/model"
)

var ErrUnknownView = errors.New("unknown view")

// ViewKind — вид сквозного представления: price_changed, commented, category:<type>.
type ViewKind string

const (
	ViewPriceChanged ViewKind = "price_changed"
	ViewCommented    ViewKind = "commented"

	categoryViewPrefix = "category:"
)

func CategoryView(t model.CategoryType) ViewKind { return ViewKind(categoryViewPrefix + string(t)) }

// Category возвращает тип категории для category:<type>.
func (k ViewKind) Category() (model.CategoryType, bool) {
	s, ok := strings.CutPrefix(string(k), categoryViewPrefix)
	if !ok {
		return "", false
	}
	t := model.CategoryType(s)
	return t, t.Valid()
}

func ParseViewKind(s string) (ViewKind, error) {
	k := ViewKind(s)
	switch k {
	case ViewPriceChanged, ViewCommented:
		return k, nil
	}
	if _, ok := k.Category(); ok {
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownView, s)
}

type occurrence struct {
	table *model.Table
	item  *model.Item
}

// TableView строит записи вида одной таблицы с её кэшем фидов.
func TableView(t *model.Table, feeds *model.FeedCache) []model.ViewItem {
	out := make([]model.ViewItem, 0, len(t.Data))
	for i := range t.Data {
		out = append(out, toView(MergeFeeds(t.Data[i], feeds), t))
	}
	return out
}

// BuildView собирает сквозной вид по всем таблицам: одна запись на нормализованный
// артикул. Данные фидов таблиц заменяются глобальным кэшем.
func BuildView(tables []*model.Table, kind ViewKind, global *model.FeedCache, cats model.Categories) []model.ViewItem {
	catType, isCategory := kind.Category()
	var members model.Membership
	if isCategory {
		members = cats[catType]
	}

	eligible := func(it *model.Item) bool {
		switch {
		case kind == ViewPriceChanged:
			return len(it.PriceHistory) > 0
		case kind == ViewCommented:
			return len(it.Comments) > 0
		case isCategory:
			_, ok := members[it.NormalizedID]
			return ok
		}
		return false
	}

	// группировка с сохранением порядка первого появления
	var order []string
	groups := make(map[string][]occurrence)
	for _, t := range tables {
		for i := range t.Data {
			it := &t.Data[i]
			if !eligible(it) {
				continue
			}
			if _, ok := groups[it.NormalizedID]; !ok {
				order = append(order, it.NormalizedID)
			}
			groups[it.NormalizedID] = append(groups[it.NormalizedID], occurrence{table: t, item: it})
		}
	}

	out := make([]model.ViewItem, 0, len(order))
	for _, nid := range order {
		g := groups[nid]
		var rep occurrence
		switch kind {
		case ViewPriceChanged:
			rep = pickLatest(g, func(it *model.Item) (time.Time, string, bool) {
				e, ok := it.LastPriceChange()
				return e.Date, e.SourceTableName, ok
			})
		case ViewCommented:
			rep = pickLatest(g, func(it *model.Item) (time.Time, string, bool) {
				c, ok := it.LastComment()
				return c.Date, c.SourceTableName, ok
			})
		default:
			rep = g[0]
		}

		base := stripFeeds(*rep.item)
		if global != nil {
			base = MergeFeeds(base, global)
		}
		v := toView(base, rep.table)
		if isCategory {
			if added, ok := members[nid]; ok {
				v.CategoryAddedDate = &added
			}
		}
		out = append(out, v)
	}
	return out
}

// pickLatest выбирает вхождение, чья последняя запись совпадает (дата + имя таблицы)
// с самой свежей записью по группе. Если точного совпадения нет, берётся первое
// вхождение с непустой историей. Такое расхождение возможно только при рассинхроне
// копий после раздачи правок.
// TODO: логировать срабатывание запасной ветки, чтобы понять, встречается ли рассинхрон на практике.
func pickLatest(g []occurrence, last func(*model.Item) (time.Time, string, bool)) occurrence {
	var (
		maxDate time.Time
		maxName string
		found   bool
	)
	for _, oc := range g {
		d, name, ok := last(oc.item)
		if !ok {
			continue
		}
		if !found || d.After(maxDate) {
			maxDate, maxName, found = d, name, true
		}
	}
	for _, oc := range g {
		d, name, ok := last(oc.item)
		if ok && d.Equal(maxDate) && name == maxName {
			return oc
		}
	}
	for _, oc := range g {
		if _, _, ok := last(oc.item); ok {
			return oc
		}
	}
	return g[0]
}

func toView(it model.Item, t *model.Table) model.ViewItem {
	v := model.ViewItem{Item: it, PrimaryTableName: t.Name, PrimaryTableID: t.ID}
	if e, ok := it.LastPriceChange(); ok {
		p, d := e.Price, e.Date
		v.LastPrice = &p
		v.LastPriceChangeDate = &d
	}
	if c, ok := it.LastComment(); ok {
		d := c.Date
		v.LastCommentText = c.Text
		v.LastCommentDate = &d
	}
	return v
}
