package service

import "pricing-service/internal/catalog/model"

// MergeFeeds возвращает копию it с полями CRM/маркетплейса из кэша c
// (nil, если артикула в фиде нет). Исходная запись не меняется.
// При c == nil кэша нет вообще, запись возвращается как есть.
func MergeFeeds(it model.Item, c *model.FeedCache) model.Item {
	if c == nil {
		return it
	}
	it.CRMPrice, it.CRMStock, it.CRMCategoryID, it.CRMCategoryName, it.PromPrice = nil, nil, nil, nil, nil
	if o, ok := c.CRM[it.NormalizedID]; ok {
		it.CRMPrice = copyFloat(o.Price)
		it.CRMStock = copyFloat(o.Stock)
		if o.CategoryID != "" {
			id := o.CategoryID
			it.CRMCategoryID = &id
		}
		if o.CategoryName != "" {
			name := o.CategoryName
			it.CRMCategoryName = &name
		}
	}
	if p, ok := c.Prom[it.NormalizedID]; ok {
		it.PromPrice = &p
	}
	return it
}

// stripFeeds убирает данные фидов таблицы; сквозные виды берут только глобальный кэш.
func stripFeeds(it model.Item) model.Item {
	it.CRMPrice, it.CRMStock, it.CRMCategoryID, it.CRMCategoryName, it.PromPrice = nil, nil, nil, nil, nil
	return it
}

func copyFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
