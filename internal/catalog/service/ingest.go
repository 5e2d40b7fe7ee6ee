package service

import (
	"errors"
	"slices"
	"strings"

	"pricing-service/internal/catalog/model"
	"pricing-service/internal/utils"
)

// ErrNoDataRows: в файле нет ни одной строки с данными после шапки.
var ErrNoDataRows = errors.New("no data rows after header")

// Позиции колонок в выгрузке фиксированы.
const (
	colID = iota
	colBaseCost
	colStock
	colDaysStock
	colSalesMonth
	colSales2Weeks
	colApplicationsMonth
	colApplications2Weeks
	colCommission
)

// OverrideSource отдаёт глобальные правки по нормализованному артикулу.
type OverrideSource interface {
	Get(normalizedID string) *model.Override
}

type IngestResult struct {
	Header []string
	Items  []model.Item
}

// Ingest превращает сырую сетку ячеек (строка 0 это шапка) в товары:
// числа в локали RU, нормализация комиссии, пересчёт цен, глобальные правки
// и, если есть, кэш фидов таблицы.
func Ingest(grid [][]string, norm *Normalizer, overrides OverrideSource, feeds *model.FeedCache) (IngestResult, error) {
	if len(grid) == 0 {
		return IngestResult{}, ErrNoDataRows
	}
	res := IngestResult{Header: slices.Clone(grid[0])}
	for _, row := range grid[1:] {
		if emptyRow(row) {
			continue
		}
		it := rowToItem(row, norm)
		if overrides != nil {
			applyOverride(&it, overrides.Get(it.NormalizedID))
		}
		if feeds != nil {
			it = MergeFeeds(it, feeds)
		}
		res.Items = append(res.Items, it)
	}
	if len(res.Items) == 0 {
		return IngestResult{}, ErrNoDataRows
	}
	return res, nil
}

func rowToItem(row []string, norm *Normalizer) model.Item {
	id := strings.TrimSpace(cell(row, colID))
	it := model.Item{
		ID:                    id,
		NormalizedID:          norm.Normalize(id),
		BaseCost:              number(cell(row, colBaseCost)),
		Stock:                 number(cell(row, colStock)),
		DaysOfStock:           number(cell(row, colDaysStock)),
		SalesPerMonth:         number(cell(row, colSalesMonth)),
		SalesPer2Weeks:        number(cell(row, colSales2Weeks)),
		ApplicationsPerMonth:  optNumber(cell(row, colApplicationsMonth)),
		ApplicationsPer2Weeks: optNumber(cell(row, colApplications2Weeks)),
		Commission:            NormalizeCommission(number(cell(row, colCommission))),
	}
	Derive(&it)
	return it
}

// applyOverride: комиссия из глобальных правок важнее файловой.
func applyOverride(it *model.Item, o *model.Override) {
	if o == nil {
		return
	}
	if o.Commission != nil && *o.Commission != it.Commission {
		SetCommission(it, *o.Commission)
	}
	it.PriceHistory = slices.Clone(o.PriceHistory)
	it.Comments = slices.Clone(o.Comments)
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

func emptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// number: нераспознанное значение → 0
func number(s string) float64 {
	f, _ := utils.ParseNumberRU(s)
	return f
}

// optNumber: нераспознанное или пустое → nil
func optNumber(s string) *float64 {
	f, ok := utils.ParseNumberRU(s)
	if !ok {
		return nil
	}
	return &f
}
