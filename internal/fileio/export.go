package fileio

import (
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	excelize "github.com/xuri/excelize/v2"

	"pricing-service/internal/catalog/model"
)

const exportSheet = "Товары"

type exportColumn struct {
	title string
	value func(v *model.ViewItem) any
}

func money(f float64) any {
	d, _ := decimal.NewFromFloat(f).Round(2).Float64()
	return d
}

func optMoney(p *float64) any {
	if p == nil {
		return nil
	}
	return money(*p)
}

func optNumber(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func optDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Local().Format("2006-01-02 15:04")
}

func optString(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func exportColumns() []exportColumn {
	cols := []exportColumn{
		{"Артикул", func(v *model.ViewItem) any { return v.ID }},
		{"Себестоимость", func(v *model.ViewItem) any { return money(v.BaseCost) }},
		{"Комиссия, %", func(v *model.ViewItem) any { return money(v.Commission) }},
		{"Полная себестоимость", func(v *model.ViewItem) any { return money(v.TotalCost) }},
	}
	for i, pct := range model.MarkupTiers {
		cols = append(cols, exportColumn{
			title: fmt.Sprintf("Наценка %d%%", pct),
			value: func(v *model.ViewItem) any { return money(v.Markup[i]) },
		})
	}
	return append(cols,
		exportColumn{"Остаток", func(v *model.ViewItem) any { return v.Stock }},
		exportColumn{"Дней запаса", func(v *model.ViewItem) any { return v.DaysOfStock }},
		exportColumn{"Продажи за месяц", func(v *model.ViewItem) any { return v.SalesPerMonth }},
		exportColumn{"Продажи за 2 недели", func(v *model.ViewItem) any { return v.SalesPer2Weeks }},
		exportColumn{"Заявки за месяц", func(v *model.ViewItem) any { return optNumber(v.ApplicationsPerMonth) }},
		exportColumn{"Заявки за 2 недели", func(v *model.ViewItem) any { return optNumber(v.ApplicationsPer2Weeks) }},
		exportColumn{"Цена CRM", func(v *model.ViewItem) any { return optMoney(v.CRMPrice) }},
		exportColumn{"Остаток CRM", func(v *model.ViewItem) any { return optNumber(v.CRMStock) }},
		exportColumn{"Категория CRM", func(v *model.ViewItem) any { return optString(v.CRMCategoryName) }},
		exportColumn{"Цена Prom", func(v *model.ViewItem) any { return optMoney(v.PromPrice) }},
		exportColumn{"Последняя цена", func(v *model.ViewItem) any { return optMoney(v.LastPrice) }},
		exportColumn{"Дата изменения цены", func(v *model.ViewItem) any { return optDate(v.LastPriceChangeDate) }},
		exportColumn{"Комментарий", func(v *model.ViewItem) any { return v.LastCommentText }},
		exportColumn{"Дата комментария", func(v *model.ViewItem) any { return optDate(v.LastCommentDate) }},
		exportColumn{"Таблица", func(v *model.ViewItem) any { return v.PrimaryTableName }},
		exportColumn{"Добавлен в категорию", func(v *model.ViewItem) any { return optDate(v.CategoryAddedDate) }},
	)
}

// WriteXLSX выгружает записи вида в книгу с одним листом, деньги округлены до копеек.
func WriteXLSX(w io.Writer, items []model.ViewItem) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), exportSheet); err != nil {
		return err
	}
	cols := exportColumns()
	header := make([]any, len(cols))
	for i, c := range cols {
		header[i] = c.title
	}
	if err := f.SetSheetRow(exportSheet, "A1", &header); err != nil {
		return err
	}
	row := make([]any, len(cols))
	for i := range items {
		for j, c := range cols {
			row[j] = c.value(&items[i])
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return err
		}
	}
	if err := f.SetPanes(exportSheet, &excelize.Panes{
		Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft",
	}); err != nil {
		return err
	}
	_, err := f.WriteTo(w)
	return err
}
