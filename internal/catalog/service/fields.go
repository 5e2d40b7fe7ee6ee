package service

import (
	"strconv"
	"strings"
	"time"

	"pricing-service/internal/catalog/model"
)

// numberOf возвращает числовое значение колонки; ok=false, если значения нет (null)
// или колонка не числовая.
func numberOf(v *model.ViewItem, f model.Field) (float64, bool) {
	switch f {
	case model.FieldBaseCost:
		return v.BaseCost, true
	case model.FieldCommission:
		return v.Commission, true
	case model.FieldTotalCost:
		return v.TotalCost, true
	case model.FieldStock:
		return v.Stock, true
	case model.FieldDaysStock:
		return v.DaysOfStock, true
	case model.FieldSalesMonth:
		return v.SalesPerMonth, true
	case model.FieldSales2Weeks:
		return v.SalesPer2Weeks, true
	case model.FieldApplicationsMonth:
		return deref(v.ApplicationsPerMonth)
	case model.FieldApplications2Weeks:
		return deref(v.ApplicationsPer2Weeks)
	case model.FieldCRMPrice:
		return deref(v.CRMPrice)
	case model.FieldCRMStock:
		return deref(v.CRMStock)
	case model.FieldPromPrice:
		return deref(v.PromPrice)
	case model.FieldLastPrice:
		return deref(v.LastPrice)
	case model.FieldLastPriceChangeDate:
		if v.LastPriceChangeDate == nil {
			return 0, false
		}
		return float64(v.LastPriceChangeDate.UnixNano()), true
	case model.FieldLastCommentDate:
		if v.LastCommentDate == nil {
			return 0, false
		}
		return float64(v.LastCommentDate.UnixNano()), true
	case model.FieldCategoryAddedDate:
		if v.CategoryAddedDate == nil {
			return 0, false
		}
		return float64(v.CategoryAddedDate.UnixNano()), true
	}
	if pct, ok := markupPct(f); ok {
		m, _ := v.Markup.At(pct)
		return m, true
	}
	return 0, false
}

// dateOf возвращает дату для колонок-дат; ok=false, если даты нет или колонка другая.
func dateOf(v *model.ViewItem, f model.Field) (time.Time, bool) {
	var d *time.Time
	switch f {
	case model.FieldLastPriceChangeDate:
		d = v.LastPriceChangeDate
	case model.FieldLastCommentDate:
		d = v.LastCommentDate
	case model.FieldCategoryAddedDate:
		d = v.CategoryAddedDate
	}
	if d == nil {
		return time.Time{}, false
	}
	return *d, true
}

func isDateField(f model.Field) bool {
	switch f {
	case model.FieldLastPriceChangeDate, model.FieldLastCommentDate, model.FieldCategoryAddedDate:
		return true
	}
	return false
}

// stringOf: значение строковой колонки; ok=false для пустого/отсутствующего.
func stringOf(v *model.ViewItem, f model.Field) (string, bool) {
	var s string
	switch f {
	case model.FieldID:
		s = v.ID
	case model.FieldCRMCategoryName:
		if v.CRMCategoryName != nil {
			s = *v.CRMCategoryName
		}
	case model.FieldLastCommentText:
		s = v.LastCommentText
	case model.FieldPrimaryTableName:
		s = v.PrimaryTableName
	}
	return s, s != ""
}

func isStringField(f model.Field) bool {
	switch f {
	case model.FieldID, model.FieldCRMCategoryName, model.FieldLastCommentText, model.FieldPrimaryTableName:
		return true
	}
	return false
}

// KnownField сообщает, можно ли сортировать/фильтровать по колонке.
func KnownField(f model.Field) bool {
	if isStringField(f) {
		return true
	}
	if _, ok := markupPct(f); ok {
		return true
	}
	switch f {
	case model.FieldBaseCost, model.FieldCommission, model.FieldTotalCost, model.FieldStock,
		model.FieldDaysStock, model.FieldSalesMonth, model.FieldSales2Weeks,
		model.FieldApplicationsMonth, model.FieldApplications2Weeks,
		model.FieldCRMPrice, model.FieldCRMStock, model.FieldPromPrice, model.FieldLastPrice,
		model.FieldLastPriceChangeDate, model.FieldLastCommentDate, model.FieldCategoryAddedDate:
		return true
	}
	return false
}

// RangeField сообщает, можно ли задать по колонке числовой диапазон min/max.
func RangeField(f model.Field) bool {
	return KnownField(f) && !isStringField(f)
}

func markupPct(f model.Field) (int, bool) {
	s, ok := strings.CutPrefix(string(f), "markup")
	if !ok {
		return 0, false
	}
	pct, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	_, ok = model.Ladder{}.At(pct)
	return pct, ok
}

func deref(p *float64) (float64, bool) {
	if p == nil {
		return 0, false
	}
	return *p, true
}
