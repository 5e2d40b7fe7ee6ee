package model

import (
	"fmt"
	"time"
)

// DefaultItemsPerPage: размер страницы, если не задан.
const DefaultItemsPerPage = 50

// Field: имя колонки для фильтров по диапазону и сортировки.
type Field string

const (
	FieldID                  Field = "id"
	FieldBaseCost            Field = "baseCost"
	FieldCommission          Field = "commission"
	FieldTotalCost           Field = "totalCost"
	FieldStock               Field = "stock"
	FieldDaysStock           Field = "daysStock"
	FieldSalesMonth          Field = "salesMonth"
	FieldSales2Weeks         Field = "sales2Weeks"
	FieldApplicationsMonth   Field = "applicationsMonth"
	FieldApplications2Weeks  Field = "applications2Weeks"
	FieldCRMPrice            Field = "crmPrice"
	FieldCRMStock            Field = "crmStock"
	FieldCRMCategoryName     Field = "crmCategoryName"
	FieldPromPrice           Field = "promPrice"
	FieldLastPrice           Field = "lastPrice"
	FieldLastPriceChangeDate Field = "lastPriceChangeDate"
	FieldLastCommentText     Field = "lastCommentText"
	FieldLastCommentDate     Field = "lastCommentDate"
	FieldPrimaryTableName    Field = "primaryTableName"
	FieldCategoryAddedDate   Field = "categoryAddedDate"
)

// MarkupField возвращает колонку ступени наценки, MarkupField(30) == "markup30".
func MarkupField(pct int) Field { return Field(fmt.Sprintf("markup%d", pct)) }

// Range: граница nil означает отсутствие ограничения.
type Range struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

func (r Range) Empty() bool { return r.Min == nil && r.Max == nil }

type DateRange struct {
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`
}

func (r DateRange) Active() bool { return r.From != nil || r.To != nil }

type SortDirection string

const (
	SortNone SortDirection = ""
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

type SortConfig struct {
	Key       Field         `json:"key,omitempty"`
	Direction SortDirection `json:"direction,omitempty"`
}

// Filters: настройки вида, одна копия на таблицу и одна для сквозных видов.
type Filters struct {
	SearchID string          `json:"searchId,omitempty"`
	Ranges   map[Field]Range `json:"ranges,omitempty"`

	ShowOnlyMarketplace bool `json:"showOnlyMarketplace,omitempty"`
	HideZeroCRMStock    bool `json:"hideZeroCrmStock,omitempty"`
	HideLowCRMStock     bool `json:"hideLowCrmStock,omitempty"`

	// только для вида таблицы
	HiddenCRMCategories []string `json:"hiddenCrmCategories,omitempty"`
	HidePriceChanged    bool     `json:"hidePriceChanged,omitempty"`

	// только для сквозных видов
	PriceChangeDate DateRange `json:"priceChangeDate,omitempty"`
	CommentDate     DateRange `json:"commentDate,omitempty"`

	Sort         SortConfig `json:"sortConfig"`
	CurrentPage  int        `json:"currentPage"`
	ItemsPerPage int        `json:"itemsPerPage"`
}

// DefaultFilters: пустые фильтры на первой странице.
func DefaultFilters() Filters {
	return Filters{CurrentPage: 1, ItemsPerPage: DefaultItemsPerPage}
}
