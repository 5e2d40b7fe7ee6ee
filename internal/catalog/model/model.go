package model

import "time"

// MarkupTiers: ступени наценки в процентах (10..100).
var MarkupTiers = [10]int{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}

// Ladder: цены с наценкой по ступеням MarkupTiers, считается от TotalCost.
type Ladder [10]float64

// At возвращает цену для ступени pct (10, 20, ... 100); ok=false для неизвестной ступени.
func (l Ladder) At(pct int) (float64, bool) {
	if pct < 10 || pct > 100 || pct%10 != 0 {
		return 0, false
	}
	return l[pct/10-1], true
}

type PriceChange struct {
	Price           float64   `json:"price"`
	Date            time.Time `json:"date"`
	SourceTableName string    `json:"sourceTableName"`
	SourceTableID   string    `json:"sourceTableId"`
	PreviousPrice   *float64  `json:"previousPrice"`
}

type Comment struct {
	ID              string    `json:"id"`
	Text            string    `json:"text"`
	Date            time.Time `json:"date"`
	SourceTableName string    `json:"sourceTableName"`
	SourceTableID   string    `json:"sourceTableId"`
}

// Item: одна строка загруженной таблицы.
// TotalCost и Markup всегда пересчитываются вместе (см. service.Derive).
type Item struct {
	ID           string `json:"id"`
	NormalizedID string `json:"normalizedId"`

	BaseCost   float64 `json:"baseCost"`
	Commission float64 `json:"commission"`
	TotalCost  float64 `json:"totalCost"`
	Markup     Ladder  `json:"markup"`

	Stock          float64 `json:"stock"`
	DaysOfStock    float64 `json:"daysStock"`
	SalesPerMonth  float64 `json:"salesMonth"`
	SalesPer2Weeks float64 `json:"sales2Weeks"`
	// nil значит «не отслеживается», это не 0
	ApplicationsPerMonth  *float64 `json:"applicationsMonth"`
	ApplicationsPer2Weeks *float64 `json:"applications2Weeks"`

	CRMPrice        *float64 `json:"crmPrice"`
	CRMStock        *float64 `json:"crmStock"`
	CRMCategoryID   *string  `json:"crmCategoryId"`
	CRMCategoryName *string  `json:"crmCategoryName"`
	PromPrice       *float64 `json:"promPrice"`

	PriceHistory []PriceChange `json:"priceHistory"`
	Comments     []Comment     `json:"comments"`
}

// LastPriceChange возвращает последнюю запись истории цен.
func (it Item) LastPriceChange() (PriceChange, bool) {
	if len(it.PriceHistory) == 0 {
		return PriceChange{}, false
	}
	return it.PriceHistory[len(it.PriceHistory)-1], true
}

func (it Item) LastComment() (Comment, bool) {
	if len(it.Comments) == 0 {
		return Comment{}, false
	}
	return it.Comments[len(it.Comments)-1], true
}

// ViewItem: запись представления, Item плюс поля, которые строятся при сборке вида.
// Один и тот же тип используется и для вида таблицы, и для сквозных видов.
type ViewItem struct {
	Item

	LastPrice           *float64   `json:"lastPrice,omitempty"`
	LastPriceChangeDate *time.Time `json:"lastPriceChangeDate,omitempty"`
	LastCommentText     string     `json:"lastCommentText,omitempty"`
	LastCommentDate     *time.Time `json:"lastCommentDate,omitempty"`
	PrimaryTableName    string     `json:"primaryTableName"`
	PrimaryTableID      string     `json:"primaryTableId"`
	CategoryAddedDate   *time.Time `json:"categoryAddedDate,omitempty"`
}

type Table struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	OriginalFileName string    `json:"fileName"`
	UploadTime       time.Time `json:"uploadTime"`
	Header           []string  `json:"header"`
	Data             []Item    `json:"data"`
	Filters          Filters   `json:"filters"`
}

// Override: правки пользователя по нормализованному артикулу, общие для всех таблиц.
type Override struct {
	Commission   *float64      `json:"commission,omitempty"`
	PriceHistory []PriceChange `json:"priceHistory,omitempty"`
	Comments     []Comment     `json:"comments,omitempty"`
}

// Clone: глубокая копия, безопасная для отдачи наружу.
func (o *Override) Clone() *Override {
	if o == nil {
		return nil
	}
	c := &Override{
		PriceHistory: append([]PriceChange(nil), o.PriceHistory...),
		Comments:     append([]Comment(nil), o.Comments...),
	}
	if o.Commission != nil {
		v := *o.Commission
		c.Commission = &v
	}
	return c
}
