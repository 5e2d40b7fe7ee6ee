package model

import "time"

type CategoryType string

const (
	CategoryNew          CategoryType = "new"
	CategoryOptimization CategoryType = "optimization"
	CategoryAB           CategoryType = "ab"
	CategoryCSale        CategoryType = "c_sale"
	CategoryOffSeason    CategoryType = "off_season"
	CategoryUnprofitable CategoryType = "unprofitable"
)

// CategoryTypes: фиксированный набор ручных категорий, в порядке отображения.
var CategoryTypes = []CategoryType{
	CategoryNew, CategoryOptimization, CategoryAB, CategoryCSale, CategoryOffSeason, CategoryUnprofitable,
}

func (c CategoryType) Valid() bool {
	for _, t := range CategoryTypes {
		if t == c {
			return true
		}
	}
	return false
}

// Membership: normalizedId → дата добавления. Товар может состоять в нескольких категориях.
type Membership map[string]time.Time

type Categories map[CategoryType]Membership

// NewCategories возвращает пустые множества для всех типов.
func NewCategories() Categories {
	c := make(Categories, len(CategoryTypes))
	for _, t := range CategoryTypes {
		c[t] = Membership{}
	}
	return c
}
