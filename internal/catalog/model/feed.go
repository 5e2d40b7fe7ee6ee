package model

import "time"

type FeedKind string

const (
	FeedCRM  FeedKind = "crm"
	FeedProm FeedKind = "prom"
)

func (k FeedKind) Valid() bool { return k == FeedCRM || k == FeedProm }

type LoadingStatus string

const (
	StatusNotLoaded LoadingStatus = "not_loaded"
	StatusLoading   LoadingStatus = "loading"
	StatusLoaded    LoadingStatus = "loaded"
	StatusError     LoadingStatus = "error"
)

// CRMOffer: запись CRM-фида. Stock=nil означает «нет данных», 0 означает реальный ноль.
type CRMOffer struct {
	Price        *float64 `json:"price"`
	Stock        *float64 `json:"stock"`
	CategoryID   string   `json:"categoryId,omitempty"`
	CategoryName string   `json:"categoryName,omitempty"`
}

type CRMCategory struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type FeedState struct {
	Status      LoadingStatus `json:"status"`
	LastUpdated *time.Time    `json:"lastUpdated,omitempty"`
	Count       int           `json:"count"`
	Error       string        `json:"error,omitempty"`
}

// FeedCache: кэш обоих фидов в одной области (глобально или для одной таблицы),
// ключ: нормализованный артикул.
type FeedCache struct {
	CRM       map[string]CRMOffer `json:"crm"`
	Prom      map[string]float64  `json:"prom"`
	CRMState  FeedState           `json:"crmState"`
	PromState FeedState           `json:"promState"`
}

func NewFeedCache() *FeedCache {
	return &FeedCache{
		CRM:       map[string]CRMOffer{},
		Prom:      map[string]float64{},
		CRMState:  FeedState{Status: StatusNotLoaded},
		PromState: FeedState{Status: StatusNotLoaded},
	}
}

// State возвращает состояние загрузки фида kind (nil для неизвестного вида).
func (c *FeedCache) State(kind FeedKind) *FeedState {
	switch kind {
	case FeedCRM:
		return &c.CRMState
	case FeedProm:
		return &c.PromState
	}
	return nil
}
