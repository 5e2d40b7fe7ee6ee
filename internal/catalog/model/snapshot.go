package model

import "time"

// Snapshot — всё сохраняемое состояние приложения, один документ.
type Snapshot struct {
	Tables        []Table               `json:"tables"`
	Overrides     map[string]*Override  `json:"globalItemChanges"`
	Categories    Categories            `json:"categories"`
	GlobalFeeds   *FeedCache            `json:"globalXmlData"`
	TableFeeds    map[string]*FeedCache `json:"tableXmlData"`
	CRMCategories []CRMCategory         `json:"availableCrmCategories"`
	GlobalFilters Filters               `json:"globalFilters"`
	LastSaved     *time.Time            `json:"lastSaved,omitempty"`
}

// EmptySnapshot: состояние при первом запуске.
func EmptySnapshot() Snapshot {
	return Snapshot{
		Tables:        []Table{},
		Overrides:     map[string]*Override{},
		Categories:    NewCategories(),
		GlobalFeeds:   NewFeedCache(),
		TableFeeds:    map[string]*FeedCache{},
		CRMCategories: []CRMCategory{},
		GlobalFilters: DefaultFilters(),
	}
}

// Sanitize дополняет nil-поля пустыми значениями и выбрасывает неизвестные категории.
// Применяется к любому загруженному или импортированному снимку.
func (s *Snapshot) Sanitize() {
	if s.Tables == nil {
		s.Tables = []Table{}
	}
	if s.Overrides == nil {
		s.Overrides = map[string]*Override{}
	}
	cats := NewCategories()
	for t, m := range s.Categories {
		if !t.Valid() || m == nil {
			continue
		}
		cats[t] = m
	}
	s.Categories = cats
	if s.GlobalFeeds == nil {
		s.GlobalFeeds = NewFeedCache()
	}
	s.GlobalFeeds.fill()
	if s.TableFeeds == nil {
		s.TableFeeds = map[string]*FeedCache{}
	}
	for id, c := range s.TableFeeds {
		if c == nil {
			delete(s.TableFeeds, id)
			continue
		}
		c.fill()
	}
	if s.CRMCategories == nil {
		s.CRMCategories = []CRMCategory{}
	}
	if s.GlobalFilters.ItemsPerPage <= 0 {
		s.GlobalFilters.ItemsPerPage = DefaultItemsPerPage
	}
	if s.GlobalFilters.CurrentPage <= 0 {
		s.GlobalFilters.CurrentPage = 1
	}
	for i := range s.Tables {
		f := &s.Tables[i].Filters
		if f.ItemsPerPage <= 0 {
			f.ItemsPerPage = DefaultItemsPerPage
		}
		if f.CurrentPage <= 0 {
			f.CurrentPage = 1
		}
	}
}

func (c *FeedCache) fill() {
	if c.CRM == nil {
		c.CRM = map[string]CRMOffer{}
	}
	if c.Prom == nil {
		c.Prom = map[string]float64{}
	}
	// загрузка, прерванная перезапуском, не должна блокировать обновление
	for _, st := range []*FeedState{&c.CRMState, &c.PromState} {
		if st.Status == "" || st.Status == StatusLoading {
			st.Status = StatusNotLoaded
		}
	}
}
