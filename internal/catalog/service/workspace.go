package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"pricing-service/internal/catalog/model"
	"pricing-service/internal/feed"
)

// GlobalScope: область глобального кэша фидов (иначе областью служит id таблицы).
const GlobalScope = "global"

var (
	ErrTableNotFound   = errors.New("table not found")
	ErrUnknownCategory = errors.New("unknown category")
	ErrUnknownField    = errors.New("unknown field")
	ErrUnknownFeed     = errors.New("unknown feed")
	ErrFeedLoading     = errors.New("feed refresh already in progress")
	ErrNoFetcher       = errors.New("feed fetcher not configured")
)

// Store: внешнее хранилище состояния (файл или Postgres).
type Store interface {
	Load(ctx context.Context) (model.Snapshot, error)
	Save(ctx context.Context, snap model.Snapshot) error
	DeleteTable(ctx context.Context, tableID string) error
}

// Fetcher скачивает сырой XML фида.
type Fetcher interface {
	Fetch(ctx context.Context, kind model.FeedKind) ([]byte, error)
}

type Options struct {
	Logger       zerolog.Logger
	Store        Store
	Fetcher      Fetcher
	SaveDebounce time.Duration
	ItemsPerPage int
	Now          func() time.Time
}

// Workspace владеет всем состоянием: таблицы, глобальные правки, категории, кэши фидов.
// Виды считаются чистыми функциями от этого состояния на каждый запрос.
type Workspace struct {
	mu  sync.RWMutex
	log zerolog.Logger
	now func() time.Time

	norm          *Normalizer
	tables        []*model.Table
	overrides     *Overrides
	categories    model.Categories
	globalFeeds   *model.FeedCache
	tableFeeds    map[string]*model.FeedCache
	crmCategories []model.CRMCategory
	globalFilters model.Filters
	perPage       int

	store   Store
	fetcher Fetcher
	saver   *Saver
}

type TableInfo struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	FileName   string    `json:"fileName"`
	UploadTime time.Time `json:"uploadTime"`
	Rows       int       `json:"rows"`
}

type FeedStatus struct {
	CRM  model.FeedState `json:"crm"`
	Prom model.FeedState `json:"prom"`
}

func NewWorkspace(opt Options) *Workspace {
	if opt.Now == nil {
		opt.Now = time.Now
	}
	if opt.ItemsPerPage <= 0 {
		opt.ItemsPerPage = model.DefaultItemsPerPage
	}
	if opt.SaveDebounce <= 0 {
		opt.SaveDebounce = 100 * time.Millisecond
	}
	w := &Workspace{
		log:     opt.Logger,
		now:     opt.Now,
		norm:    NewNormalizer(),
		perPage: opt.ItemsPerPage,
		store:   opt.Store,
		fetcher: opt.Fetcher,
	}
	w.restore(model.EmptySnapshot())
	if opt.Store != nil {
		w.saver = NewSaver(opt.Store, w.Snapshot, opt.SaveDebounce, opt.Logger)
	}
	return w
}

// Normalizer: нормализатор артикулов этого workspace.
func (w *Workspace) Normalizer() *Normalizer { return w.norm }

// Load читает состояние из хранилища.
func (w *Workspace) Load(ctx context.Context) error {
	if w.store == nil {
		return nil
	}
	snap, err := w.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	w.mu.Lock()
	w.restore(snap)
	w.mu.Unlock()
	w.log.Info().Int("tables", len(snap.Tables)).Int("overrides", len(snap.Overrides)).Msg("state loaded")
	return nil
}

func (w *Workspace) restore(snap model.Snapshot) {
	snap.Sanitize()
	w.overrides = NewOverrides(w.now)
	w.overrides.Load(snap.Overrides)
	w.tables = make([]*model.Table, 0, len(snap.Tables))
	for i := range snap.Tables {
		t := snap.Tables[i]
		t.Data = slices.Clone(t.Data)
		for j := range t.Data {
			if t.Data[j].NormalizedID == "" {
				t.Data[j].NormalizedID = w.norm.Normalize(t.Data[j].ID)
			}
		}
		w.tables = append(w.tables, &t)
		w.overrides.AttachTable(&t)
	}
	w.categories = snap.Categories
	w.globalFeeds = snap.GlobalFeeds
	w.tableFeeds = snap.TableFeeds
	w.crmCategories = snap.CRMCategories
	w.globalFilters = snap.GlobalFilters
}

// Snapshot: согласованная копия состояния для сохранения/экспорта.
func (w *Workspace) Snapshot() model.Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()

	snap := model.Snapshot{
		Tables:        make([]model.Table, 0, len(w.tables)),
		Overrides:     w.overrides.Records(),
		Categories:    make(model.Categories, len(w.categories)),
		GlobalFeeds:   cloneFeedCache(w.globalFeeds),
		TableFeeds:    make(map[string]*model.FeedCache, len(w.tableFeeds)),
		CRMCategories: slices.Clone(w.crmCategories),
		GlobalFilters: w.globalFilters,
	}
	for _, t := range w.tables {
		c := *t
		c.Header = slices.Clone(t.Header)
		c.Data = slices.Clone(t.Data)
		snap.Tables = append(snap.Tables, c)
	}
	for t, m := range w.categories {
		snap.Categories[t] = maps.Clone(m)
	}
	for id, c := range w.tableFeeds {
		snap.TableFeeds[id] = cloneFeedCache(c)
	}
	now := w.now()
	snap.LastSaved = &now
	return snap
}

// Import заменяет всё состояние импортированным снимком.
func (w *Workspace) Import(snap model.Snapshot) {
	w.mu.Lock()
	w.restore(snap)
	w.mu.Unlock()
	w.log.Info().Int("tables", len(snap.Tables)).Msg("state imported")
	w.saver.Trigger()
}

func (w *Workspace) SaveState() SaveState { return w.saver.State() }

// Flush сохраняет немедленно, минуя задержку.
func (w *Workspace) Flush(ctx context.Context) error { return w.saver.Flush(ctx) }

// ===== таблицы =====

// UploadTable создаёт таблицу из сетки ячеек. При ошибке разбора таблица не создаётся.
func (w *Workspace) UploadTable(name, fileName string, grid [][]string) (model.Table, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	// новая таблица получает свой снимок глобального кэша фидов, если он загружен
	var seed *model.FeedCache
	if w.globalFeeds.CRMState.Status == model.StatusLoaded || w.globalFeeds.PromState.Status == model.StatusLoaded {
		seed = cloneFeedCache(w.globalFeeds)
	}
	res, err := Ingest(grid, w.norm, w.overrides, seed)
	if err != nil {
		return model.Table{}, fmt.Errorf("ingest %s: %w", fileName, err)
	}
	if strings.TrimSpace(name) == "" {
		name = strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	}
	filters := model.DefaultFilters()
	filters.ItemsPerPage = w.perPage
	t := &model.Table{
		ID:               uuid.Must(uuid.NewV7()).String(),
		Name:             name,
		OriginalFileName: fileName,
		UploadTime:       w.now(),
		Header:           res.Header,
		Data:             res.Items,
		Filters:          filters,
	}
	w.tables = append(w.tables, t)
	w.overrides.AttachTable(t)
	if seed != nil {
		w.tableFeeds[t.ID] = seed
	}
	w.log.Info().Str("table_id", t.ID).Str("file", fileName).Int("rows", len(t.Data)).Msg("table uploaded")
	w.saver.Trigger()
	return copyTable(t), nil
}

func (w *Workspace) Tables() []TableInfo {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]TableInfo, 0, len(w.tables))
	for _, t := range w.tables {
		out = append(out, TableInfo{ID: t.ID, Name: t.Name, FileName: t.OriginalFileName, UploadTime: t.UploadTime, Rows: len(t.Data)})
	}
	return out
}

func (w *Workspace) Table(id string) (model.Table, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	t, _ := w.tableLocked(id)
	if t == nil {
		return model.Table{}, ErrTableNotFound
	}
	return copyTable(t), nil
}

// DeleteTable удаляет таблицу вместе с её кэшем фидов. Глобальные правки остаются.
func (w *Workspace) DeleteTable(ctx context.Context, id string) error {
	w.mu.Lock()
	_, i := w.tableLocked(id)
	if i < 0 {
		w.mu.Unlock()
		return ErrTableNotFound
	}
	w.tables = slices.Delete(w.tables, i, i+1)
	w.overrides.DetachTable(id)
	delete(w.tableFeeds, id)
	w.mu.Unlock()

	w.log.Info().Str("table_id", id).Msg("table deleted")
	if w.store != nil {
		if err := w.store.DeleteTable(ctx, id); err != nil {
			w.log.Error().Err(err).Str("table_id", id).Msg("delete table in store")
			return fmt.Errorf("delete table %s: %w", id, err)
		}
	}
	w.saver.Trigger()
	return nil
}

func (w *Workspace) tableLocked(id string) (*model.Table, int) {
	for i, t := range w.tables {
		if t.ID == id {
			return t, i
		}
	}
	return nil, -1
}

// ===== виды =====

func (w *Workspace) TableFilters(id string) (model.Filters, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	t, _ := w.tableLocked(id)
	if t == nil {
		return model.Filters{}, ErrTableNotFound
	}
	return t.Filters, nil
}

// SetTableFilters сохраняет фильтры таблицы; смена чего-либо кроме страницы сбрасывает на 1-ю.
func (w *Workspace) SetTableFilters(id string, f model.Filters) (model.Filters, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	t, _ := w.tableLocked(id)
	if t == nil {
		return model.Filters{}, ErrTableNotFound
	}
	t.Filters = UpdateFilters(t.Filters, f)
	w.saver.Trigger()
	return t.Filters, nil
}

// ToggleTableSort: клик по заголовку колонки key в таблице.
func (w *Workspace) ToggleTableSort(id string, key model.Field) (model.Filters, error) {
	if !KnownField(key) {
		return model.Filters{}, fmt.Errorf("%w: %s", ErrUnknownField, key)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	t, _ := w.tableLocked(id)
	if t == nil {
		return model.Filters{}, ErrTableNotFound
	}
	next := t.Filters
	next.Sort = ToggleSort(t.Filters.Sort, key)
	t.Filters = UpdateFilters(t.Filters, next)
	w.saver.Trigger()
	return t.Filters, nil
}

// QueryTable строит страницу вида таблицы по фильтрам f.
func (w *Workspace) QueryTable(id string, f model.Filters) (Page, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	t, _ := w.tableLocked(id)
	if t == nil {
		return Page{}, ErrTableNotFound
	}
	items := TableView(t, w.tableFeeds[id])
	return Compose(items, Query{Filters: f, Scope: ScopeTable}, w.norm), nil
}

func (w *Workspace) GlobalFilters() model.Filters {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.globalFilters
}

func (w *Workspace) SetGlobalFilters(f model.Filters) model.Filters {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.globalFilters = UpdateFilters(w.globalFilters, f)
	w.saver.Trigger()
	return w.globalFilters
}

func (w *Workspace) ToggleGlobalSort(key model.Field) (model.Filters, error) {
	if !KnownField(key) {
		return model.Filters{}, fmt.Errorf("%w: %s", ErrUnknownField, key)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	next := w.globalFilters
	next.Sort = ToggleSort(w.globalFilters.Sort, key)
	w.globalFilters = UpdateFilters(w.globalFilters, next)
	w.saver.Trigger()
	return w.globalFilters, nil
}

// QueryView строит страницу сквозного вида kind.
func (w *Workspace) QueryView(kind ViewKind, f model.Filters) (Page, error) {
	items, err := w.viewItems(kind)
	if err != nil {
		return Page{}, err
	}
	return Compose(items, Query{Filters: f, Scope: ScopeGlobal, Kind: kind}, w.norm), nil
}

// ArrangeView: отфильтрованный и отсортированный сквозной вид целиком (для выгрузки).
func (w *Workspace) ArrangeView(kind ViewKind, f model.Filters) ([]model.ViewItem, error) {
	items, err := w.viewItems(kind)
	if err != nil {
		return nil, err
	}
	out, _ := Arrange(items, Query{Filters: f, Scope: ScopeGlobal, Kind: kind}, w.norm)
	return out, nil
}

func (w *Workspace) viewItems(kind ViewKind) ([]model.ViewItem, error) {
	if _, err := ParseViewKind(string(kind)); err != nil {
		return nil, err
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return BuildView(w.tables, kind, w.globalFeeds, w.categories), nil
}

// ===== глобальные правки =====

func (w *Workspace) nid(rawID string) (string, error) {
	nid := w.norm.Normalize(strings.TrimSpace(rawID))
	if nid == "" {
		return "", ErrEmptyID
	}
	return nid, nil
}

// Override возвращает копию глобальной записи правок (nil, если правок не было).
func (w *Workspace) Override(rawID string) *model.Override {
	nid, err := w.nid(rawID)
	if err != nil {
		return nil
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.overrides.Get(nid)
}

func (w *Workspace) SetCommission(rawID string, commission float64) error {
	if err := ValidateCommission(commission); err != nil {
		return err
	}
	nid, err := w.nid(rawID)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.overrides.SetCommission(nid, commission)
	w.mu.Unlock()
	w.log.Info().Str("normalized_id", nid).Float64("commission", commission).Msg("commission set")
	w.saver.Trigger()
	return nil
}

// AddPriceChange дописывает цену в историю товара; tableID указывает таблицу, из которой
// сделана правка (пусто: первая таблица, где встречается товар).
func (w *Workspace) AddPriceChange(rawID string, price float64, tableID string) (model.PriceChange, error) {
	if err := ValidatePrice(price); err != nil {
		return model.PriceChange{}, err
	}
	nid, err := w.nid(rawID)
	if err != nil {
		return model.PriceChange{}, err
	}
	w.mu.Lock()
	entry := w.overrides.AppendPriceChange(nid, price, w.sourceLocked(nid, tableID))
	w.mu.Unlock()
	w.log.Info().Str("normalized_id", nid).Float64("price", price).Str("table_id", entry.SourceTableID).Msg("price changed")
	w.saver.Trigger()
	return entry, nil
}

func (w *Workspace) AddComment(rawID, text, tableID string) (model.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.Comment{}, ErrEmptyComment
	}
	nid, err := w.nid(rawID)
	if err != nil {
		return model.Comment{}, err
	}
	w.mu.Lock()
	c := w.overrides.AppendComment(nid, text, w.sourceLocked(nid, tableID))
	w.mu.Unlock()
	w.saver.Trigger()
	return c, nil
}

func (w *Workspace) DeleteComment(rawID, commentID string) error {
	nid, err := w.nid(rawID)
	if err != nil {
		return err
	}
	w.mu.Lock()
	err = w.overrides.DeleteComment(nid, commentID)
	w.mu.Unlock()
	if err != nil {
		return err
	}
	w.saver.Trigger()
	return nil
}

func (w *Workspace) sourceLocked(nid, tableID string) Source {
	if t, _ := w.tableLocked(tableID); t != nil {
		return Source{TableID: t.ID, TableName: t.Name}
	}
	for _, ref := range w.overrides.Occurrences(nid) {
		if t, _ := w.tableLocked(ref.TableID); t != nil {
			return Source{TableID: t.ID, TableName: t.Name}
		}
	}
	return Source{}
}

// ===== категории =====

func (w *Workspace) AddToCategory(t model.CategoryType, rawID string) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownCategory, t)
	}
	nid, err := w.nid(rawID)
	if err != nil {
		return err
	}
	w.mu.Lock()
	// повторное добавление сохраняет исходную дату
	if _, ok := w.categories[t][nid]; !ok {
		w.categories[t][nid] = w.now()
	}
	w.mu.Unlock()
	w.saver.Trigger()
	return nil
}

func (w *Workspace) RemoveFromCategory(t model.CategoryType, rawID string) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownCategory, t)
	}
	nid, err := w.nid(rawID)
	if err != nil {
		return err
	}
	w.mu.Lock()
	delete(w.categories[t], nid)
	w.mu.Unlock()
	w.saver.Trigger()
	return nil
}

func (w *Workspace) ClearCategory(t model.CategoryType) error {
	return w.ReplaceCategory(t, nil)
}

// ReplaceCategory задаёт состав категории целиком; уже состоящие сохраняют дату добавления.
func (w *Workspace) ReplaceCategory(t model.CategoryType, rawIDs []string) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownCategory, t)
	}
	w.mu.Lock()
	prev := w.categories[t]
	next := make(model.Membership, len(rawIDs))
	now := w.now()
	for _, raw := range rawIDs {
		nid := w.norm.Normalize(strings.TrimSpace(raw))
		if nid == "" {
			continue
		}
		if d, ok := prev[nid]; ok {
			next[nid] = d
		} else {
			next[nid] = now
		}
	}
	w.categories[t] = next
	w.mu.Unlock()
	w.saver.Trigger()
	return nil
}

func (w *Workspace) CategoryMembers(t model.CategoryType) (model.Membership, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, t)
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return maps.Clone(w.categories[t]), nil
}

func (w *Workspace) CategoryCounts() map[model.CategoryType]int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make(map[model.CategoryType]int, len(w.categories))
	for t, m := range w.categories {
		out[t] = len(m)
	}
	return out
}

// ===== фиды =====

// RefreshFeed перезагружает фид kind в области scope (GlobalScope или id таблицы).
// Пока идёт загрузка, повторный запрос не выполняется и возвращает ErrFeedLoading.
// При ошибке прежнее содержимое кэша сохраняется.
func (w *Workspace) RefreshFeed(ctx context.Context, scope string, kind model.FeedKind) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownFeed, kind)
	}
	if w.fetcher == nil {
		return ErrNoFetcher
	}
	w.mu.Lock()
	cache, err := w.feedCacheLocked(scope, true)
	if err != nil {
		w.mu.Unlock()
		return err
	}
	st := cache.State(kind)
	if st.Status == model.StatusLoading {
		w.mu.Unlock()
		return ErrFeedLoading
	}
	st.Status = model.StatusLoading
	st.Error = ""
	w.mu.Unlock()

	log := w.log.With().Str("scope", scope).Str("feed", string(kind)).Logger()
	start := time.Now()

	var (
		crm  feed.CRMFeed
		prom map[string]float64
	)
	data, err := w.fetcher.Fetch(ctx, kind)
	if err == nil {
		switch kind {
		case model.FeedCRM:
			crm, err = feed.ParseCRM(bytes.NewReader(data), w.norm.Normalize)
		case model.FeedProm:
			prom, err = feed.ParseProm(bytes.NewReader(data), w.norm.Normalize)
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	cache, cerr := w.feedCacheLocked(scope, false)
	if cerr != nil {
		// таблицу удалили, пока шла загрузка
		return cerr
	}
	st = cache.State(kind)
	if err != nil {
		st.Status = model.StatusError
		st.Error = err.Error()
		log.Error().Err(err).Dur("dur", time.Since(start)).Msg("feed refresh failed")
		w.saver.Trigger()
		return fmt.Errorf("refresh %s feed: %w", kind, err)
	}
	now := w.now()
	switch kind {
	case model.FeedCRM:
		cache.CRM = crm.Offers
		st.Count = len(crm.Offers)
		if len(crm.Categories) > 0 {
			w.crmCategories = crm.Categories
		}
	case model.FeedProm:
		cache.Prom = prom
		st.Count = len(prom)
	}
	st.Status = model.StatusLoaded
	st.LastUpdated = &now
	log.Info().Int("entries", st.Count).Dur("dur", time.Since(start)).Msg("feed refreshed")
	w.saver.Trigger()
	return nil
}

func (w *Workspace) FeedStatus(scope string) (FeedStatus, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if scope != GlobalScope {
		if t, _ := w.tableLocked(scope); t == nil {
			return FeedStatus{}, ErrTableNotFound
		}
		c := w.tableFeeds[scope]
		if c == nil {
			c = model.NewFeedCache()
		}
		return FeedStatus{CRM: c.CRMState, Prom: c.PromState}, nil
	}
	return FeedStatus{CRM: w.globalFeeds.CRMState, Prom: w.globalFeeds.PromState}, nil
}

func (w *Workspace) CRMCategories() []model.CRMCategory {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return slices.Clone(w.crmCategories)
}

func (w *Workspace) feedCacheLocked(scope string, create bool) (*model.FeedCache, error) {
	if scope == GlobalScope {
		return w.globalFeeds, nil
	}
	if t, _ := w.tableLocked(scope); t == nil {
		return nil, ErrTableNotFound
	}
	c, ok := w.tableFeeds[scope]
	if !ok {
		if !create {
			return nil, ErrTableNotFound
		}
		c = model.NewFeedCache()
		w.tableFeeds[scope] = c
	}
	return c, nil
}

// cloneFeedCache копирует состояние; карты фидов только заменяются целиком,
// поэтому их можно разделять.
func cloneFeedCache(c *model.FeedCache) *model.FeedCache {
	if c == nil {
		return nil
	}
	cc := *c
	return &cc
}

func copyTable(t *model.Table) model.Table {
	c := *t
	c.Header = slices.Clone(t.Header)
	c.Data = slices.Clone(t.Data)
	return c
}

// Stats: счётчики для /system/info.
type Stats struct {
	Tables     int                        `json:"tables"`
	Items      int                        `json:"items"`
	Overrides  int                        `json:"overrides"`
	Categories map[model.CategoryType]int `json:"categories"`
	Normalized int                        `json:"normalizerCache"`
}

func (w *Workspace) Stats() Stats {
	counts := w.CategoryCounts()
	w.mu.RLock()
	defer w.mu.RUnlock()
	st := Stats{
		Tables:     len(w.tables),
		Overrides:  w.overrides.Len(),
		Categories: counts,
		Normalized: w.norm.CacheLen(),
	}
	for _, t := range w.tables {
		st.Items += len(t.Data)
	}
	return st
}
