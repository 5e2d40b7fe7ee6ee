package service

import (
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"

	"pricing-service/internal/catalog/model"
)

var ErrCommentNotFound = errors.New("comment not found")

// Source: таблица, из которой сделана правка.
type Source struct {
	TableID   string
	TableName string
}

// Overrides — глобальный слой правок по нормализованному артикулу.
// Каждая правка сразу раскладывается во все загруженные копии товара.
// Не потокобезопасен: доступ сериализует Workspace.
type Overrides struct {
	records map[string]*model.Override
	tables  map[string]*model.Table
	index   *occurrenceIndex
	now     func() time.Time
	newID   func() string
}

func NewOverrides(now func() time.Time) *Overrides {
	if now == nil {
		now = time.Now
	}
	return &Overrides{
		records: make(map[string]*model.Override),
		tables:  make(map[string]*model.Table),
		index:   newOccurrenceIndex(),
		now:     now,
		newID:   uuid.NewString,
	}
}

// Load заменяет все записи (например, после чтения из хранилища).
func (o *Overrides) Load(records map[string]*model.Override) {
	o.records = make(map[string]*model.Override, len(records))
	for nid, r := range records {
		if r != nil {
			o.records[nid] = r.Clone()
		}
	}
}

// Records: копия всех записей.
func (o *Overrides) Records() map[string]*model.Override {
	out := make(map[string]*model.Override, len(o.records))
	for nid, r := range o.records {
		out[nid] = r.Clone()
	}
	return out
}

func (o *Overrides) Len() int { return len(o.records) }

// Get возвращает копию записи или nil.
func (o *Overrides) Get(nid string) *model.Override {
	return o.records[nid].Clone()
}

// AttachTable подключает таблицу к раздаче правок. Таблица должна жить
// по тому же указателю, пока не вызван DetachTable.
func (o *Overrides) AttachTable(t *model.Table) {
	o.tables[t.ID] = t
	o.index.add(t)
}

// DetachTable отключает таблицу; записи правок при этом сохраняются.
func (o *Overrides) DetachTable(tableID string) {
	delete(o.tables, tableID)
	o.index.remove(tableID)
}

// Occurrences: все вхождения артикула в загруженных таблицах.
func (o *Overrides) Occurrences(nid string) []ItemRef {
	return slices.Clone(o.index.lookup(nid))
}

func (o *Overrides) record(nid string) *model.Override {
	r, ok := o.records[nid]
	if !ok {
		r = &model.Override{}
		o.records[nid] = r
	}
	return r
}

func (o *Overrides) each(nid string, fn func(it *model.Item)) {
	for _, ref := range o.index.lookup(nid) {
		t, ok := o.tables[ref.TableID]
		if !ok || ref.Index >= len(t.Data) {
			continue
		}
		fn(&t.Data[ref.Index])
	}
}

// SetCommission сохраняет комиссию и пересчитывает цены во всех копиях товара.
func (o *Overrides) SetCommission(nid string, commission float64) {
	v := commission
	o.record(nid).Commission = &v
	o.each(nid, func(it *model.Item) { SetCommission(it, commission) })
}

// AppendPriceChange дописывает новую цену в историю (история только растёт).
func (o *Overrides) AppendPriceChange(nid string, price float64, src Source) model.PriceChange {
	r := o.record(nid)
	entry := model.PriceChange{
		Price:           price,
		Date:            o.now(),
		SourceTableName: src.TableName,
		SourceTableID:   src.TableID,
	}
	if n := len(r.PriceHistory); n > 0 {
		prev := r.PriceHistory[n-1].Price
		entry.PreviousPrice = &prev
	}
	r.PriceHistory = append(r.PriceHistory, entry)
	o.each(nid, func(it *model.Item) { it.PriceHistory = slices.Clone(r.PriceHistory) })
	return entry
}

func (o *Overrides) AppendComment(nid, text string, src Source) model.Comment {
	r := o.record(nid)
	c := model.Comment{
		ID:              o.newID(),
		Text:            text,
		Date:            o.now(),
		SourceTableName: src.TableName,
		SourceTableID:   src.TableID,
	}
	r.Comments = append(r.Comments, c)
	o.each(nid, func(it *model.Item) { it.Comments = slices.Clone(r.Comments) })
	return c
}

func (o *Overrides) DeleteComment(nid, commentID string) error {
	r, ok := o.records[nid]
	if !ok {
		return ErrCommentNotFound
	}
	i := slices.IndexFunc(r.Comments, func(c model.Comment) bool { return c.ID == commentID })
	if i < 0 {
		return ErrCommentNotFound
	}
	r.Comments = slices.Concat(r.Comments[:i], r.Comments[i+1:])
	o.each(nid, func(it *model.Item) { it.Comments = slices.Clone(r.Comments) })
	return nil
}
