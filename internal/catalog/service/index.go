package service

import (
	"slices"

	"pricing-service/internal/catalog/model"
)

// ItemRef указывает на товар в загруженной таблице.
type ItemRef struct {
	TableID string
	Index   int
}

// occurrenceIndex: нормализованный артикул → все его вхождения во всех таблицах.
// Поддерживается при подключении/удалении таблиц, чтобы запись правки не
// перебирала все таблицы.
type occurrenceIndex struct {
	byID    map[string][]ItemRef
	byTable map[string][]string // tableID → артикулы, которые в ней встречаются
}

func newOccurrenceIndex() *occurrenceIndex {
	return &occurrenceIndex{
		byID:    make(map[string][]ItemRef),
		byTable: make(map[string][]string),
	}
}

func (x *occurrenceIndex) add(t *model.Table) {
	x.remove(t.ID)
	seen := make(map[string]struct{}, len(t.Data))
	ids := make([]string, 0, len(t.Data))
	for i := range t.Data {
		nid := t.Data[i].NormalizedID
		x.byID[nid] = append(x.byID[nid], ItemRef{TableID: t.ID, Index: i})
		if _, ok := seen[nid]; !ok {
			seen[nid] = struct{}{}
			ids = append(ids, nid)
		}
	}
	x.byTable[t.ID] = ids
}

func (x *occurrenceIndex) remove(tableID string) {
	ids, ok := x.byTable[tableID]
	if !ok {
		return
	}
	for _, nid := range ids {
		refs := slices.DeleteFunc(x.byID[nid], func(r ItemRef) bool { return r.TableID == tableID })
		if len(refs) == 0 {
			delete(x.byID, nid)
		} else {
			x.byID[nid] = refs
		}
	}
	delete(x.byTable, tableID)
}

func (x *occurrenceIndex) lookup(nid string) []ItemRef {
	return x.byID[nid]
}
