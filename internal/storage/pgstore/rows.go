package pgstore

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"pricing-service/internal/catalog/model"
)

// globalScope: ключ глобального кэша фидов в feed_caches.
const globalScope = "global"

// itemRows готовит строки для COPY в table_items, позиция сохраняет порядок файла.
func itemRows(t model.Table) ([][]any, error) {
	rows := make([][]any, 0, len(t.Data))
	for pos, it := range t.Data {
		data, err := json.Marshal(it)
		if err != nil {
			return nil, fmt.Errorf("pgstore: marshal item %q: %w", it.ID, err)
		}
		rows = append(rows, []any{t.ID, pos, it.ID, it.NormalizedID, string(data)})
	}
	return rows, nil
}

// categoryRows: строки для COPY в item_categories, в детерминированном порядке.
func categoryRows(cats model.Categories) [][]any {
	var rows [][]any
	for _, t := range model.CategoryTypes {
		ids := make([]string, 0, len(cats[t]))
		for nid := range cats[t] {
			ids = append(ids, nid)
		}
		slices.SortFunc(ids, strings.Compare)
		for _, nid := range ids {
			rows = append(rows, []any{string(t), nid, cats[t][nid]})
		}
	}
	return rows
}
