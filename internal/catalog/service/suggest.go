package service

import (
	"cmp"
	"slices"
	"strings"

	"github.com/agnivade/levenshtein"
)

const (
	DefaultSuggestions = 10
	// ниже этого сходства артикулы не предлагаются
	minSuggestScore = 0.5
)

// Suggestion: загруженный артикул, похожий на запрос.
type Suggestion struct {
	ID           string  `json:"id"`
	NormalizedID string  `json:"normalizedId"`
	Score        float64 `json:"score"`
	Tables       int     `json:"tables"`
}

// trigramIndex: триграмма → нормализованные артикулы, в которых она встречается.
type trigramIndex map[string]map[string]struct{}

func (x trigramIndex) add(nid string) {
	for g := range trigrams(nid) {
		bucket, ok := x[g]
		if !ok {
			bucket = make(map[string]struct{})
			x[g] = bucket
		}
		bucket[nid] = struct{}{}
	}
}

// candidates: артикулы, у которых есть хотя бы одна общая триграмма с nid.
func (x trigramIndex) candidates(nid string) []string {
	seen := make(map[string]struct{})
	for g := range trigrams(nid) {
		for c := range x[g] {
			seen[c] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

func trigrams(s string) map[string]struct{} {
	m := make(map[string]struct{})
	if s == "" {
		return m
	}
	r := []rune(" " + s + " ")
	for i := 0; i+3 <= len(r); i++ {
		m[string(r[i:i+3])] = struct{}{}
	}
	return m
}

// similarity: 1 минус расстояние Левенштейна, делённое на длину большей строки.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	m := max(len([]rune(a)), len([]rune(b)))
	if m == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(m)
}

// Suggest ищет среди загруженных таблиц артикулы, похожие на raw (опечатки,
// лишний символ, перестановка). Точное совпадение идёт первым со score 1.
func (w *Workspace) Suggest(raw string, limit int) ([]Suggestion, error) {
	q, err := w.nid(raw)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultSuggestions
	}

	w.mu.RLock()
	idx := make(trigramIndex)
	first := make(map[string]string)
	tables := make(map[string]int)
	for _, t := range w.tables {
		seen := make(map[string]struct{}, len(t.Data))
		for i := range t.Data {
			nid := t.Data[i].NormalizedID
			if _, ok := seen[nid]; ok {
				continue
			}
			seen[nid] = struct{}{}
			tables[nid]++
			if _, ok := first[nid]; !ok {
				first[nid] = t.Data[i].ID
				idx.add(nid)
			}
		}
	}
	w.mu.RUnlock()

	var out []Suggestion
	for _, nid := range idx.candidates(q) {
		score := similarity(q, nid)
		// вхождение запроса подходит при любом сходстве
		if score < minSuggestScore && !strings.Contains(nid, q) {
			continue
		}
		out = append(out, Suggestion{ID: first[nid], NormalizedID: nid, Score: score, Tables: tables[nid]})
	}
	slices.SortStableFunc(out, func(a, b Suggestion) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return strings.Compare(a.NormalizedID, b.NormalizedID)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
