package service

import (
	"regexp"
	"strings"
	"sync"
	"unicode"
)

// NormalizerCacheSize: после превышения кэш нормализатора очищается целиком.
const NormalizerCacheSize = 10000

var rxPlainID = regexp.MustCompile(`^[a-zA-Z0-9\-_.]*$`)

// Кириллица→латиница (визуальные двойники)
var lookalikes = map[rune]rune{
	'а': 'a', 'в': 'b', 'с': 'c', 'е': 'e', 'н': 'h', 'к': 'k', 'м': 'm', 'о': 'o',
	'р': 'p', 'т': 't', 'х': 'x', 'у': 'y', 'і': 'i', 'ј': 'j', 'ѕ': 's',
	'А': 'A', 'В': 'B', 'С': 'C', 'Е': 'E', 'Н': 'H', 'К': 'K', 'М': 'M', 'О': 'O',
	'Р': 'P', 'Т': 'T', 'Х': 'X', 'У': 'Y', 'І': 'I', 'Ј': 'J', 'Ѕ': 'S',
}

// все варианты тире и минуса → "-"
var dashes = map[rune]struct{}{
	'\u2010': {}, '\u2011': {}, '\u2012': {}, '\u2013': {}, '\u2014': {}, '\u2015': {},
	'\u2212': {}, '\uFE58': {}, '\uFE63': {}, '\uFF0D': {},
}

// невидимые символы, которые выбрасываются вместе с пробелами
var invisible = map[rune]struct{}{
	'\u200B': {}, '\u200C': {}, '\u200D': {}, '\u2060': {}, '\uFEFF': {}, '\u00AD': {},
}

// Normalizer приводит артикулы к каноническому виду для сопоставления
// между таблицами, фидами и строкой поиска. Результаты кэшируются.
type Normalizer struct {
	mu    sync.Mutex
	cache map[string]string
	limit int
}

func NewNormalizer() *Normalizer {
	return &Normalizer{cache: make(map[string]string), limit: NormalizerCacheSize}
}

// Normalize тотальна и детерминирована: пустая строка → пустая строка.
func (n *Normalizer) Normalize(raw string) string {
	if raw == "" {
		return ""
	}
	n.mu.Lock()
	if v, ok := n.cache[raw]; ok {
		n.mu.Unlock()
		return v
	}
	n.mu.Unlock()

	out := normalizeID(raw)

	n.mu.Lock()
	if len(n.cache) >= n.limit {
		clear(n.cache)
	}
	n.cache[raw] = out
	n.mu.Unlock()
	return out
}

// CacheLen: текущий размер кэша.
func (n *Normalizer) CacheLen() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.cache)
}

func normalizeID(raw string) string {
	// быстрый путь: чистый ASCII-артикул
	if rxPlainID.MatchString(raw) {
		return strings.ToLower(raw)
	}
	b := make([]rune, 0, len(raw))
	for _, r := range raw {
		if rr, ok := lookalikes[r]; ok {
			r = rr
		} else if _, ok := dashes[r]; ok {
			r = '-'
		} else if _, ok := invisible[r]; ok || unicode.IsSpace(r) {
			continue
		}
		b = append(b, r)
	}
	return strings.ToLower(string(b))
}
