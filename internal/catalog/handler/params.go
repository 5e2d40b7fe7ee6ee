package handler

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pricing-service/internal/catalog/model"
	"pricing-service/internal/catalog/service"
	"pricing-service/internal/utils"
)

var (
	errBadRequest    = errors.New("bad request")
	errNoMaintenance = errors.New("backups are available only with the file store")
)

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// filtersFromQuery накладывает параметры запроса на сохранённые фильтры base.
// Отсутствующий параметр не меняет соответствующее поле.
func filtersFromQuery(base model.Filters, q url.Values, kind service.ViewKind) (model.Filters, error) {
	f := base
	f.Ranges = maps.Clone(base.Ranges)
	if q.Has("search") {
		f.SearchID = q.Get("search")
	}
	for key, dst := range map[string]*bool{
		"marketplace":        &f.ShowOnlyMarketplace,
		"hide_zero_crm":      &f.HideZeroCRMStock,
		"hide_low_crm":       &f.HideLowCRMStock,
		"hide_price_changed": &f.HidePriceChanged,
	} {
		if q.Has(key) {
			*dst = toBool(q.Get(key), false)
		}
	}
	if q.Has("hide_categories") {
		f.HiddenCRMCategories = splitList(q.Get("hide_categories"))
	}

	for key, vals := range q {
		bound, name, ok := rangeParam(key)
		if !ok || len(vals) == 0 {
			continue
		}
		field := model.Field(name)
		if !service.KnownField(field) {
			return f, fmt.Errorf("%w: %s", service.ErrUnknownField, name)
		}
		if !service.RangeField(field) {
			return f, badRequest("%s: text column has no numeric range", key)
		}
		v, ok := utils.ParseFloatRU(vals[0])
		if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
			if strings.TrimSpace(vals[0]) == "" {
				continue
			}
			return f, badRequest("%s: not a number", key)
		}
		if f.Ranges == nil {
			f.Ranges = map[model.Field]model.Range{}
		}
		r := f.Ranges[field]
		if bound == "min" {
			r.Min = &v
		} else {
			r.Max = &v
		}
		f.Ranges[field] = r
	}

	// from/to относятся к дате, по которой строится вид
	priceKeys, commentKeys := [2]string{"price_from", "price_to"}, [2]string{"comment_from", "comment_to"}
	switch kind {
	case service.ViewPriceChanged:
		priceKeys = [2]string{"from", "to"}
	case service.ViewCommented:
		commentKeys = [2]string{"from", "to"}
	}
	var err error
	if f.PriceChangeDate, err = dateRange(f.PriceChangeDate, q, priceKeys); err != nil {
		return f, err
	}
	if f.CommentDate, err = dateRange(f.CommentDate, q, commentKeys); err != nil {
		return f, err
	}

	if q.Has("sort") {
		key := model.Field(q.Get("sort"))
		if key != "" && !service.KnownField(key) {
			return f, fmt.Errorf("%w: %s", service.ErrUnknownField, key)
		}
		f.Sort = model.SortConfig{Key: key, Direction: model.SortAsc}
		if key == "" {
			f.Sort = model.SortConfig{}
		}
	}
	if q.Has("dir") && f.Sort.Key != "" {
		switch d := model.SortDirection(strings.ToLower(q.Get("dir"))); d {
		case model.SortAsc, model.SortDesc:
			f.Sort.Direction = d
		case model.SortNone, "none":
			f.Sort = model.SortConfig{}
		default:
			return f, badRequest("dir: want asc|desc|none")
		}
	}
	if q.Has("page") {
		f.CurrentPage = atoi(q.Get("page"), 1)
	}
	if q.Has("per_page") {
		f.ItemsPerPage = atoi(q.Get("per_page"), model.DefaultItemsPerPage)
	}
	// без явной страницы любое изменение фильтров возвращает на первую
	if !q.Has("page") {
		f = service.UpdateFilters(base, f)
	}
	return f, nil
}

// rangeParam разбирает min_<field>/max_<field>.
func rangeParam(key string) (bound, field string, ok bool) {
	for _, b := range []string{"min", "max"} {
		if name, found := strings.CutPrefix(key, b+"_"); found && name != "" {
			return b, name, true
		}
	}
	return "", "", false
}

// dateRange: даты в формате YYYY-MM-DD (или RFC3339); "по" включает весь день.
func dateRange(cur model.DateRange, q url.Values, keys [2]string) (model.DateRange, error) {
	if q.Has(keys[0]) {
		t, err := parseDate(q.Get(keys[0]), false)
		if err != nil {
			return cur, badRequest("%s: %v", keys[0], err)
		}
		cur.From = t
	}
	if q.Has(keys[1]) {
		t, err := parseDate(q.Get(keys[1]), true)
		if err != nil {
			return cur, badRequest("%s: %v", keys[1], err)
		}
		cur.To = t
	}
	return cur, nil
}

func parseDate(s string, endOfDay bool) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, s, time.Local)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// atoi: положительное целое, иначе def.
func atoi(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil || i <= 0 {
		return def
	}
	return i
}

func toBool(s string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}
