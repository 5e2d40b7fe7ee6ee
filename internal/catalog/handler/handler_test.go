package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricing-service/internal/catalog/model"
	"pricing-service/internal/catalog/service"
	"pricing-service/internal/storage/filestore"
)

const uploadCSV = "Артикул;Себестоимость;Остаток;Дней;Продажи мес;Продажи 2 нед;Заявки мес;Заявки 2 нед;Комиссия\n" +
	"A-1;100;5;;;;;;17\n" +
	"B-2;300;0;;;;;;10\n"

type testAPI struct {
	t      *testing.T
	router http.Handler
}

func newAPI(t *testing.T, withFiles bool) *testAPI {
	t.Helper()
	var (
		store service.Store
		maint Maintenance
	)
	if withFiles {
		fs, err := filestore.New(t.TempDir(), 3, zerolog.Nop())
		require.NoError(t, err)
		store, maint = fs, fs
	}
	ws := service.NewWorkspace(service.Options{
		Logger:       zerolog.Nop(),
		Store:        store,
		SaveDebounce: time.Millisecond,
	})
	h := New(ws, maint, 10, zerolog.Nop())
	r := chi.NewRouter()
	r.Route("/api", h.Routes)
	return &testAPI{t: t, router: r}
}

func (a *testAPI) do(method, path string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(a.t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) upload(fileName, content string) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(a.t, mw.WriteField("name", "Январь"))
	fw, err := mw.CreateFormFile("file", fileName)
	require.NoError(a.t, err)
	_, err = io.WriteString(fw, content)
	require.NoError(a.t, err)
	require.NoError(a.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/tables", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (a *testAPI) uploadTable() model.Table {
	a.t.Helper()
	rec := a.upload("jan.csv", uploadCSV)
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[model.Table](a.t, rec)
}

func TestUploadAndTableView(t *testing.T) {
	api := newAPI(t, false)
	tbl := api.uploadTable()
	assert.Equal(t, "Январь", tbl.Name)
	require.Len(t, tbl.Data, 2)
	assert.Equal(t, "A-1", tbl.Data[0].ID)

	rec := api.do(http.MethodGet, "/api/tables", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]service.TableInfo](t, rec), 1)

	rec = api.do(http.MethodGet, "/api/tables/"+tbl.ID+"/view?min_baseCost=200", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	page := decode[service.Page](t, rec)
	assert.Equal(t, 1, page.TotalItems)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "B-2", page.Items[0].ID)

	// параметры запроса не сохраняются в фильтрах таблицы
	rec = api.do(http.MethodGet, "/api/tables/"+tbl.ID+"/filters", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[model.Filters](t, rec).Ranges)

	rec = api.do(http.MethodGet, "/api/tables/"+tbl.ID+"/view?sort=baseCost&dir=desc", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page = decode[service.Page](t, rec)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "B-2", page.Items[0].ID)
}

func TestUploadErrors(t *testing.T) {
	api := newAPI(t, false)

	rec := api.upload("notes.txt", "hello")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.upload("empty.csv", "Артикул;Себестоимость\n")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodPost, "/api/tables", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTableViewResetsStoredPageOnNewFilter(t *testing.T) {
	api := newAPI(t, false)
	var sb strings.Builder
	sb.WriteString("Артикул;Себестоимость;Остаток;Дней;Продажи мес;Продажи 2 нед;Заявки мес;Заявки 2 нед;Комиссия\n")
	for i := range 30 {
		fmt.Fprintf(&sb, "ID-%03d;%d;1;;;;;;17\n", i, 100+i)
	}
	rec := api.upload("big.csv", sb.String())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	tbl := decode[model.Table](t, rec)

	f := model.DefaultFilters()
	f.ItemsPerPage = 10
	rec = api.do(http.MethodPut, "/api/tables/"+tbl.ID+"/filters", f)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	f = decode[model.Filters](t, rec)
	f.CurrentPage = 3
	rec = api.do(http.MethodPut, "/api/tables/"+tbl.ID+"/filters", f)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 3, decode[model.Filters](t, rec).CurrentPage)

	// без фильтров сохранённая страница остаётся
	rec = api.do(http.MethodGet, "/api/tables/"+tbl.ID+"/view", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[service.Page](t, rec)
	assert.Equal(t, 3, page.Page)
	assert.Len(t, page.Items, 10)

	rec = api.do(http.MethodGet, "/api/tables/"+tbl.ID+"/view?search=id-0", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page = decode[service.Page](t, rec)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 10, page.TotalItems)
	assert.Len(t, page.Items, 10)

	// явная страница сильнее сброса
	rec = api.do(http.MethodGet, "/api/tables/"+tbl.ID+"/view?search=id-0&page=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page = decode[service.Page](t, rec)
	assert.Equal(t, 2, page.Page)
	assert.Empty(t, page.Items)
}

func TestErrorStatuses(t *testing.T) {
	api := newAPI(t, false)
	tbl := api.uploadTable()

	cases := []struct {
		method, path string
		body         any
		want         int
	}{
		{http.MethodGet, "/api/tables/nope", nil, http.StatusNotFound},
		{http.MethodDelete, "/api/tables/nope", nil, http.StatusNotFound},
		{http.MethodGet, "/api/tables/" + tbl.ID + "/view?min_bogus=1", nil, http.StatusBadRequest},
		{http.MethodGet, "/api/tables/" + tbl.ID + "/view?min_baseCost=abc", nil, http.StatusBadRequest},
		{http.MethodGet, "/api/tables/" + tbl.ID + "/view?min_id=5", nil, http.StatusBadRequest},
		{http.MethodGet, "/api/views/commented?max_crmCategoryName=1", nil, http.StatusBadRequest},
		{http.MethodGet, "/api/tables/" + tbl.ID + "/view?sort=baseCost&dir=up", nil, http.StatusBadRequest},
		{http.MethodGet, "/api/views/whatever", nil, http.StatusBadRequest},
		{http.MethodGet, "/api/categories/bogus", nil, http.StatusBadRequest},
		{http.MethodPost, "/api/tables/" + tbl.ID + "/sort/bogus", nil, http.StatusBadRequest},
		{http.MethodPost, "/api/items/A-1/price", map[string]any{"price": -5}, http.StatusBadRequest},
		{http.MethodPost, "/api/items/A-1/price", map[string]any{"price": "abc"}, http.StatusBadRequest},
		{http.MethodPut, "/api/items/A-1/commission", map[string]any{"commission": 150}, http.StatusBadRequest},
		{http.MethodPost, "/api/items/A-1/comments", map[string]any{"text": "  "}, http.StatusBadRequest},
		{http.MethodDelete, "/api/items/A-1/comments/missing", nil, http.StatusNotFound},
		{http.MethodGet, "/api/items/A-1", nil, http.StatusNotFound},
		{http.MethodPost, "/api/feeds/global/crm/refresh", nil, http.StatusNotImplemented},
		{http.MethodPost, "/api/system/backup", nil, http.StatusNotImplemented},
		{http.MethodPost, "/api/system/restore", nil, http.StatusNotImplemented},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			rec := api.do(tc.method, tc.path, tc.body)
			assert.Equal(t, tc.want, rec.Code, rec.Body.String())
			if rec.Code >= 400 {
				assert.NotEmpty(t, decode[errorBody](t, rec).Error)
			}
		})
	}
}

func TestItemEditsFanOutToViews(t *testing.T) {
	api := newAPI(t, false)
	tbl := api.uploadTable()

	rec := api.do(http.MethodPost, "/api/items/a-1/price", map[string]any{"price": "1 234,5", "tableId": tbl.ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	entry := decode[model.PriceChange](t, rec)
	assert.Equal(t, 1234.5, entry.Price)
	assert.Equal(t, tbl.ID, entry.SourceTableID)

	rec = api.do(http.MethodPut, "/api/items/A-1/commission", map[string]any{"commission": "20%"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	o := decode[model.Override](t, rec)
	require.NotNil(t, o.Commission)
	assert.Equal(t, 20.0, *o.Commission)
	assert.Len(t, o.PriceHistory, 1)

	rec = api.do(http.MethodPost, "/api/items/A-1/comments", map[string]any{"text": "проверить"})
	require.Equal(t, http.StatusCreated, rec.Code)
	c := decode[model.Comment](t, rec)

	rec = api.do(http.MethodGet, "/api/views/price_changed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[service.Page](t, rec)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "A-1", page.Items[0].ID)
	assert.Equal(t, 20.0, page.Items[0].Commission)
	require.NotNil(t, page.Items[0].LastPrice)
	assert.Equal(t, 1234.5, *page.Items[0].LastPrice)

	rec = api.do(http.MethodGet, "/api/views/commented", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[service.Page](t, rec).TotalItems)

	rec = api.do(http.MethodDelete, "/api/items/A-1/comments/"+url.PathEscape(c.ID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.do(http.MethodGet, "/api/views/commented", nil)
	assert.Equal(t, 0, decode[service.Page](t, rec).TotalItems)
}

func TestSuggest(t *testing.T) {
	api := newAPI(t, false)
	api.uploadTable()

	rec := api.do(http.MethodGet, "/api/items/suggest?q=a-2", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[[]service.Suggestion](t, rec)
	require.NotEmpty(t, got)

	rec = api.do(http.MethodGet, "/api/items/suggest?q=zzzz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())

	rec = api.do(http.MethodGet, "/api/items/suggest", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCategoriesAndExport(t *testing.T) {
	api := newAPI(t, false)
	api.uploadTable()

	rec := api.do(http.MethodPost, "/api/categories/ab/items/B-2", nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = api.do(http.MethodGet, "/api/categories", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[map[model.CategoryType]int](t, rec)[model.CategoryAB])

	rec = api.do(http.MethodGet, "/api/views/category:ab", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	page := decode[service.Page](t, rec)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "B-2", page.Items[0].ID)
	assert.NotNil(t, page.Items[0].CategoryAddedDate)

	rec = api.do(http.MethodGet, "/api/views/category:ab/export.xlsx", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "category_ab.xlsx")
	assert.NotZero(t, rec.Body.Len())

	rec = api.do(http.MethodPut, "/api/categories/ab", map[string]any{"ids": []string{"A-1", " "}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	members := decode[[]categoryMember](t, rec)
	require.Len(t, members, 1)

	rec = api.do(http.MethodDelete, "/api/categories/ab", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = api.do(http.MethodGet, "/api/categories/ab", nil)
	assert.Empty(t, decode[[]categoryMember](t, rec))
}

func TestGlobalSortToggle(t *testing.T) {
	api := newAPI(t, false)

	want := []model.SortDirection{model.SortAsc, model.SortDesc, model.SortNone}
	for _, dir := range want {
		rec := api.do(http.MethodPost, "/api/views/sort/totalCost", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		f := decode[model.Filters](t, rec)
		if dir == model.SortNone {
			assert.Empty(t, f.Sort.Key)
			continue
		}
		assert.Equal(t, model.FieldTotalCost, f.Sort.Key)
		assert.Equal(t, dir, f.Sort.Direction)
		assert.Equal(t, 1, f.CurrentPage)
	}
}

func TestBackupAndRestoreWithFileStore(t *testing.T) {
	api := newAPI(t, true)
	api.uploadTable()

	rec := api.do(http.MethodPost, "/api/system/backup", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.True(t, strings.HasPrefix(decode[map[string]string](t, rec)["backup"], "backup_"))

	rec = api.do(http.MethodGet, "/api/system/info", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"backups":`)

	rec = api.do(http.MethodPost, "/api/system/restore", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, decode[importResponse](t, rec).Tables)

	rec = api.do(http.MethodGet, "/api/save-status", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestFiltersFromQueryDates(t *testing.T) {
	q := url.Values{"from": {"2024-03-01"}, "to": {"2024-03-31"}, "per_page": {"0"}}
	f, err := filtersFromQuery(model.DefaultFilters(), q, service.ViewPriceChanged)
	require.NoError(t, err)
	require.NotNil(t, f.PriceChangeDate.From)
	require.NotNil(t, f.PriceChangeDate.To)
	assert.False(t, f.CommentDate.Active())
	assert.Equal(t, 31, f.PriceChangeDate.To.Day())
	assert.Equal(t, 23, f.PriceChangeDate.To.Hour())
	assert.Equal(t, model.DefaultItemsPerPage, f.ItemsPerPage)

	f, err = filtersFromQuery(model.DefaultFilters(), q, service.ViewCommented)
	require.NoError(t, err)
	assert.True(t, f.CommentDate.Active())
	assert.False(t, f.PriceChangeDate.Active())

	_, err = filtersFromQuery(model.DefaultFilters(), url.Values{"price_from": {"вчера"}}, "")
	assert.ErrorIs(t, err, errBadRequest)
}

func TestFiltersFromQueryKeepsBase(t *testing.T) {
	lo := 10.0
	base := model.DefaultFilters()
	base.Ranges = map[model.Field]model.Range{model.FieldStock: {Min: &lo}}
	base.SearchID = "abc"

	f, err := filtersFromQuery(base, url.Values{"max_stock": {"20"}, "hide_zero_crm": {"1"}}, "")
	require.NoError(t, err)
	assert.Equal(t, "abc", f.SearchID)
	assert.True(t, f.HideZeroCRMStock)
	require.NotNil(t, f.Ranges[model.FieldStock].Max)
	assert.Equal(t, 10.0, *f.Ranges[model.FieldStock].Min)
	// исходные фильтры не тронуты
	assert.Nil(t, base.Ranges[model.FieldStock].Max)
}
