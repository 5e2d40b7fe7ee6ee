package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricing-service/internal/catalog/model"
)

func TestCommissionFansOutAcrossTables(t *testing.T) {
	norm := NewNormalizer()
	a := newTable("a", "Январь", norm, "ABC-1", "Z")
	b := newTable("b", "Февраль", norm, "abc-1")
	c := newTable("c", "Март", norm, "Q", "АВС-1")

	ov := NewOverrides(fixedClock())
	ov.AttachTable(a)
	ov.AttachTable(b)
	ov.AttachTable(c)

	ov.SetCommission("abc-1", 30)

	want := TotalCost(100, 30)
	for _, it := range []float64{a.Data[0].TotalCost, b.Data[0].TotalCost, c.Data[1].TotalCost} {
		assert.InDelta(t, want, it, 1e-9)
	}
	assert.Equal(t, DefaultCommission, a.Data[1].Commission)
	assert.Equal(t, DefaultCommission, c.Data[0].Commission)
	require.NotNil(t, ov.Get("abc-1").Commission)
	assert.Equal(t, 30.0, *ov.Get("abc-1").Commission)
	assert.Len(t, ov.Occurrences("abc-1"), 3)
}

func TestPriceHistoryAppendOnly(t *testing.T) {
	norm := NewNormalizer()
	a := newTable("a", "Январь", norm, "X1")
	b := newTable("b", "Февраль", norm, "x1")
	ov := NewOverrides(fixedClock())
	ov.AttachTable(a)
	ov.AttachTable(b)

	first := ov.AppendPriceChange("x1", 50, Source{TableID: "a", TableName: "Январь"})
	assert.Nil(t, first.PreviousPrice)
	second := ov.AppendPriceChange("x1", 60, Source{TableID: "b", TableName: "Февраль"})
	require.NotNil(t, second.PreviousPrice)
	assert.Equal(t, 50.0, *second.PreviousPrice)
	assert.True(t, second.Date.After(first.Date))

	for _, tb := range [][]float64{prices(a.Data[0].PriceHistory), prices(b.Data[0].PriceHistory)} {
		assert.Equal(t, []float64{50, 60}, tb)
	}
	// копии истории независимы
	a.Data[0].PriceHistory[0].Price = -1
	assert.Equal(t, 50.0, b.Data[0].PriceHistory[0].Price)
	assert.Equal(t, 50.0, ov.Get("x1").PriceHistory[0].Price)
}

func TestDetachKeepsRecords(t *testing.T) {
	norm := NewNormalizer()
	a := newTable("a", "A", norm, "X1")
	ov := NewOverrides(fixedClock())
	ov.AttachTable(a)
	ov.AppendComment("x1", "проверить цену", Source{TableID: "a", TableName: "A"})

	ov.DetachTable("a")
	assert.Empty(t, ov.Occurrences("x1"))
	require.NotNil(t, ov.Get("x1"))
	assert.Len(t, ov.Get("x1").Comments, 1)

	// новая таблица с тем же артикулом подхватывает правки при загрузке
	res, err := Ingest([][]string{testHeader, {"X1", "100"}}, norm, ov, nil)
	require.NoError(t, err)
	assert.Equal(t, "проверить цену", res.Items[0].Comments[0].Text)

	// изменения после отключения до старой таблицы не доходят
	ov.AppendComment("x1", "второй", Source{})
	assert.Len(t, a.Data[0].Comments, 1)
}

func TestDeleteComment(t *testing.T) {
	norm := NewNormalizer()
	a := newTable("a", "A", norm, "X1")
	ov := NewOverrides(fixedClock())
	ov.AttachTable(a)
	c1 := ov.AppendComment("x1", "one", Source{})
	c2 := ov.AppendComment("x1", "two", Source{})
	require.NotEqual(t, c1.ID, c2.ID)

	require.NoError(t, ov.DeleteComment("x1", c1.ID))
	require.Len(t, a.Data[0].Comments, 1)
	assert.Equal(t, "two", a.Data[0].Comments[0].Text)

	assert.ErrorIs(t, ov.DeleteComment("x1", c1.ID), ErrCommentNotFound)
	assert.ErrorIs(t, ov.DeleteComment("nope", "x"), ErrCommentNotFound)
}

func TestOccurrenceIndexReattach(t *testing.T) {
	norm := NewNormalizer()
	a := newTable("a", "A", norm, "X1", "X1", "Y")
	x := newOccurrenceIndex()
	x.add(a)
	assert.Equal(t, []ItemRef{{"a", 0}, {"a", 1}}, x.lookup("x1"))

	// повторное добавление не дублирует ссылки
	x.add(a)
	assert.Len(t, x.lookup("x1"), 2)

	x.remove("a")
	assert.Empty(t, x.lookup("x1"))
	assert.Empty(t, x.byID)
	assert.Empty(t, x.byTable)
}

func prices(h []model.PriceChange) []float64 {
	out := make([]float64, len(h))
	for i, e := range h {
		out[i] = e.Price
	}
	return out
}
