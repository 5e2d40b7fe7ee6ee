package fileio

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricing-service/internal/catalog/model"
)

func TestReadGridCSVSemicolon(t *testing.T) {
	in := "Артикул;Себестоимость;Комиссия\nА-1;100,5;12\n Б-2 ;200;10\n;;\n\n"
	rows, err := ReadGrid(strings.NewReader(in), "Январь.CSV")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Артикул", "Себестоимость", "Комиссия"}, rows[0])
	assert.Equal(t, []string{"А-1", "100,5", "12"}, rows[1])
	assert.Equal(t, "Б-2", rows[2][0])
}

func TestReadGridCSVCommaWithBOM(t *testing.T) {
	in := "\uFEFFid,cost\nX1,10\nX2,\"1,5\"\n"
	rows, err := ReadGrid(strings.NewReader(in), "a.csv")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "id", rows[0][0])
	assert.Equal(t, "1,5", rows[2][1])
}

func TestReadGridUnsupported(t *testing.T) {
	_, err := ReadGrid(strings.NewReader("x"), "table.ods")
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestNormalizeCell(t *testing.T) {
	assert.Equal(t, "12 345", normalizeCell("\u00A012\u00A0345 "))
	assert.Equal(t, "", normalizeCell(" \t"))
}

func TestSniffComma(t *testing.T) {
	assert.Equal(t, ';', sniffComma([]byte("a;b;c\n1,5;2;3")))
	assert.Equal(t, ',', sniffComma([]byte("a,b;c\n")))
	assert.Equal(t, ',', sniffComma(nil))
}

func TestWriteXLSXRoundTrip(t *testing.T) {
	crm := 150.456
	items := []model.ViewItem{
		{Item: model.Item{ID: "X1", BaseCost: 100, Commission: 12, TotalCost: 113.636363, CRMPrice: &crm}, PrimaryTableName: "Январь"},
		{Item: model.Item{ID: "X2", BaseCost: 50, TotalCost: 50}},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, items))

	rows, err := ReadGrid(&buf, "export.xlsx")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	cols := exportColumns()
	require.Len(t, rows[0], len(cols))
	assert.Equal(t, "Артикул", rows[0][0])
	assert.Equal(t, "Наценка 10%", rows[0][4])

	assert.Equal(t, "X1", rows[1][0])
	assert.Equal(t, "113.64", rows[1][3])
	assert.Equal(t, "X2", rows[2][0])
}
