package fileio

import (
	"bytes"
	"errors"
	"io"

	xls "github.com/extrame/xls"
)

// .xls из 1С чаще всего cp1251, но бывает UTF-8 и KOI8-R.
var xlsCharsets = []string{"windows-1251", "utf-8", "koi8-r"}

// xlsProbeCols: сколько колонок просматриваем при поиске ширины листа.
const xlsProbeCols = 512

func readXLS(r io.Reader) ([][]string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	wb, err := openXLS(b)
	if err != nil {
		return nil, err
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, nil
	}

	// Row.LastCol() у части выгрузок врёт, поэтому сначала собираем ячейки
	// до xlsProbeCols, потом обрезаем по самой правой непустой.
	raw := make([][]string, 0, int(sheet.MaxRow)+1)
	width := 0
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			raw = append(raw, nil)
			continue
		}
		cols := make([]string, 0, 16)
		for j := 0; j < xlsProbeCols; j++ {
			v := normalizeCell(row.Col(j))
			if v == "" {
				cols = append(cols, "")
				continue
			}
			cols = append(cols, v)
			width = max(width, j+1)
		}
		raw = append(raw, cols)
	}
	width = max(width, 1)

	rows := make([][]string, len(raw))
	for i, cols := range raw {
		rows[i] = make([]string, width)
		copy(rows[i], cols)
	}
	return rows, nil
}

func openXLS(b []byte) (*xls.WorkBook, error) {
	var lastErr error
	for _, cs := range xlsCharsets {
		wb, err := xls.OpenReader(bytes.NewReader(b), cs)
		if err == nil && wb != nil {
			return wb, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.New("xls: failed to open workbook")
	}
	return nil, lastErr
}
