package fileio

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

var ErrUnsupported = errors.New("unsupported file type")

// ReadGrid — выберет парсер по расширению и вернёт первый лист как сетку строк.
// Строка 0 это шапка. Полностью пустые строки в хвосте отрезаются.
func ReadGrid(r io.Reader, filename string) ([][]string, error) {
	var (
		rows [][]string
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".xlsx":
		rows, err = readXLSX(r)
	case ".xls":
		rows, err = readXLS(r)
	case ".csv":
		rows, err = readCSV(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, filename)
	}
	if err != nil {
		return nil, err
	}
	return trimGrid(rows), nil
}

// normalizeCell: значение ячейки без служебных пробелов по краям.
func normalizeCell(s string) string {
	s = strings.ReplaceAll(s, "\u00A0", " ")
	return strings.TrimSpace(s)
}

// trimGrid чистит ячейки и убирает пустые строки в конце листа.
func trimGrid(rows [][]string) [][]string {
	for _, row := range rows {
		for i, v := range row {
			row[i] = normalizeCell(v)
		}
	}
	end := len(rows)
	for end > 0 && blank(rows[end-1]) {
		end--
	}
	return rows[:end]
}

func blank(row []string) bool {
	for _, v := range row {
		if v != "" {
			return false
		}
	}
	return true
}
