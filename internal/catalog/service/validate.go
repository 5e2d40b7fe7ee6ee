package service

import (
	"errors"
	"math"
	"strings"

	"pricing-service/internal/utils"
)

var (
	ErrInvalidPrice      = errors.New("invalid price")
	ErrInvalidCommission = errors.New("invalid commission")
	ErrEmptyID           = errors.New("empty item id")
	ErrEmptyComment      = errors.New("empty comment")
)

// ParsePrice проверяет цену на границе ввода: число > 0, без молчаливых подмен.
func ParsePrice(s string) (float64, error) {
	f, ok := utils.ParseFloatRU(s)
	if !ok {
		return 0, ErrInvalidPrice
	}
	return f, ValidatePrice(f)
}

func ValidatePrice(f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return ErrInvalidPrice
	}
	return nil
}

// ParseCommission принимает проценты: "12", "12,5", "12%".
func ParseCommission(s string) (float64, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	f, ok := utils.ParseFloatRU(s)
	if !ok {
		return 0, ErrInvalidCommission
	}
	return f, ValidateCommission(f)
}

// ValidateCommission: 0 <= c < 100, иначе TotalCost не определена.
func ValidateCommission(f float64) error {
	if math.IsNaN(f) || f < 0 || f >= 100 {
		return ErrInvalidCommission
	}
	return nil
}
