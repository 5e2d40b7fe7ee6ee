package service

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	n := NewNormalizer()
	cases := []struct {
		in, want string
	}{
		{"", ""},
		{"ABC-123", "abc-123"},
		{"abc_1.2", "abc_1.2"},
		{"АВС-1", "abc-1"},
		{"А123", "a123"},
		{"X\u2013100", "x-100"},
		{"X\u2212100", "x-100"},
		{" AB\u00A012 ", "ab12"},
		{"AB\u200B12\uFEFF", "ab12"},
		{"Ѕіј-Р", "sij-p"},
		{"Ключ", "kлюч"},
		{"ABC\u00AD-1", "abc-1"},
		{"\u2014\u2014", "--"},
	}
	for _, c := range cases {
		t.Run(fmt.Sprintf("%q", c.in), func(t *testing.T) {
			assert.Equal(t, c.want, n.Normalize(c.in))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	n := NewNormalizer()
	for _, in := range []string{"ABC-1", "АВС–1", " x y ", "Ключ-42", "a\u200Bb"} {
		once := n.Normalize(in)
		assert.Equal(t, once, n.Normalize(once), in)
	}
}

func TestNormalizeLatinCyrillicCollide(t *testing.T) {
	n := NewNormalizer()
	assert.Equal(t, n.Normalize("A123"), n.Normalize("А123"))
	assert.Equal(t, n.Normalize("abc-1"), n.Normalize("АВС-1"))
}

func TestNormalizerCacheClearsAtLimit(t *testing.T) {
	n := NewNormalizer()
	n.limit = 3
	for i := 0; i < 3; i++ {
		n.Normalize(fmt.Sprintf("id-%d", i))
	}
	require.Equal(t, 3, n.CacheLen())

	// четвёртое значение сбрасывает кэш и ложится в пустой
	assert.Equal(t, "id-3", n.Normalize("ID-3"))
	assert.Equal(t, 1, n.CacheLen())
	// результат не зависит от состояния кэша
	assert.Equal(t, "id-0", n.Normalize("id-0"))
}
