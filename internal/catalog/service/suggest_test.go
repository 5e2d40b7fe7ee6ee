package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, similarity("abc", "abc"))
	assert.Equal(t, 1.0, similarity("", ""))
	assert.InDelta(t, 0.75, similarity("abcd", "abce"), 1e-9)
	assert.Equal(t, 0.0, similarity("abc", ""))
}

func TestTrigramCandidates(t *testing.T) {
	idx := make(trigramIndex)
	for _, nid := range []string{"abc-123", "abc-124", "xyz-9"} {
		idx.add(nid)
	}
	assert.Equal(t, []string{"abc-123", "abc-124"}, idx.candidates("abc-12"))
	assert.Empty(t, idx.candidates("qqq"))
}

func TestWorkspaceSuggest(t *testing.T) {
	ws, _ := newTestWorkspace(t, nil)
	_, err := ws.UploadTable("a", "a.csv", grid("ABC-123", "ABC-124", "XYZ-9"))
	require.NoError(t, err)
	_, err = ws.UploadTable("b", "b.csv", grid("abc-123"))
	require.NoError(t, err)

	got, err := ws.Suggest("ABC-123", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "ABC-123", got[0].ID)
	assert.Equal(t, 1.0, got[0].Score)
	assert.Equal(t, 2, got[0].Tables)
	assert.Equal(t, "abc-124", got[1].NormalizedID)
	assert.Equal(t, 1, got[1].Tables)

	got, err = ws.Suggest("abc-12", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "abc-123", got[0].NormalizedID)

	_, err = ws.Suggest("  ", 5)
	assert.ErrorIs(t, err, ErrEmptyID)
}
