package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevenshteinDistance(t *testing.T) {
	assert.Equal(t, 0, LevenshteinDistance("kitten", "kitten"))
	assert.Equal(t, 3, LevenshteinDistance("kitten", "sitting"))
	assert.Equal(t, 5, LevenshteinDistance("", "hello"))
	assert.Equal(t, 5, LevenshteinDistance("hello", ""))
	// 大小写不敏感
	assert.Equal(t, 0, LevenshteinDistance("Jane Smith", "jane smith"))
}

func TestSimilarity_Identical(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("jane smith", "jane smith"))
	assert.Equal(t, 1.0, Similarity("Jane Smith", "jane smith"))
	assert.Equal(t, 1.0, Similarity("", ""))
}

func TestSimilarity_EmptyVsNonEmpty(t *testing.T) {
	assert.Equal(t, 0.0, Similarity("", "jane"))
	assert.Equal(t, 0.0, Similarity("jane", ""))
}

func TestSimilarity_Symmetric(t *testing.T) {
	pairs := [][2]string{
		{"jane smith", "jane smyth"},
		{"acme corp", "acme corporation"},
		{"houyu chen", "chen houyu"},
		{"a", "abcdef"},
	}
	for _, p := range pairs {
		assert.Equal(t, Similarity(p[0], p[1]), Similarity(p[1], p[0]),
			"similarity(%q,%q) 应当对称", p[0], p[1])
	}
}

func TestSimilarity_Range(t *testing.T) {
	sim := Similarity("jane smith", "jane smyth")
	assert.Greater(t, sim, 0.8)
	assert.Less(t, sim, 1.0)
}
