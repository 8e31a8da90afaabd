package match

import (
	"strings"
)

// LevenshteinDistance 计算两个字符串的编辑距离（大小写不敏感）。
// 使用单行 DP，空间复杂度 O(min_len)。
func LevenshteinDistance(a, b string) int {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	ra := []rune(a)
	rb := []rune(b)
	la, lb := len(ra), len(rb)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}

	prev := make([]int, lb+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= la; i++ {
		curr := make([]int, lb+1)
		curr[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(curr[j-1]+1, min(prev[j]+1, prev[j-1]+cost))
		}
		prev = curr
	}
	return prev[lb]
}

// Similarity 计算归一化的 Levenshtein 相似度：1 - 距离/最大长度。
//
// 相同字符串（含都为空）返回 1.0；一方为空另一方非空返回 0。
// 满足对称性：Similarity(a, b) == Similarity(b, a)。
func Similarity(a, b string) float64 {
	la := len([]rune(a))
	lb := len([]rune(b))
	if la == 0 && lb == 0 {
		return 1.0
	}
	if la == 0 || lb == 0 {
		return 0
	}

	dist := LevenshteinDistance(a, b)
	maxLen := la
	if lb > maxLen {
		maxLen = lb
	}
	return 1.0 - float64(dist)/float64(maxLen)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
