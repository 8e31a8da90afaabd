package match

import (
	"sort"
	"strings"
)

// NameVariations 为多词姓名生成备选的分词组合。
//
// OCR 经常把一个名字拆成两段（"Hou yu" 实为 "Houyu"），因此把前两个
// 词合并生成一个变体；当词数 >= 3 时再把最后两个词合并生成第二个变体。
// 输入应当已经小写并做过空白归一化；单词输入返回空集。
func NameVariations(name string) []string {
	tokens := strings.Fields(name)
	if len(tokens) < 2 {
		return nil
	}

	variations := make([]string, 0, 2)

	merged := append([]string{tokens[0] + tokens[1]}, tokens[2:]...)
	variations = append(variations, strings.Join(merged, " "))

	if len(tokens) >= 3 {
		last := tokens[len(tokens)-2] + tokens[len(tokens)-1]
		merged = append(append([]string{}, tokens[:len(tokens)-2]...), last)
		variations = append(variations, strings.Join(merged, " "))
	}

	return variations
}

// normalize 小写化并把连续空白压缩为单个空格。
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// removeSpaces 去掉所有空格。
func removeSpaces(s string) string {
	return strings.ReplaceAll(s, " ", "")
}

// tokenSort 将词序归一化（按字典序重排），用于容忍姓名顺序颠倒。
func tokenSort(s string) string {
	tokens := strings.Fields(s)
	if len(tokens) < 2 {
		return s
	}
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}
