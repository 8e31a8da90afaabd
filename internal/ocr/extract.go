package ocr

import (
	"strings"
	"unicode"
)

// 快递面单上收件人前缀标签
var recipientLabels = []string{
	"TO:", "TO ", "ATTN:", "ATTN ", "ATTENTION:",
	"RECIPIENT:", "SHIP TO:", "SHIP TO ", "DELIVER TO:", "DELIVER TO ",
}

// 地址和公司后缀等非姓名词，出现在候选行里说明该行多半不是收件人
var boilerplateTokens = map[string]bool{
	"STREET": true, "ST": true, "AVE": true, "AVENUE": true, "BLVD": true,
	"BOULEVARD": true, "ROAD": true, "RD": true, "DRIVE": true, "DR": true,
	"LANE": true, "LN": true, "SUITE": true, "STE": true, "UNIT": true,
	"APT": true, "FLOOR": true, "PO": true, "BOX": true, "ZIP": true,
	"USA": true, "FRAGILE": true, "PRIORITY": true, "EXPRESS": true,
	"TRACKING": true, "USPS": true, "UPS": true, "FEDEX": true, "DHL": true,
	"AMAZON": true, "RETURN": true, "SENDER": true, "FROM": true,
	"LLC": true, "INC": true, "CORP": true, "CO": true, "LTD": true,
}

// ExtractRecipient 从 OCR 全文中提取收件人候选
//
// 先找 TO / ATTN 等标签，取标签同行剩余部分或其后 1-2 行；
// 没有标签时退回启发式：取前几行里看起来像姓名的大写词序列，
// 过滤掉含地址、物流词的行。最多返回 3 个候选，按可信度排序。
func ExtractRecipient(text string) []string {
	lines := splitLines(text)
	if len(lines) == 0 {
		return nil
	}

	var candidates []string

	// 标签定位
	for i, line := range lines {
		upper := strings.ToUpper(line)
		for _, label := range recipientLabels {
			idx := strings.Index(upper, label)
			if idx < 0 {
				continue
			}
			rest := strings.TrimSpace(line[idx+len(label):])
			if looksLikeName(rest) {
				candidates = append(candidates, rest)
			}
			// 标签单独占一行时收件人在下面 1-2 行
			for j := i + 1; j <= i+2 && j < len(lines); j++ {
				if looksLikeName(lines[j]) {
					candidates = append(candidates, lines[j])
					break
				}
			}
			break
		}
		if len(candidates) > 0 {
			break
		}
	}

	// 无标签时从开头几行里找姓名行
	if len(candidates) == 0 {
		limit := len(lines)
		if limit > 6 {
			limit = 6
		}
		for _, line := range lines[:limit] {
			if looksLikeName(line) {
				candidates = append(candidates, line)
			}
		}
	}

	if len(candidates) > 3 {
		candidates = candidates[:3]
	}
	return candidates
}

// splitLines 拆行并去掉空行
func splitLines(text string) []string {
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// looksLikeName 判断一行文本是否像收件人姓名
//
// 要求 1-5 个词、以字母开头、数字占比低，且不含地址/物流词。
func looksLikeName(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	tokens := strings.Fields(line)
	if len(tokens) == 0 || len(tokens) > 5 {
		return false
	}

	digits, letters := 0, 0
	for _, r := range line {
		switch {
		case unicode.IsDigit(r):
			digits++
		case unicode.IsLetter(r):
			letters++
		}
	}
	if letters == 0 || digits > letters/3 {
		return false
	}

	for _, tok := range tokens {
		cleaned := strings.ToUpper(strings.Trim(tok, ".,:;#"))
		if boilerplateTokens[cleaned] {
			return false
		}
	}

	first := []rune(tokens[0])
	return unicode.IsLetter(first[0])
}
