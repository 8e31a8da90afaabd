package match

import (
	"strings"

	"mailroom/backend/internal/domain"
)

// MatchField 命中的联系人字段
type MatchField string

const (
	FieldMailboxNumber MatchField = "mailbox_number"
	FieldContactPerson MatchField = "contact_person"
	FieldCompanyName   MatchField = "company_name"
)

// 字段权重：OCR 文本多半是收件人姓名，个人姓名优先于公司名。
const (
	weightContactPerson = 0.7
	weightCompanyName   = 0.3
)

// MinConfidence 低于该置信度的结果视为未命中。
//
// 照片/OCR 文本噪声大，低于 50% 的匹配错发通知的代价远高于
// 提示人工确认，宁可不匹配。
const MinConfidence = 0.5

// Match 模糊匹配结果。
type Match struct {
	Contact    *domain.Contact `json:"contact"`
	Confidence float64         `json:"confidence"`
	Field      MatchField      `json:"matchedField"`
}

// MatchContact 在联系人列表中查找 OCR/AI 提取文本的最佳匹配。
//
// 流程：
//  1. 空输入或空联系人集直接返回 nil。
//  2. 与任一信箱号大小写不敏感全等 -> 置信度 1.0 立即返回。
//  3. 用归一化文本、去空格文本和 NameVariations 的每个变体，
//     对 contact_person(0.7) / company_name(0.3) 两个加权字段搜索，
//     比较时额外尝试去空格与词序归一化形态以容忍 OCR 噪声，
//     保留加权得分最高的一条。
//  4. 置信度 < MinConfidence 返回 nil。
func MatchContact(text string, contacts []domain.Contact) *Match {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || len(contacts) == 0 {
		return nil
	}

	// 信箱号精确命中
	for i := range contacts {
		number := contacts[i].MailboxNumber
		if number != "" && strings.EqualFold(trimmed, number) {
			return &Match{
				Contact:    &contacts[i],
				Confidence: 1.0,
				Field:      FieldMailboxNumber,
			}
		}
	}

	norm := normalize(trimmed)
	queries := []string{norm}
	if spaceless := removeSpaces(norm); spaceless != norm {
		queries = append(queries, spaceless)
	}
	queries = append(queries, NameVariations(norm)...)

	var (
		best         *Match
		bestWeighted float64
	)

	for i := range contacts {
		contact := &contacts[i]

		personConf := bestFieldConfidence(queries, contact.ContactPerson)
		companyConf := bestFieldConfidence(queries, contact.CompanyName)

		// 加权得分用于候选排序，置信度取两个字段的原始最高相似度。
		conf, field := personConf, FieldContactPerson
		if companyConf > conf {
			conf, field = companyConf, FieldCompanyName
		}
		weighted := personConf * weightContactPerson
		if w := companyConf * weightCompanyName; w > weighted {
			weighted = w
		}

		if best == nil || weighted > bestWeighted {
			best = &Match{Contact: contact, Confidence: conf, Field: field}
			bestWeighted = weighted
		}
	}

	if best == nil || best.Confidence < MinConfidence {
		return nil
	}

	// 两个字段都存在时，按输入与各字段的 Levenshtein 相似度消歧。
	if best.Contact.ContactPerson != "" && best.Contact.CompanyName != "" {
		personSim := Similarity(norm, normalize(best.Contact.ContactPerson))
		companySim := Similarity(norm, normalize(best.Contact.CompanyName))
		if companySim > personSim {
			best.Field = FieldCompanyName
		} else {
			best.Field = FieldContactPerson
		}
	} else if best.Contact.ContactPerson == "" && best.Contact.CompanyName != "" {
		best.Field = FieldCompanyName
	}

	return best
}

// bestFieldConfidence 在所有查询形态下取字段的最高相似度。
func bestFieldConfidence(queries []string, field string) float64 {
	if field == "" {
		return 0
	}
	fieldNorm := normalize(field)
	fieldSpaceless := removeSpaces(fieldNorm)
	fieldSorted := tokenSort(fieldNorm)

	best := 0.0
	for _, q := range queries {
		if sim := Similarity(q, fieldNorm); sim > best {
			best = sim
		}
		if sim := Similarity(removeSpaces(q), fieldSpaceless); sim > best {
			best = sim
		}
		if sim := Similarity(tokenSort(q), fieldSorted); sim > best {
			best = sim
		}
	}
	return best
}
