package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseResults 解析模型返回的 JSON 结果
//
// 模型偶尔无视提示词把 JSON 包在 markdown 代码块里，
// 解析前先剥掉围栏。兼容单对象和数组两种返回。
func ParseResults(raw string) ([]Result, error) {
	cleaned := stripFences(raw)
	if cleaned == "" {
		return nil, fmt.Errorf("响应为空")
	}

	if strings.HasPrefix(cleaned, "{") {
		var single Result
		if err := json.Unmarshal([]byte(cleaned), &single); err != nil {
			return nil, fmt.Errorf("JSON 解析失败: %w", err)
		}
		return []Result{clamp(single)}, nil
	}

	var results []Result
	if err := json.Unmarshal([]byte(cleaned), &results); err != nil {
		return nil, fmt.Errorf("JSON 解析失败: %w", err)
	}
	for i := range results {
		results[i] = clamp(results[i])
	}
	return results, nil
}

// stripFences 去掉 markdown 代码块围栏
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:]
		} else {
			s = strings.TrimPrefix(s, "```json")
			s = strings.TrimPrefix(s, "```")
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

// clamp 把置信度收敛到 [0, 1]
func clamp(r Result) Result {
	if r.Confidence < 0 {
		r.Confidence = 0
	}
	if r.Confidence > 1 {
		r.Confidence = 1
	}
	return r
}
