package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"mailroom/backend/internal/domain"
)

// MaxBatchSize 单次批量识别的照片数量上限
//
// 多图请求体积大，超过 10 张时模型对单张的提取质量明显下降，
// 调用方应在发起请求前拒绝超限批次。
const MaxBatchSize = 10

// Result 智能识别结果
//
// Error 用字符串而不是 error 返回：识别失败是业务上的正常分支
// （退回 OCR 兜底），调用方统一检查 Error 字段即可，不需要对
// 限流、超时等错误类型分别处理。
type Result struct {
	ExtractedText string  `json:"extracted_text"`
	ContactID     string  `json:"contact_id"`
	Confidence    float64 `json:"confidence"`
	ItemType      string  `json:"item_type"`
	Error         string  `json:"error,omitempty"`
	RateLimited   bool    `json:"rate_limited,omitempty"`
}

// Client 视觉识别客户端
//
// 封装 Anthropic 视觉模型：上传快递面单照片和联系人名单，
// 由模型直接提取收件人并给出匹配的联系人 ID。内置限流器，
// 所有调用共享同一速率配额。
type Client struct {
	api     *anthropic.Client
	model   string
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient 创建识别客户端
//
// 参数:
//   - interval: 相邻两次 API 调用的最小间隔
func NewClient(apiKey, model string, interval time.Duration, logger *zap.Logger) *Client {
	if interval <= 0 {
		interval = time.Second
	}
	return &Client{
		api:     anthropic.NewClient(apiKey),
		model:   model,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		logger:  logger,
	}
}

// SmartMatch 识别单张面单照片并匹配联系人
//
// 永远返回非 nil 结果，失败时填充 Error 字段。
func (c *Client) SmartMatch(ctx context.Context, imageData []byte, contacts []domain.Contact) *Result {
	results := c.smartMatch(ctx, [][]byte{imageData}, contacts)
	return &results[0]
}

// SmartMatchBatch 批量识别多张面单照片
//
// 所有照片合并为一次 API 调用，返回结果与输入照片一一对应。
// 超过 MaxBatchSize 张时整批失败。
func (c *Client) SmartMatchBatch(ctx context.Context, images [][]byte, contacts []domain.Contact) []Result {
	if len(images) > MaxBatchSize {
		results := make([]Result, len(images))
		for i := range results {
			results[i].Error = fmt.Sprintf("批量识别最多 %d 张照片", MaxBatchSize)
		}
		return results
	}
	return c.smartMatch(ctx, images, contacts)
}

func (c *Client) smartMatch(ctx context.Context, images [][]byte, contacts []domain.Contact) []Result {
	results := make([]Result, len(images))
	fail := func(msg string, rateLimited bool) []Result {
		for i := range results {
			results[i].Error = msg
			results[i].RateLimited = rateLimited
		}
		return results
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fail(fmt.Sprintf("等待限流配额失败: %v", err), false)
	}

	content := make([]anthropic.MessageContent, 0, len(images)+1)
	for _, img := range images {
		content = append(content, anthropic.NewImageMessageContent(
			anthropic.NewMessageContentSource(
				anthropic.MessagesContentSourceTypeBase64,
				"image/jpeg",
				base64.StdEncoding.EncodeToString(img),
			)))
	}
	content = append(content, anthropic.NewTextMessageContent(buildPrompt(len(images), contacts)))

	start := time.Now()
	resp, err := c.api.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(c.model),
		MaxTokens: 1024,
		Messages: []anthropic.Message{
			{Role: anthropic.RoleUser, Content: content},
		},
	})
	if err != nil {
		// 限流和过载单独标记，调用方据此决定是否提示稍后重试。
		// 用类型断言判断而不是匹配错误文案，文案随服务端版本变化。
		var apiErr *anthropic.APIError
		if errors.As(err, &apiErr) && (apiErr.IsRateLimitErr() || apiErr.IsOverloadedErr()) {
			c.logger.Warn("视觉识别被限流", zap.Error(err))
			return fail("识别服务繁忙，请稍后重试", true)
		}
		c.logger.Error("视觉识别调用失败", zap.Error(err))
		return fail(fmt.Sprintf("识别调用失败: %v", err), false)
	}

	if len(resp.Content) == 0 {
		return fail("识别服务返回空响应", false)
	}

	parsed, err := ParseResults(resp.Content[0].GetText())
	if err != nil {
		c.logger.Error("识别响应解析失败",
			zap.Error(err),
			zap.String("raw", truncate(resp.Content[0].GetText(), 200)))
		return fail(fmt.Sprintf("响应解析失败: %v", err), false)
	}

	c.logger.Info("视觉识别完成",
		zap.Int("images", len(images)),
		zap.Int("results", len(parsed)),
		zap.Duration("duration", time.Since(start)))

	for i := range results {
		if i < len(parsed) {
			results[i] = parsed[i]
		} else {
			results[i].Error = "识别结果数量与照片数量不符"
		}
	}
	return results
}

// buildPrompt 构造识别提示词
//
// 联系人名单随提示词下发，模型直接返回匹配的联系人 ID，
// 省去本地二次匹配的一轮误差。
func buildPrompt(imageCount int, contacts []domain.Contact) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are reading %d mail piece photo(s) from a mailroom. ", imageCount)
	b.WriteString("For each photo, in order, extract the recipient name or mailbox number ")
	b.WriteString("printed on the label and match it against this contact roster:\n\n")

	for _, c := range contacts {
		fmt.Fprintf(&b, "- id=%s person=%q company=%q mailbox=%q\n",
			c.ID, c.ContactPerson, c.CompanyName, c.MailboxNumber)
	}

	b.WriteString("\nRespond with ONLY a JSON array, one object per photo, in photo order:\n")
	b.WriteString(`[{"extracted_text": "...", "contact_id": "...", "confidence": 0.0, "item_type": "letter|package"}]` + "\n")
	b.WriteString("Use an empty contact_id and confidence 0 when no roster entry matches. ")
	b.WriteString("confidence is your certainty in the match, between 0 and 1. ")
	b.WriteString("No markdown, no explanations.")
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
