package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Client 外部 OCR 服务客户端
//
// 封装基于 HTTP 的文字识别服务（Tesseract 兼容协议）。引擎初始化
// 开销较大，因此采用惰性初始化：首次调用 Recognize 时检查服务
// 可用性，之后复用同一连接池。用完必须调用 Close 释放连接。
type Client struct {
	baseURL    string
	language   string
	httpClient *http.Client
	logger     *zap.Logger

	initOnce sync.Once
	initErr  error
	closed   bool
	mu       sync.Mutex
}

// Word 单词级识别结果
type Word struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Result 一次识别的完整结果
//
// Confidence 为单词置信度的平均值，范围 0-1。
type Result struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Words      []Word  `json:"words"`
}

// NewClient 创建 OCR 客户端
//
// 参数:
//   - baseURL: OCR 服务地址，如 http://ocr:8884
//   - language: 识别语言，如 eng
func NewClient(baseURL, language string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:  baseURL,
		language: language,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Recognize 识别图片中的文字
//
// 图片会先压缩到 800x600 以内再上传，照片原图通常有几 MB，
// 压缩后识别速度和准确率都更好。
func (c *Client) Recognize(ctx context.Context, imageData []byte) (*Result, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, fmt.Errorf("ocr: 客户端已关闭")
	}
	c.mu.Unlock()

	c.initOnce.Do(func() {
		c.initErr = c.ping(ctx)
	})
	if c.initErr != nil {
		return nil, fmt.Errorf("ocr: 引擎初始化失败: %w", c.initErr)
	}

	scaled, err := Downscale(imageData, maxWidth, maxHeight)
	if err != nil {
		// 压缩失败时退回原图，识别服务自己也能处理大图
		c.logger.Warn("图片压缩失败，使用原图识别", zap.Error(err))
		scaled = imageData
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", "capture.jpg")
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(scaled); err != nil {
		return nil, err
	}
	if err := writer.WriteField("language", c.language); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/recognize", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ocr: 请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ocr: 服务返回 %d: %s", resp.StatusCode, string(data))
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("ocr: 响应解析失败: %w", err)
	}

	if result.Confidence == 0 && len(result.Words) > 0 {
		var sum float64
		for _, w := range result.Words {
			sum += w.Confidence
		}
		result.Confidence = sum / float64(len(result.Words))
	}

	c.logger.Debug("OCR 识别完成",
		zap.Duration("duration", time.Since(start)),
		zap.Int("text_len", len(result.Text)),
		zap.Float64("confidence", result.Confidence))

	return &result, nil
}

// ping 检查 OCR 服务可用性
func (c *Client) ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("服务状态 %d", resp.StatusCode)
	}
	return nil
}

// Close 释放客户端资源
//
// 关闭后再调用 Recognize 返回错误，重复 Close 是安全的。
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.httpClient.CloseIdleConnections()
}
