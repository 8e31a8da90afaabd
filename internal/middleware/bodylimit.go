package middleware

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	// DefaultBodyLimit 默认请求体大小限制
	DefaultBodyLimit = 1 * 1024 * 1024 // 1MB - 普通 JSON 请求

	// PhotoBodyLimit 照片上传限制。批量最多 10 张，手机照片
	// 压缩后单张 2MB 左右，留出余量。
	PhotoBodyLimit = 25 * 1024 * 1024 // 25MB
)

// BodySizeLimit 限制请求体大小的中间件
func BodySizeLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 检查 Content-Length 头
		if c.Request.ContentLength > maxBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error":   "Request body too large",
				"message": fmt.Sprintf("Request body exceeds maximum size of %d bytes", maxBytes),
				"limit":   maxBytes,
				"size":    c.Request.ContentLength,
			})
			c.Abort()
			return
		}

		// 限制请求体读取大小
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)

		// 设置响应头，告知客户端最大允许的请求体大小
		c.Header("X-Max-Body-Size", strconv.FormatInt(maxBytes, 10))

		c.Next()

		// 检查是否因为请求体过大而产生错误
		if c.Errors != nil {
			for _, err := range c.Errors {
				if err.Err != nil && err.Err.Error() == "http: request body too large" {
					c.JSON(http.StatusRequestEntityTooLarge, gin.H{
						"error":   "Request body too large",
						"message": fmt.Sprintf("Request body exceeds maximum size of %d bytes", maxBytes),
						"limit":   maxBytes,
					})
					return
				}
			}
		}
	}
}
