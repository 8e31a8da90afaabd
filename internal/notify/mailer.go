package notify

import (
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/jhillyerd/enmime"
	"go.uber.org/zap"

	"mailroom/backend/internal/config"
)

// Mailer 通过员工授权的 Gmail 账号发送取件通知
//
// 走 SMTPS + OAUTHBEARER，不保存账号密码，访问令牌由
// OAuth 服务按需刷新后传入。
type Mailer struct {
	fromName string
	addr     string
	log      *zap.Logger
}

// Message 一封待发送的通知邮件
type Message struct {
	FromAddress string // 授权 Gmail 地址
	AccessToken string // 当前有效的 OAuth 访问令牌
	To          string
	ToName      string
	Subject     string
	TextBody    string
	HTMLBody    string
}

// NewMailer 创建通知发送器
func NewMailer(cfg *config.NotifyConfig, log *zap.Logger) *Mailer {
	return &Mailer{
		fromName: cfg.FromName,
		addr:     cfg.SMTPAddr,
		log:      log,
	}
}

// Send 构造并发送一封通知邮件
func (m *Mailer) Send(msg *Message) error {
	if msg.FromAddress == "" || msg.AccessToken == "" {
		return fmt.Errorf("notify: gmail account is not connected")
	}
	if msg.To == "" {
		return fmt.Errorf("notify: recipient address is required")
	}

	part, err := enmime.Builder().
		From(m.fromName, msg.FromAddress).
		To(msg.ToName, msg.To).
		Subject(msg.Subject).
		Text([]byte(msg.TextBody)).
		HTML([]byte(msg.HTMLBody)).
		Build()
	if err != nil {
		return fmt.Errorf("notify: failed to build message: %w", err)
	}

	var raw strings.Builder
	if err := part.Encode(&raw); err != nil {
		return fmt.Errorf("notify: failed to encode message: %w", err)
	}

	host := m.addr
	if idx := strings.Index(host, ":"); idx >= 0 {
		host = host[:idx]
	}

	client, err := smtp.DialTLS(m.addr, &tls.Config{ServerName: host})
	if err != nil {
		return fmt.Errorf("notify: failed to connect to %s: %w", m.addr, err)
	}
	defer client.Close()

	auth := sasl.NewOAuthBearerClient(&sasl.OAuthBearerOptions{
		Username: msg.FromAddress,
		Token:    msg.AccessToken,
	})
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("notify: authentication failed: %w", err)
	}

	if err := client.SendMail(msg.FromAddress, []string{msg.To}, strings.NewReader(raw.String())); err != nil {
		return fmt.Errorf("notify: failed to send: %w", err)
	}

	m.log.Info("notification sent",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject))
	return nil
}
