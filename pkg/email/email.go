package email

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"html/template"
	"net/smtp"
	"time"

	"nebulaai/pkg/logger"
)

// Config 邮件配置
type Config struct {
	Host     string // SMTP服务器地址
	Port     int    // SMTP服务器端口
	Username string // 邮箱账号
	Password string // 邮箱密码
	From     string // 发件人
	FromName string // 发件人名称
}

// ReceiptData 购买回执邮件数据
type ReceiptData struct {
	To             string
	Username       string
	OrderNo        string
	PlanName       string
	Amount         float64
	MembershipType string
	ExpiresAt      *time.Time
	PaidAt         time.Time
}

// 回执邮件模板，内容简单直接内联，避免部署时携带模板目录
var receiptTemplate = template.Must(template.New("receipt").Parse(`
<div style="max-width:600px;margin:0 auto;font-family:sans-serif">
  <h2>感谢您的购买</h2>
  <p>{{.Username}}，您好：</p>
  <p>您的订单 <b>{{.OrderNo}}</b> 已支付成功。</p>
  <table cellpadding="6">
    <tr><td>套餐</td><td>{{.PlanName}}</td></tr>
    <tr><td>金额</td><td>￥{{printf "%.2f" .Amount}}</td></tr>
    <tr><td>会员类型</td><td>{{.MembershipType}}</td></tr>
    {{if .ExpiresAt}}<tr><td>有效期至</td><td>{{.ExpiresAt.Format "2006-01-02"}}</td></tr>{{end}}
    <tr><td>支付时间</td><td>{{.PaidAt.Format "2006-01-02 15:04:05"}}</td></tr>
  </table>
</div>
`))

// Service 邮件服务
type Service struct {
	config Config
	logger *logger.Logger
}

// NewService 创建邮件服务
func NewService(config Config, logger *logger.Logger) *Service {
	return &Service{
		config: config,
		logger: logger,
	}
}

// SendReceipt 发送购买回执邮件
func (s *Service) SendReceipt(data ReceiptData) error {
	buf := new(bytes.Buffer)
	if err := receiptTemplate.Execute(buf, data); err != nil {
		return fmt.Errorf("渲染回执邮件模板失败: %w", err)
	}

	subject := fmt.Sprintf("NebulaAI - 订单%s支付成功", data.OrderNo)
	return s.send(data.To, subject, buf.String())
}

// send 通过SMTP发送HTML邮件
func (s *Service) send(to, subject, body string) error {
	headers := map[string]string{
		"From":         fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From),
		"To":           to,
		"Subject":      subject,
		"MIME-Version": "1.0",
		"Content-Type": "text/html; charset=UTF-8",
	}

	message := ""
	for k, v := range headers {
		message += fmt.Sprintf("%s: %s\r\n", k, v)
	}
	message += "\r\n" + body

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	tlsConfig := &tls.Config{
		InsecureSkipVerify: true,
		ServerName:         s.config.Host,
	}

	conn, err := tls.Dial("tcp", addr, tlsConfig)
	if err != nil {
		return fmt.Errorf("创建TLS连接失败: %w", err)
	}

	client, err := smtp.NewClient(conn, s.config.Host)
	if err != nil {
		return fmt.Errorf("创建SMTP客户端失败: %w", err)
	}
	defer client.Close()

	auth := smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	if err = client.Auth(auth); err != nil {
		return fmt.Errorf("SMTP认证失败: %w", err)
	}

	if err = client.Mail(s.config.From); err != nil {
		return fmt.Errorf("设置发件人失败: %w", err)
	}
	if err = client.Rcpt(to); err != nil {
		return fmt.Errorf("设置收件人失败: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("准备发送数据失败: %w", err)
	}
	if _, err = w.Write([]byte(message)); err != nil {
		return fmt.Errorf("写入邮件内容失败: %w", err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("关闭数据写入失败: %w", err)
	}

	s.logger.Info(fmt.Sprintf("邮件已发送至 %s", to))
	return nil
}
