package service

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"mime"
	"net/mail"
	"net/smtp"
	"strings"

	"github.com/licenceland/licenceland-sync/internal/config"
	"github.com/licenceland/licenceland-sync/internal/constants"
	"github.com/licenceland/licenceland-sync/internal/models"
)

// EmailService 邮件发送服务
type EmailService struct {
	cfg *config.EmailConfig
}

// NewEmailService 创建邮件服务
func NewEmailService(cfg *config.EmailConfig) *EmailService {
	return &EmailService{cfg: cfg}
}

// SetConfig 更新运行时邮件配置
func (s *EmailService) SetConfig(cfg *config.EmailConfig) {
	if cfg == nil {
		return
	}
	s.cfg = cfg
}

// AdminEmail 库存预警收件人
func (s *EmailService) AdminEmail() string {
	if s.cfg == nil {
		return ""
	}
	return strings.TrimSpace(s.cfg.AdminEmail)
}

// OrderEmailInput 订单邮件输入
type OrderEmailInput struct {
	OrderNo      string
	EmailType    string
	CustomerName string
	Amount       models.Money
	Currency     string
	Lines        []string
}

// SendOrderEmail 发送订单通知（新订单 / 账单）
func (s *EmailService) SendOrderEmail(toEmail string, input OrderEmailInput) error {
	subject, body := buildOrderEmailContent(input)
	return s.sendTextEmail(toEmail, subject, body)
}

// CDKeyEmailInput key 发货邮件输入
type CDKeyEmailInput struct {
	OrderNo      string
	ProductName  string
	CustomerName string
	Template     string
	CDKey        string
}

// SendCDKeyEmail 发送 key 发货邮件,商品模板里的 {cd_key} 占位符被替换为实际 key
func (s *EmailService) SendCDKeyEmail(toEmail string, input CDKeyEmailInput) error {
	subject := fmt.Sprintf("Your CD key for order %s", input.OrderNo)
	body := strings.TrimSpace(input.Template)
	if body == "" {
		body = fmt.Sprintf("Thank you for your order %s.\n\nProduct: %s\nCD key: {cd_key}", input.OrderNo, input.ProductName)
	}
	body = strings.ReplaceAll(body, "{cd_key}", input.CDKey)
	return s.sendTextEmail(toEmail, subject, body)
}

// BackorderNoticeInput 缺货通知输入
type BackorderNoticeInput struct {
	OrderNo      string
	ProductName  string
	CustomerName string
	Quantity     int
}

// SendBackorderNotice 通知客户其订单排入缺货队列
func (s *EmailService) SendBackorderNotice(toEmail string, input BackorderNoticeInput) error {
	subject := fmt.Sprintf("Order %s is waiting for stock", input.OrderNo)
	name := strings.TrimSpace(input.CustomerName)
	if name == "" {
		name = "Customer"
	}
	body := fmt.Sprintf(
		"Dear %s,\n\nThe product %s (quantity %d) in your order %s is temporarily out of stock.\nYour CD key will be delivered automatically as soon as new stock arrives.",
		name, input.ProductName, input.Quantity, input.OrderNo,
	)
	return s.sendTextEmail(toEmail, subject, body)
}

// SendStockAlert 向运营方发送库存预警
func (s *EmailService) SendStockAlert(toEmail, productName string, remaining int64) error {
	subject := fmt.Sprintf("Low stock alert: %s", productName)
	body := fmt.Sprintf("Product %s has only %d CD keys left in the pool.", productName, remaining)
	return s.sendTextEmail(toEmail, subject, body)
}

func buildOrderEmailContent(input OrderEmailInput) (string, string) {
	var subject string
	switch input.EmailType {
	case constants.EmailTypeCustomerInvoice:
		subject = fmt.Sprintf("Invoice for order %s", input.OrderNo)
	default:
		subject = fmt.Sprintf("Order confirmation %s", input.OrderNo)
	}

	name := strings.TrimSpace(input.CustomerName)
	if name == "" {
		name = "Customer"
	}

	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("Dear %s,\n\n", name))
	buf.WriteString(fmt.Sprintf("Order number: %s\n", input.OrderNo))
	for _, line := range input.Lines {
		buf.WriteString(line)
		buf.WriteString("\n")
	}
	buf.WriteString(fmt.Sprintf("\nTotal: %s %s\n", input.Amount.String(), input.Currency))
	return subject, buf.String()
}

func (s *EmailService) sendTextEmail(toEmail, subject, body string) error {
	if s.cfg == nil || !s.cfg.Enabled {
		return ErrEmailServiceDisabled
	}
	if s.cfg.Host == "" || s.cfg.Port == 0 || s.cfg.From == "" {
		return ErrEmailServiceNotConfigured
	}
	if _, err := mail.ParseAddress(toEmail); err != nil {
		return ErrInvalidEmail
	}

	from := buildFromAddress(s.cfg.From, s.cfg.FromName)
	msg := buildEmailMessage(from, toEmail, subject, body)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	var auth smtp.Auth
	if s.cfg.Username != "" || s.cfg.Password != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	if s.cfg.UseSSL {
		return sendMailWithSSL(addr, auth, s.cfg.Host, s.cfg.From, []string{toEmail}, []byte(msg))
	}
	if s.cfg.UseTLS {
		return sendMailWithStartTLS(addr, auth, s.cfg.Host, s.cfg.From, []string{toEmail}, []byte(msg))
	}
	return sendMailPlain(addr, auth, s.cfg.Host, s.cfg.From, []string{toEmail}, []byte(msg))
}

func buildFromAddress(from, name string) string {
	trimmedName := strings.TrimSpace(name)
	if trimmedName == "" {
		return from
	}
	return fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("UTF-8", trimmedName), from)
}

func buildEmailMessage(from, to, subject, body string) string {
	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("From: %s\r\n", from))
	buf.WriteString(fmt.Sprintf("To: %s\r\n", to))
	buf.WriteString(fmt.Sprintf("Subject: %s\r\n", mime.QEncoding.Encode("UTF-8", subject)))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(body)
	return buf.String()
}

func sendMailWithSSL(addr string, auth smtp.Auth, host, from string, to []string, msg []byte) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: host})
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		return err
	}
	defer client.Close()

	if auth != nil {
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(auth); err != nil {
				return err
			}
		}
	}

	return sendSMTPData(client, from, to, msg)
}

func sendMailWithStartTLS(addr string, auth smtp.Auth, host, from string, to []string, msg []byte) error {
	client, err := smtp.Dial(addr)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.StartTLS(&tls.Config{ServerName: host}); err != nil {
		return err
	}

	if auth != nil {
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(auth); err != nil {
				return err
			}
		}
	}

	return sendSMTPData(client, from, to, msg)
}

func sendMailPlain(addr string, auth smtp.Auth, host, from string, to []string, msg []byte) error {
	client, err := smtp.Dial(addr)
	if err != nil {
		return err
	}
	defer client.Close()

	if auth != nil {
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(auth); err != nil {
				return err
			}
		}
	}

	return sendSMTPData(client, from, to, msg)
}

func sendSMTPData(client *smtp.Client, from string, to []string, msg []byte) error {
	if err := client.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}
