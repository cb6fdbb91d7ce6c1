package notifier

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"
)

type SMTPConfig struct {
	Host     string
	Port     string
	User     string
	Pass     string
	From     string
	To       []string
	FromName string
}

// Email sends plain-text operator alerts over SMTP for a subset of topics
// (payment.failed by default). Anything it cannot deliver is the caller's
// log line, not a failed transition.
type Email struct {
	cfg         SMTPConfig
	topics      map[string]bool
	dialTimeout time.Duration
}

func NewEmail(cfg SMTPConfig, topics ...string) *Email {
	if len(topics) == 0 {
		topics = []string{"payment.failed"}
	}
	set := make(map[string]bool, len(topics))
	for _, t := range topics {
		set[t] = true
	}
	return &Email{cfg: cfg, topics: set, dialTimeout: 5 * time.Second}
}

func (n *Email) Notify(ctx context.Context, m Message) error {
	if !n.topics[m.Topic] {
		return nil
	}

	subject := fmt.Sprintf("[payments] %s %s", m.Topic, m.TransactionNumber)
	body := fmt.Sprintf("topic: %s\r\ntransaction: %s (%s)\r\nrefund: %s\r\ndetail: %s\r\nat: %s\r\n",
		m.Topic, m.TransactionNumber, m.TransactionID, m.RefundID, m.Detail, m.At.Format(time.RFC3339))

	from := n.cfg.From
	if n.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", n.cfg.FromName, n.cfg.From)
	}
	msg := strings.Join([]string{
		"From: " + from,
		"To: " + strings.Join(n.cfg.To, ", "),
		"Subject: " + subject,
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")

	addr := net.JoinHostPort(n.cfg.Host, n.cfg.Port)
	dialer := &net.Dialer{Timeout: n.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("smtp dial failed: %w", err)
	}
	defer conn.Close()

	c, err := smtp.NewClient(conn, n.cfg.Host)
	if err != nil {
		return fmt.Errorf("smtp client failed: %w", err)
	}
	defer c.Quit()

	if n.cfg.User != "" && n.cfg.Pass != "" {
		if ok, _ := c.Extension("AUTH"); ok {
			auth := smtp.PlainAuth("", n.cfg.User, n.cfg.Pass, n.cfg.Host)
			if err := c.Auth(auth); err != nil {
				return fmt.Errorf("smtp auth failed: %w", err)
			}
		}
	}

	if err := c.Mail(n.cfg.From); err != nil {
		return err
	}
	for _, to := range n.cfg.To {
		if err := c.Rcpt(to); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		return err
	}
	return w.Close()
}
