package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

const dialTimeout = 5 * time.Second

// Mailer sends plain-text mail over SMTP with opportunistic STARTTLS.
type Mailer struct {
	host string
	port int
	user string
	pass string
	from string
}

// NewMailer returns a Mailer. Authentication is used only when user is set.
func NewMailer(host string, port int, user, pass, from string) *Mailer {
	return &Mailer{host: host, port: port, user: user, pass: pass, from: from}
}

func (m *Mailer) SendMagicLink(ctx context.Context, to, link string, ttl time.Duration) error {
	body := fmt.Sprintf("Use the link below to sign in to PawPlanner:\r\n\r\n%s\r\n\r\nThe link expires in %s and can be used once. If you did not ask for it, ignore this email.\r\n",
		link, humanDuration(ttl))
	return m.send(ctx, to, "Your PawPlanner sign-in link", body)
}

func (m *Mailer) SendVerificationCode(ctx context.Context, to, code string, ttl time.Duration) error {
	body := fmt.Sprintf("Your PawPlanner verification code is %s\r\n\r\nIt expires in %s. If you did not ask for it, ignore this email.\r\n",
		code, humanDuration(ttl))
	return m.send(ctx, to, "Your PawPlanner verification code", body)
}

func (m *Mailer) send(ctx context.Context, to, subject, body string) error {
	from, err := mail.ParseAddress(m.from)
	if err != nil {
		return fmt.Errorf("notify: invalid from address: %w", err)
	}
	rcpt, err := mail.ParseAddress(to)
	if err != nil {
		return fmt.Errorf("notify: invalid recipient: %w", err)
	}
	msg := buildMessage(from.String(), rcpt.Address, subject, body)

	dialer := &net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(m.host, strconv.Itoa(m.port)))
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	c, err := smtp.NewClient(conn, m.host)
	if err != nil {
		conn.Close()
		return err
	}
	defer func() {
		if err := c.Quit(); err != nil {
			log.Printf("notify: smtp quit: %v", err)
		}
	}()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: m.host}); err != nil {
			return err
		}
	}
	if m.user != "" {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(smtp.PlainAuth("", m.user, m.pass, m.host)); err != nil {
				return err
			}
		}
	}
	if err := c.Mail(from.Address); err != nil {
		return err
	}
	if err := c.Rcpt(rcpt.Address); err != nil {
		return err
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

func buildMessage(from, to, subject, body string) string {
	var sb strings.Builder
	sb.WriteString("From: " + from + "\r\n")
	sb.WriteString("To: " + to + "\r\n")
	sb.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", subject) + "\r\n")
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(body)
	return sb.String()
}

func humanDuration(d time.Duration) string {
	if d >= time.Hour && d%time.Hour == 0 {
		return fmt.Sprintf("%d hours", d/time.Hour)
	}
	if d >= time.Minute {
		return fmt.Sprintf("%d minutes", d/time.Minute)
	}
	return d.String()
}
