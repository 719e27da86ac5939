package notifier

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/klokku/appointments/internal/config"
	log "github.com/sirupsen/logrus"
)

// SMTPNotifier sends plain text email to the HR address.
type SMTPNotifier struct {
	host     string
	addr     string
	user     string
	pass     string
	from     string
	to       string
	startTLS bool
}

func NewSMTPNotifier(cfg config.SMTP) *SMTPNotifier {
	from := strings.TrimSpace(cfg.From)
	if from == "" {
		from = strings.TrimSpace(cfg.User)
	}
	return &SMTPNotifier{
		host:     cfg.Host,
		addr:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		user:     cfg.User,
		pass:     cfg.Pass,
		from:     from,
		to:       strings.TrimSpace(cfg.HREmail),
		startTLS: cfg.StartTLS,
	}
}

func (s *SMTPNotifier) Send(ctx context.Context, msg Message) error {
	if s.to == "" {
		return fmt.Errorf("hr email address is not configured")
	}
	conn, err := (&net.Dialer{}).DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("could not connect to smtp server %s: %w", s.addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("could not start smtp session: %w", err)
	}
	defer client.Close()

	if s.startTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: s.host}); err != nil {
				return fmt.Errorf("smtp starttls failed: %w", err)
			}
		}
	}
	if s.user != "" {
		if err := client.Auth(smtp.PlainAuth("", s.user, s.pass, s.host)); err != nil {
			return fmt.Errorf("smtp authentication failed: %w", err)
		}
	}
	if err := client.Mail(s.from); err != nil {
		return fmt.Errorf("smtp MAIL FROM failed: %w", err)
	}
	if err := client.Rcpt(s.to); err != nil {
		return fmt.Errorf("smtp RCPT TO failed: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA failed: %w", err)
	}
	if _, err := w.Write([]byte(buildMessage(s.from, s.to, msg))); err != nil {
		return fmt.Errorf("could not write email body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp server rejected message: %w", err)
	}
	log.Debugf("sent email %q to %s", msg.Subject, s.to)
	return client.Quit()
}

func buildMessage(from, to string, msg Message) string {
	body := strings.ReplaceAll(msg.Body, "\n", "\r\n")
	return fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n",
		from,
		to,
		msg.Subject,
		body,
	)
}
