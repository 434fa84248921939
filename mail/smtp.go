// Package mail provides the SMTP-backed mailer used for verification codes.
package mail

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/stratumhq/authcore"
)

// SMTPConfig carries the relay parameters.
type SMTPConfig struct {
	Addr     string // host:port
	From     string
	Username string
	Password string
	Host     string // for AUTH; defaults to the host part of Addr
}

// SMTP is an [authcore.Mailer] that delivers through a single SMTP relay.
type SMTP struct {
	config SMTPConfig
	auth   smtp.Auth
}

var _ authcore.Mailer = (*SMTP)(nil)

// NewSMTP creates an [SMTP] mailer.
func NewSMTP(cfg SMTPConfig) (*SMTP, error) {
	if cfg.Addr == "" {
		return nil, errors.New("smtp address must not be empty")
	}
	if cfg.From == "" {
		return nil, errors.New("smtp from address must not be empty")
	}

	m := &SMTP{config: cfg}
	if cfg.Username != "" {
		host := cfg.Host
		if host == "" {
			host = cfg.Addr
			if i := strings.LastIndexByte(host, ':'); i >= 0 {
				host = host[:i]
			}
		}
		m.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, host)
	}

	return m, nil
}

// Send describes the send operation and its observable behavior.
//
// Send may return an error when input validation, dependency calls, or security checks fail.
// Send does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *SMTP) Send(ctx context.Context, msg authcore.MailMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg.To == "" {
		return errors.New("mail recipient must not be empty")
	}

	payload := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n%s\r\n",
		m.config.From, msg.To, msg.Subject, msg.HTMLBody,
	)

	return smtp.SendMail(m.config.Addr, m.auth, m.config.From, []string{msg.To}, []byte(payload))
}
