package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"net/smtp"
	"strings"
)

// SMTPSender delivers over SMTPS (implicit TLS, e.g. Gmail on port 465)
// with PLAIN auth.
type SMTPSender struct {
	Host     string
	Port     int
	User     string
	Password string

	// dial is swappable for tests.
	dial func(addr, host string) (smtpConn, error)
}

type smtpConn interface {
	Auth(a smtp.Auth) error
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}

func NewSMTPSender(host string, port int, user, password string) *SMTPSender {
	return &SMTPSender{Host: host, Port: port, User: user, Password: password, dial: dialTLS}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	body, err := BuildMIME(msg)
	if err != nil {
		return &SendError{Transport: "smtp", Err: err}
	}

	// net/smtp has no context support; honor cancellation before dialing.
	if err := ctx.Err(); err != nil {
		return &SendError{Transport: "smtp", Err: err}
	}

	addr := fmt.Sprintf("%s:%d", s.Host, s.Port)
	conn, err := s.dial(addr, s.Host)
	if err != nil {
		return &SendError{Transport: "smtp", Err: fmt.Errorf("dial %s: %w", addr, err)}
	}
	defer conn.Close()

	if s.User != "" {
		auth := smtp.PlainAuth("", s.User, s.Password, s.Host)
		if err := conn.Auth(auth); err != nil {
			return &SendError{Transport: "smtp", Err: fmt.Errorf("auth: %w", err)}
		}
	}

	if err := conn.Mail(msg.From); err != nil {
		return &SendError{Transport: "smtp", Err: fmt.Errorf("mail from: %w", err)}
	}
	for _, rcpt := range msg.To {
		if err := conn.Rcpt(rcpt); err != nil {
			return &SendError{Transport: "smtp", Err: fmt.Errorf("rcpt %s: %w", rcpt, err)}
		}
	}

	w, err := conn.Data()
	if err != nil {
		return &SendError{Transport: "smtp", Err: fmt.Errorf("data: %w", err)}
	}
	if _, err := w.Write(body); err != nil {
		return &SendError{Transport: "smtp", Err: fmt.Errorf("write: %w", err)}
	}
	if err := w.Close(); err != nil {
		return &SendError{Transport: "smtp", Err: fmt.Errorf("close: %w", err)}
	}

	if err := conn.Quit(); err != nil {
		return &SendError{Transport: "smtp", Err: fmt.Errorf("quit: %w", err)}
	}
	return nil
}

func dialTLS(addr, host string) (smtpConn, error) {
	tlsConn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: host})
	if err != nil {
		return nil, err
	}
	c, err := smtp.NewClient(tlsConn, host)
	if err != nil {
		tlsConn.Close()
		return nil, err
	}
	return &realSMTPConn{c: c}, nil
}

type realSMTPConn struct{ c *smtp.Client }

func (r *realSMTPConn) Auth(a smtp.Auth) error        { return r.c.Auth(a) }
func (r *realSMTPConn) Mail(from string) error        { return r.c.Mail(from) }
func (r *realSMTPConn) Rcpt(to string) error          { return r.c.Rcpt(to) }
func (r *realSMTPConn) Data() (io.WriteCloser, error) { return r.c.Data() }
func (r *realSMTPConn) Quit() error                   { return r.c.Quit() }
func (r *realSMTPConn) Close() error                  { return r.c.Close() }

const mimeBoundary = "samdaily-attachment-boundary"

// BuildMIME assembles a multipart/mixed message: plain-text part plus one
// base64-encoded attachment. Header values are sanitized against CRLF
// injection.
func BuildMIME(msg Message) ([]byte, error) {
	if msg.From == "" || len(msg.To) == 0 {
		return nil, fmt.Errorf("message needs from and at least one recipient")
	}

	var buf bytes.Buffer
	writeHeader := func(k, v string) {
		fmt.Fprintf(&buf, "%s: %s\r\n", k, sanitizeHeader(v))
	}

	writeHeader("From", msg.From)
	writeHeader("To", strings.Join(msg.To, ", "))
	writeHeader("Subject", mime.QEncoding.Encode("utf-8", sanitizeHeader(msg.Subject)))
	writeHeader("MIME-Version", "1.0")
	writeHeader("Content-Type", fmt.Sprintf(`multipart/mixed; boundary=%q`, mimeBoundary))
	buf.WriteString("\r\n")

	fmt.Fprintf(&buf, "--%s\r\n", mimeBoundary)
	buf.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	buf.WriteString(msg.Body)
	buf.WriteString("\r\n")

	att := msg.Attachment
	if att.Filename != "" {
		mimeType := att.MIMEType
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		fmt.Fprintf(&buf, "--%s\r\n", mimeBoundary)
		fmt.Fprintf(&buf, "Content-Type: %s\r\n", sanitizeHeader(mimeType))
		buf.WriteString("Content-Transfer-Encoding: base64\r\n")
		fmt.Fprintf(&buf, "Content-Disposition: attachment; filename=%q\r\n\r\n", sanitizeHeader(att.Filename))

		encoded := base64.StdEncoding.EncodeToString(att.Content)
		for len(encoded) > 76 {
			buf.WriteString(encoded[:76])
			buf.WriteString("\r\n")
			encoded = encoded[76:]
		}
		buf.WriteString(encoded)
		buf.WriteString("\r\n")
	}

	fmt.Fprintf(&buf, "--%s--\r\n", mimeBoundary)
	return buf.Bytes(), nil
}

func sanitizeHeader(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", "")
	return s
}
