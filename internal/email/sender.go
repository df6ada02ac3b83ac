package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/http"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"gospeldiary/internal/config"
	"gospeldiary/internal/core"
	"gospeldiary/internal/logger"
)

const defaultSendTimeout = 30 * time.Second

// Sender delivers a rendered message to its configured recipients.
type Sender interface {
	Send(ctx context.Context, msg Message) error
	Name() string
}

// NewSender creates the sender for the configured provider
func NewSender(cfg config.Email) (Sender, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}

	switch strings.ToLower(cfg.Provider) {
	case "smtp", "gmail", "":
		username := cfg.SMTP.Username
		if username == "" {
			username = cfg.From
		}
		return &SMTPSender{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: username,
			Password: cfg.Password,
			From:     mail.Address{Name: cfg.FromName, Address: cfg.From},
			To:       cfg.To,
			Timeout:  timeout,
		}, nil
	case "sendgrid":
		apiKey := cfg.SendGrid.APIKey
		if apiKey == "" {
			apiKey = cfg.Password
		}
		return &SendGridSender{
			APIKey:     apiKey,
			BaseURL:    cfg.SendGrid.BaseURL,
			From:       mail.Address{Name: cfg.FromName, Address: cfg.From},
			To:         cfg.To,
			HTTPClient: &http.Client{Timeout: timeout},
		}, nil
	default:
		return nil, fmt.Errorf("unsupported email provider: %s", cfg.Provider)
	}
}

// SMTPSender sends mail through an SMTP relay. Port 465 uses implicit TLS;
// other ports upgrade with STARTTLS when the server offers it.
type SMTPSender struct {
	Host     string
	Port     int
	Username string
	Password string
	From     mail.Address
	To       []string
	Timeout  time.Duration
}

func (s *SMTPSender) Name() string { return "smtp" }

// Send delivers msg to every recipient in one transaction
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if len(s.To) == 0 {
		return errors.New("no recipients configured")
	}

	raw, err := buildMIME(s.From, s.To, msg, time.Now())
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
	dialer := &net.Dialer{Timeout: s.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server %s: %w", addr, err)
	}
	if s.Timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(s.Timeout))
	}
	if s.Port == 465 {
		conn = tls.Client(conn, &tls.Config{ServerName: s.Host})
	}

	client, err := smtp.NewClient(conn, s.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to start SMTP session: %w", err)
	}
	defer func() { _ = client.Close() }()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: s.Host}); err != nil {
			return fmt.Errorf("STARTTLS failed: %w", err)
		}
	}

	if s.Password != "" {
		if ok, _ := client.Extension("AUTH"); !ok {
			return errors.New("SMTP server does not support authentication")
		}
		if err := client.Auth(smtp.PlainAuth("", s.Username, s.Password, s.Host)); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	if err := client.Mail(s.From.Address); err != nil {
		return fmt.Errorf("MAIL FROM rejected: %w", err)
	}
	for _, to := range s.To {
		if err := client.Rcpt(to); err != nil {
			return fmt.Errorf("recipient %s rejected: %w", to, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA rejected: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("message rejected: %w", err)
	}

	return client.Quit()
}

// buildMIME assembles a multipart/alternative message with quoted-printable parts.
func buildMIME(from mail.Address, to []string, msg Message, now time.Time) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	parts := []struct {
		contentType string
		content     string
	}{
		{"text/plain; charset=UTF-8", msg.Text},
		{"text/html; charset=UTF-8", msg.HTML},
	}
	for _, part := range parts {
		h := textproto.MIMEHeader{}
		h.Set("Content-Type", part.contentType)
		h.Set("Content-Transfer-Encoding", "quoted-printable")
		pw, err := mw.CreatePart(h)
		if err != nil {
			return nil, fmt.Errorf("failed to create MIME part: %w", err)
		}
		qp := quotedprintable.NewWriter(pw)
		if _, err := qp.Write([]byte(part.content)); err != nil {
			return nil, fmt.Errorf("failed to encode MIME part: %w", err)
		}
		if err := qp.Close(); err != nil {
			return nil, fmt.Errorf("failed to encode MIME part: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close MIME body: %w", err)
	}

	domain := "localhost"
	if at := strings.LastIndex(from.Address, "@"); at >= 0 {
		domain = from.Address[at+1:]
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from.String())
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", now.Format(time.RFC1123Z))
	fmt.Fprintf(&buf, "Message-ID: <%s@%s>\r\n", uuid.NewString(), domain)
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", mw.Boundary())
	buf.WriteString("\r\n")
	buf.Write(body.Bytes())

	return buf.Bytes(), nil
}

// SendGridSender sends mail through the SendGrid v3 API
type SendGridSender struct {
	APIKey     string
	BaseURL    string
	From       mail.Address
	To         []string
	HTTPClient *http.Client
}

func (s *SendGridSender) Name() string { return "sendgrid" }

type sendGridAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendGridPersonalization struct {
	To []sendGridAddress `json:"to"`
}

type sendGridRequest struct {
	Personalizations []sendGridPersonalization `json:"personalizations"`
	From             sendGridAddress           `json:"from"`
	Subject          string                    `json:"subject"`
	Content          []sendGridContent         `json:"content"`
}

// Send posts msg to the SendGrid mail endpoint
func (s *SendGridSender) Send(ctx context.Context, msg Message) error {
	if len(s.To) == 0 {
		return errors.New("no recipients configured")
	}

	payload := sendGridRequest{
		From:    sendGridAddress{Email: s.From.Address, Name: s.From.Name},
		Subject: msg.Subject,
		Content: []sendGridContent{
			{Type: "text/plain", Value: msg.Text},
			{Type: "text/html", Value: msg.HTML},
		},
	}
	var to []sendGridAddress
	for _, addr := range s.To {
		to = append(to, sendGridAddress{Email: addr})
	}
	payload.Personalizations = []sendGridPersonalization{{To: to}}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal SendGrid request: %w", err)
	}

	baseURL := strings.TrimSuffix(s.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.sendgrid.com"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/v3/mail/send", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.APIKey)

	client := s.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultSendTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send SendGrid request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("SendGrid returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return nil
}

// Mailer renders deliveries and hands them to a Sender.
type Mailer struct {
	sender   Sender
	template *EmailTemplate
	log      *slog.Logger
}

// NewMailer creates a Mailer. A nil template uses the default one.
func NewMailer(sender Sender, emailTemplate *EmailTemplate, log *slog.Logger) *Mailer {
	if emailTemplate == nil {
		emailTemplate = GetDefaultEmailTemplate()
	}
	if log == nil {
		log = logger.Get()
	}
	return &Mailer{
		sender:   sender,
		template: emailTemplate,
		log:      log.With("component", "email", "provider", sender.Name()),
	}
}

// Deliver renders d and sends it.
func (m *Mailer) Deliver(ctx context.Context, d core.Delivery) error {
	msg, err := Render(d, m.template)
	if err != nil {
		return fmt.Errorf("failed to render email: %w", err)
	}

	m.log.Info("Sending email", "run_id", d.RunID, "subject", msg.Subject)
	if err := m.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send email via %s: %w", m.sender.Name(), err)
	}
	m.log.Info("Email sent", "run_id", d.RunID)

	return nil
}
