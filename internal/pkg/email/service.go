package email

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrNotConfigured is returned when no provider API key is set.
var ErrNotConfigured = errors.New("email provider not configured")

// Sender interface for sending emails
type Sender interface {
	Send(ctx context.Context, msg *EmailMessage) error
}

// Service renders templates and delivers them through a Sender
type Service struct {
	client       Sender
	templates    map[string]*template.Template
	baseTemplate *template.Template
	queue        chan *QueuedEmail
	wg           sync.WaitGroup
	closeOnce    sync.Once
}

// QueuedEmail represents an email in the send queue
type QueuedEmail struct {
	To           string
	ToName       string
	Subject      string
	TemplateName string
	Data         interface{}
}

// NewService creates an email service backed by Resend
func NewService(config ResendConfig) *Service {
	return NewServiceWithSender(NewResendClient(config))
}

// NewServiceWithSender creates an email service around any Sender.
func NewServiceWithSender(client Sender) *Service {
	s := &Service{
		client:       client,
		templates:    make(map[string]*template.Template),
		baseTemplate: template.Must(template.New("base").Parse(BaseTemplate)),
		queue:        make(chan *QueuedEmail, 100),
	}

	s.loadTemplates()

	s.wg.Add(1)
	go s.worker()

	return s
}

func (s *Service) loadTemplates() {
	templates := map[string]string{
		TemplateVerificationCode: VerificationCodeTemplate,
		TemplateWelcome:          WelcomeTemplate,
	}

	for name, content := range templates {
		tmpl, err := template.New(name).Parse(content)
		if err != nil {
			log.Error().Err(err).Str("template", name).Msg("Failed to parse email template")
			continue
		}
		s.templates[name] = tmpl
	}
}

// worker processes queued emails asynchronously
func (s *Service) worker() {
	defer s.wg.Done()

	for email := range s.queue {
		if err := s.send(context.Background(), email); err != nil {
			log.Error().Err(err).
				Str("to", email.To).
				Str("template", email.TemplateName).
				Msg("Failed to send email")
		}
	}
}

func (s *Service) render(name string, data interface{}) (string, error) {
	tmpl, ok := s.templates[name]
	if !ok {
		return "", fmt.Errorf("template %s not found", name)
	}

	var contentBuf bytes.Buffer
	if err := tmpl.Execute(&contentBuf, data); err != nil {
		return "", err
	}

	var htmlBuf bytes.Buffer
	if err := s.baseTemplate.Execute(&htmlBuf, map[string]interface{}{
		"Content": template.HTML(contentBuf.String()),
	}); err != nil {
		return "", err
	}
	return htmlBuf.String(), nil
}

func (s *Service) send(ctx context.Context, email *QueuedEmail) error {
	html, err := s.render(email.TemplateName, email.Data)
	if err != nil {
		return err
	}

	return s.client.Send(ctx, &EmailMessage{
		To:          email.To,
		ToName:      email.ToName,
		Subject:     email.Subject,
		HTMLContent: html,
	})
}

// Queue adds an email to the async send queue
func (s *Service) Queue(to, toName, templateName, subject string, data interface{}) {
	select {
	case s.queue <- &QueuedEmail{
		To:           to,
		ToName:       toName,
		Subject:      subject,
		TemplateName: templateName,
		Data:         data,
	}:
	default:
		log.Warn().Str("to", to).Msg("Email queue full, dropping email")
	}
}

// SendSync sends an email synchronously (blocking)
func (s *Service) SendSync(ctx context.Context, to, toName, templateName, subject string, data interface{}) error {
	return s.send(ctx, &QueuedEmail{
		To:           to,
		ToName:       toName,
		Subject:      subject,
		TemplateName: templateName,
		Data:         data,
	})
}

// Close drains the queue and stops the worker
func (s *Service) Close() {
	s.closeOnce.Do(func() {
		close(s.queue)
		s.wg.Wait()
	})
}

// SendVerificationCode delivers a registration code and waits for the provider.
func (s *Service) SendVerificationCode(ctx context.Context, to, code string, ttlMinutes int) error {
	return s.SendSync(ctx, to, "", TemplateVerificationCode, "Your Banana AI Studio verification code", map[string]interface{}{
		"Code":       code,
		"TTLMinutes": ttlMinutes,
	})
}

// SendWelcome queues the welcome email for a new account
func (s *Service) SendWelcome(to string, credits int64, dashboardURL string) {
	s.Queue(to, "", TemplateWelcome, "Welcome to Banana AI Studio", map[string]interface{}{
		"Email":        to,
		"Credits":      credits,
		"DashboardURL": dashboardURL,
	})
}
