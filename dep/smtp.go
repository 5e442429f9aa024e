package dep

import (
	"bytes"
	"context"
	"encoding/json"
	"engage/config"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	brevo "github.com/getbrevo/brevo-go/lib"
	"github.com/rs/zerolog/log"
)

// brevo rejects a scheduledAt in the past
const scheduleDelay = 10 * time.Second

var (
	ErrMissingRecipient = errors.New("missing recipient email")
)

type brevoResp struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

type EmailService interface {
	SendEmail(ctx context.Context, email *Email) error
	Close(ctx context.Context) error
}

type emailService struct {
	endpoint   string
	apiKey     string
	maxRetries uint64
	client     *http.Client
}

func NewEmailService(_ context.Context, cfg config.Brevo, maxRetries uint64) (EmailService, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("empty brevo endpoint")
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &emailService{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		maxRetries: maxRetries,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

type Sender struct {
	Email string
	Name  string
}

type Receiver struct {
	Email string
	Name  string
}

type Email struct {
	From        *Sender
	To          *Receiver
	Subject     string
	HtmlContent string
	Tags        []string
}

func (s *emailService) SendEmail(ctx context.Context, email *Email) error {
	if email.To == nil || email.To.Email == "" {
		return ErrMissingRecipient
	}

	body := brevo.SendSmtpEmail{
		Sender: &brevo.SendSmtpEmailSender{
			Name:  email.From.Name,
			Email: email.From.Email,
		},
		ReplyTo: &brevo.SendSmtpEmailReplyTo{
			Email: email.From.Email,
		},
		To:          []brevo.SendSmtpEmailTo{{Email: email.To.Email, Name: email.To.Name}},
		Subject:     email.Subject,
		HtmlContent: email.HtmlContent,
		Tags:        email.Tags,
		ScheduledAt: time.Now().Add(scheduleDelay),
	}

	js, err := json.Marshal(body)
	if err != nil {
		return err
	}

	var attempt int
	op := func() error {
		attempt++
		err := s.postHttpRequest(ctx, js)
		if err != nil {
			log.Ctx(ctx).Warn().Msgf("send email failed, attempt: %d, to: %s, err: %v", attempt, email.To.Email, err)
		}
		return err
	}

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), s.maxRetries), ctx)

	return backoff.Retry(op, b)
}

func (s *emailService) Close(_ context.Context) error {
	s.client.CloseIdleConnections()
	return nil
}

// postHttpRequest returns a permanent error for responses that a retry cannot fix.
func (s *emailService) postHttpRequest(ctx context.Context, js []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(js))
	if err != nil {
		return backoff.Permanent(err)
	}

	req.Header.Add("accept", "application/json")
	req.Header.Add("content-type", "application/json")
	req.Header.Add("api-key", s.apiKey)

	res, err := s.client.Do(req)
	if err != nil {
		return err
	}

	defer func() {
		_ = res.Body.Close()
	}()

	b, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}

	if res.StatusCode >= http.StatusOK && res.StatusCode < http.StatusMultipleChoices {
		return nil
	}

	brevoResp := new(brevoResp)
	_ = json.Unmarshal(b, brevoResp)

	err = fmt.Errorf("encounter brevo error: %s, code: %s, status: %d", brevoResp.Message, brevoResp.Code, res.StatusCode)
	if res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= http.StatusInternalServerError {
		return err
	}

	return backoff.Permanent(err)
}
