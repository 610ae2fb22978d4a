package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"
)

// NoopNotifier используется, когда почтовые уведомления выключены
type NoopNotifier struct{}

func (s *NoopNotifier) SendRejectionNotice(email, name string, codes []string, note string) error {
	log.Printf("[EmailService] noop rejection notice to=%s", email)
	return nil
}

// ResendNotifier отправляет письма через REST API Resend
type ResendNotifier struct {
	from   string
	client *resend.Client
}

func NewResendNotifier(apiKey, from string) (*ResendNotifier, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("resend api key is required")
	}
	if from == "" {
		return nil, fmt.Errorf("email from is required")
	}
	return &ResendNotifier{
		from:   from,
		client: resend.NewClient(apiKey),
	}, nil
}

// SendRejectionNotice отправляет участнице письмо об отклонении анкеты
// с причинами из словаря и заметкой модератора
func (s *ResendNotifier) SendRejectionNotice(email, name string, codes []string, note string) error {
	if email == "" {
		return fmt.Errorf("email is required")
	}

	reasons := strings.Join(codes, ", ")
	text := fmt.Sprintf("Здравствуйте, %s!\n\nК сожалению, ваша анкета отклонена.", name)
	if reasons != "" {
		text += fmt.Sprintf("\n\nПричины: %s", reasons)
	}
	if note != "" {
		text += fmt.Sprintf("\n\nКомментарий модератора: %s", note)
	}
	text += "\n\nВы можете исправить анкету и подать ее снова."

	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{email},
		Subject: "Ваша анкета отклонена",
		Text:    text,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		_, err := s.client.Emails.SendWithOptions(ctx, params, &resend.SendEmailOptions{})
		if err == nil {
			return nil
		}
		lastErr = err

		if wait, ok := resendRetryDelay(err, attempt); ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
				continue
			}
		}

		return fmt.Errorf("resend send failed: %w", err)
	}

	return fmt.Errorf("resend send failed after retries: %w", lastErr)
}

func resendRetryDelay(err error, attempt int) (time.Duration, bool) {
	var rateLimitErr *resend.RateLimitError
	if errors.As(err, &rateLimitErr) {
		if seconds, convErr := strconv.Atoi(strings.TrimSpace(rateLimitErr.RetryAfter)); convErr == nil && seconds > 0 {
			if seconds > 30 {
				seconds = 30
			}
			return time.Duration(seconds) * time.Second, true
		}
		return time.Duration(attempt+1) * time.Second, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return time.Duration(attempt+1) * 500 * time.Millisecond, true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "temporar") {
		return time.Duration(attempt+1) * 500 * time.Millisecond, true
	}

	return 0, false
}
