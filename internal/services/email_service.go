package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// EmailService defines the interface for sending authentication emails
type EmailService interface {
	SendOTPEmail(ctx context.Context, email, code string) error
	SendMagicLinkEmail(ctx context.Context, email, link string) error
}

// AWSSESEmailService sends emails using AWS SES
type AWSSESEmailService struct {
	sesClient   *ses.Client
	fromAddress string
	logger      *slog.Logger
}

// NewAWSSESEmailService creates a new AWS SES email service
func NewAWSSESEmailService(region, fromAddress string, logger *slog.Logger) (*AWSSESEmailService, error) {
	cfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSSESEmailService{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		logger:      logger,
	}, nil
}

// SendOTPEmail delivers a one-time verification code. The same template
// serves signup verification and password reset.
func (s *AWSSESEmailService) SendOTPEmail(ctx context.Context, email, code string) error {
	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h1>Your verification code</h1>
        <p>Use the following code to continue. It expires in 1 hour.</p>
        <p style="font-size: 32px; letter-spacing: 8px; font-weight: bold;">%s</p>
        <p>If you didn't request this code, you can ignore this email.</p>
        <p style="color: #666; font-size: 12px;">This is an automated message. Please do not reply.</p>
    </div>
</body>
</html>
`, code)

	textBody := fmt.Sprintf(`Your verification code

Use the following code to continue. It expires in 1 hour.

%s

If you didn't request this code, you can ignore this email.
`, code)

	return s.send(ctx, email, "Your verification code", htmlBody, textBody, "otp")
}

// SendMagicLinkEmail delivers a single-use login link.
func (s *AWSSESEmailService) SendMagicLinkEmail(ctx context.Context, email, link string) error {
	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h1>Sign in to your account</h1>
        <p>Click the link below to sign in. It can be used once and expires in 1 hour.</p>
        <p><a href="%s" style="display: inline-block; background-color: #0066cc; color: white; padding: 12px 24px; text-decoration: none; border-radius: 4px;">Sign in</a></p>
        <p>Or copy and paste this link in your browser:<br><code>%s</code></p>
        <p>If you didn't request this link, you can ignore this email.</p>
        <p style="color: #666; font-size: 12px;">This is an automated message. Please do not reply.</p>
    </div>
</body>
</html>
`, link, link)

	textBody := fmt.Sprintf(`Sign in to your account

Click the link below to sign in. It can be used once and expires in 1 hour.

%s

If you didn't request this link, you can ignore this email.
`, link)

	return s.send(ctx, email, "Your sign-in link", htmlBody, textBody, "magic_link")
}

func (s *AWSSESEmailService) send(ctx context.Context, email, subject, htmlBody, textBody, kind string) error {
	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{email},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(subject),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data: aws.String(htmlBody),
				},
				Text: &types.Content{
					Data: aws.String(textBody),
				},
			},
		},
	}

	result, err := s.sesClient.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("failed to send email via SES",
			slog.String("kind", kind),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("email sent",
		slog.String("kind", kind),
		slog.String("message_id", *result.MessageId))

	return nil
}
