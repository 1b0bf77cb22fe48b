package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// EmailService defines the interface for sending emails
type EmailService interface {
	SendPasswordResetEmail(ctx context.Context, email, name, token string, expiresAt time.Time) error
}

// AWSSESEmailService sends emails using AWS SES
type AWSSESEmailService struct {
	sesClient   *ses.Client
	fromAddress string
	baseURL     string
	logger      *slog.Logger
}

// NewAWSSESEmailService creates a new AWS SES email service
func NewAWSSESEmailService(region, fromAddress, baseURL string, logger *slog.Logger) (*AWSSESEmailService, error) {
	cfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSSESEmailService{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		baseURL:     baseURL,
		logger:      logger,
	}, nil
}

// SendPasswordResetEmail sends the reset link for an outstanding reset token
func (s *AWSSESEmailService) SendPasswordResetEmail(ctx context.Context, email, name, token string, expiresAt time.Time) error {
	resetLink := fmt.Sprintf("%s/reset-password?token=%s", s.baseURL, token)
	minutes := int(time.Until(expiresAt).Minutes())

	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Helvetica, Arial, sans-serif; color: #222; line-height: 1.5; }
        .wrap { max-width: 560px; margin: 0 auto; padding: 24px; }
        .head { background: #1b5e20; color: #fff; padding: 16px; text-align: center; border-radius: 4px; }
        .button { display: inline-block; background: #1b5e20; color: #fff; padding: 12px 28px; border-radius: 4px; text-decoration: none; margin: 16px 0; }
        .notice { background: #fff8e1; border-left: 4px solid #f9a825; padding: 10px 12px; margin: 12px 0; }
        .fine { color: #777; font-size: 12px; border-top: 1px solid #ddd; margin-top: 24px; padding-top: 12px; }
    </style>
</head>
<body>
    <div class="wrap">
        <div class="head">
            <h1>Reset Your Password</h1>
        </div>
        <p>Hi %s,</p>
        <p>We received a request to reset the password for your account. Click the link below to choose a new password:</p>
        <p><a href="%s" class="button">Reset Password</a></p>
        <p>Or copy and paste this link in your browser:<br>
        <code>%s</code></p>
        <div class="notice">
            <strong>Security notice:</strong> this link expires in %d minutes and can only be used once.
        </div>
        <p><strong>Didn't request this?</strong><br>
        If you didn't ask to reset your password, you can ignore this email. Your password will not change.</p>
        <div class="fine">
            <p>This is an automated message. Please do not reply to this email.</p>
            <p>If you have any questions, please contact the office.</p>
        </div>
    </div>
</body>
</html>
`, name, resetLink, resetLink, minutes)

	textBody := fmt.Sprintf(`Reset Your Password

Hi %s,

We received a request to reset the password for your account. Open the link below to choose a new password:

%s

Security notice: this link expires in %d minutes and can only be used once.

Didn't request this?
If you didn't ask to reset your password, you can ignore this email. Your password will not change.

This is an automated message. Please do not reply to this email.
If you have any questions, please contact the office.
`, name, resetLink, minutes)

	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{email},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String("Reset your password"),
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
		s.logger.Error("failed to send password reset email via SES",
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("password reset email sent",
		slog.String("message_id", *result.MessageId))

	return nil
}
