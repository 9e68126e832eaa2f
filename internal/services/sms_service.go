package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pslattery/gatehouse/internal/config"
)

// SMSService defines the interface for sending one-time codes over SMS
type SMSService interface {
	SendOTP(ctx context.Context, mobile, code string) error
}

// GatewaySMSService delivers messages through an HTTP SMS gateway using a
// form-encoded POST with basic auth, the protocol Twilio-compatible
// gateways speak.
type GatewaySMSService struct {
	client     *http.Client
	gatewayURL string
	accountID  string
	authToken  string
	fromNumber string
	logger     *slog.Logger
}

func NewGatewaySMSService(cfg *config.SMSConfig, logger *slog.Logger) *GatewaySMSService {
	return &GatewaySMSService{
		client:     &http.Client{Timeout: cfg.Timeout},
		gatewayURL: cfg.GatewayURL,
		accountID:  cfg.AccountID,
		authToken:  cfg.AuthToken,
		fromNumber: cfg.FromNumber,
		logger:     logger,
	}
}

// SendOTP delivers a one-time code to the mobile number.
func (s *GatewaySMSService) SendOTP(ctx context.Context, mobile, code string) error {
	form := url.Values{}
	form.Set("To", mobile)
	form.Set("From", s.fromNumber)
	form.Set("Body", fmt.Sprintf("Your verification code is %s. It expires in 1 hour.", code))

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages", strings.TrimSuffix(s.gatewayURL, "/"), s.accountID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build SMS request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(s.accountID, s.authToken)

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Error("failed to send SMS",
			slog.Any("error", err),
			slog.Duration("elapsed", time.Since(start)))
		return fmt.Errorf("failed to send SMS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logger.Error("SMS gateway rejected message",
			slog.Int("status", resp.StatusCode))
		return fmt.Errorf("SMS gateway returned status %d", resp.StatusCode)
	}

	s.logger.Info("SMS sent", slog.Duration("elapsed", time.Since(start)))
	return nil
}
