package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"battle-chat/internal/observability"
)

// Notifier delivers a new-message push to a single device. Failures are
// the caller's to log; message creation never depends on delivery.
type Notifier interface {
	NotifyNewMessage(ctx context.Context, device Device, author, text string) error
}

// Device is one push target.
type Device struct {
	Platform string // "ios" or "android"
	Token    string
}

// Config carries the gateway endpoints. Empty endpoints disable the
// corresponding platform.
type Config struct {
	APNSGatewayURL string
	APNSTopic      string
	FCMGatewayURL  string
	FCMAPIKey      string
}

// Service talks to the APNs and FCM HTTP gateways. One instance is
// built at process start and shared.
type Service struct {
	httpClient *http.Client
	cfg        Config
}

// NewService constructs the Service with a shared HTTP client.
func NewService(cfg Config) *Service {
	return &Service{httpClient: &http.Client{}, cfg: cfg}
}

// NotifyNewMessage sends one push titled "Message from <author>" with
// the message text as body.
func (s *Service) NotifyNewMessage(ctx context.Context, device Device, author, text string) error {
	title := fmt.Sprintf("Message from %s", author)

	var err error
	switch device.Platform {
	case "ios":
		err = s.sendAPNS(ctx, device.Token, title, text)
	case "android":
		err = s.sendFCM(ctx, device.Token, title, text)
	default:
		err = fmt.Errorf("unknown platform %q", device.Platform)
	}

	if err != nil {
		observability.IncPushResult(device.Platform, "error")
		return err
	}
	observability.IncPushResult(device.Platform, "ok")
	return nil
}

func (s *Service) sendAPNS(ctx context.Context, token, title, body string) error {
	if s.cfg.APNSGatewayURL == "" {
		log.Debug().Msg("apns gateway not configured, skipping push")
		return nil
	}

	payload := map[string]interface{}{
		"aps": map[string]interface{}{
			"alert": map[string]string{"title": title, "body": body},
		},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/3/device/%s", s.cfg.APNSGatewayURL, token), bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apns-topic", s.cfg.APNSTopic)
	req.Header.Set("apns-push-type", "alert")

	return s.do(req, "apns")
}

func (s *Service) sendFCM(ctx context.Context, token, title, body string) error {
	if s.cfg.FCMAPIKey == "" {
		log.Debug().Msg("fcm api key not configured, skipping push")
		return nil
	}

	payload := map[string]interface{}{
		"to":       token,
		"priority": "high",
		"notification": map[string]string{
			"title": title,
			"body":  body,
		},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.cfg.FCMGatewayURL+"/fcm/send", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+s.cfg.FCMAPIKey)

	return s.do(req, "fcm")
}

func (s *Service) do(req *http.Request, gateway string) error {
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s send: %w", gateway, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s send: unexpected status %d", gateway, resp.StatusCode)
	}
	return nil
}
