package relay

import (
	"context"

	"medtime-companion/internal/model"
)

// Service combines the client with the user's settings.
type Service struct {
	client   *Client
	settings *Settings
	imageURL string
}

func NewService(client *Client, settings *Settings, imageURL string) *Service {
	return &Service{client: client, settings: settings, imageURL: imageURL}
}

// Settings returns the settings store.
func (s *Service) Settings() *Settings {
	return s.settings
}

// ImageURL is attached to active-alarm messages.
func (s *Service) ImageURL() string {
	return s.imageURL
}

// SendText sends text to the configured recipient.
func (s *Service) SendText(ctx context.Context, text, imageURL string) error {
	return s.client.Send(ctx, Message{
		Recipient: s.settings.Get().Recipient,
		Text:      text,
		ImageURL:  imageURL,
	})
}

// SendTest sends the connectivity test message regardless of the enabled flag.
func (s *Service) SendTest(ctx context.Context) error {
	return s.SendText(ctx, TestText(), "")
}

// SendSummary sends the list of alarms to the configured recipient.
func (s *Service) SendSummary(ctx context.Context, alarms []model.Alarm) error {
	return s.SendText(ctx, DailySummaryText(alarms), "")
}
