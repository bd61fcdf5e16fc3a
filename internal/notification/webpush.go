package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"medtime-companion/internal/model"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

type pushPayload struct {
	Title   string    `json:"title"`
	Body    string    `json:"body"`
	Type    EventType `json:"type"`
	AlarmID int64     `json:"alarmId"`
}

// WebPushSink shows local notifications on every subscribed browser.
type WebPushSink struct {
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender
}

// NewWebPushSink creates a sink sending to the subscriptions stored in db.
func NewWebPushSink(db *gorm.DB, webpushOptions *webpush.Options) *WebPushSink {
	return &WebPushSink{
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// Notify sends ev to each subscription. Expired subscriptions are removed.
func (s *WebPushSink) Notify(ctx context.Context, ev Event) error {
	var subscriptions []model.PushSubscription
	if err := s.db.WithContext(ctx).Find(&subscriptions).Error; err != nil {
		return fmt.Errorf("failed to fetch subscriptions: %w", err)
	}
	if len(subscriptions) == 0 {
		return nil
	}

	title, body := localText(ev)
	payload, err := json.Marshal(pushPayload{Title: title, Body: body, Type: ev.Type, AlarmID: ev.AlarmID})
	if err != nil {
		return err
	}

	var errs []error
	for _, sub := range subscriptions {
		if err := s.sendNotification(ctx, sub, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// sendNotification sends a single web push notification.
func (s *WebPushSink) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) error {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := s.sender.Send(payload, wpSub, s.webpush)
	if err != nil {
		return fmt.Errorf("sending to %s: %w", sub.Endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := s.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
	return nil
}

func localText(ev Event) (string, string) {
	switch ev.Type {
	case EventAlarmCreated:
		return "Alarm scheduled", fmt.Sprintf("%s at %s (LED %d)", ev.Name, ev.Time, ev.LEDIndex+1)
	case EventAlarmActive:
		return "Medication alert", fmt.Sprintf("Time to take %s (LED %d)", ev.Name, ev.LEDIndex+1)
	case EventAlarmAcknowledged:
		return "Alarm confirmed", fmt.Sprintf("%s confirmed", ev.Name)
	}
	return "MedTime", ev.Name
}
