package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"

	"medtime-companion/config"
)

// Publisher is the subset of an MQTT client the sink needs.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

type pahoPublisher struct {
	client mqtt.Client
}

func (p *pahoPublisher) Publish(topic string, payload []byte) error {
	token := p.client.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish to %s timed out", topic)
	}
	return token.Error()
}

// ConnectMQTT connects to the broker, retrying with exponential backoff.
// The connection is closed when ctx is cancelled.
func ConnectMQTT(ctx context.Context, cfg config.MQTTConfig) (Publisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 10 * time.Second

	var client mqtt.Client
	err := backoff.Retry(func() error {
		client = mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			log.Printf("Failed to connect to MQTT broker: %v", token.Error())
			return token.Error()
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, 4), ctx))
	if err != nil {
		return nil, fmt.Errorf("could not establish MQTT connection: %w", err)
	}
	log.Printf("Connected to MQTT broker at %s", cfg.Broker)

	go func() {
		<-ctx.Done()
		client.Disconnect(250)
		log.Println("MQTT connection closed")
	}()

	return &pahoPublisher{client: client}, nil
}

// MQTTSink publishes events as JSON to <topic>/<event type>.
type MQTTSink struct {
	pub   Publisher
	topic string
}

func NewMQTTSink(pub Publisher, topic string) *MQTTSink {
	return &MQTTSink{pub: pub, topic: topic}
}

func (s *MQTTSink) Notify(_ context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.pub.Publish(s.topic+"/"+string(ev.Type), payload)
}
