package events

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Publisher sends order lifecycle events to Kafka through a buffered inbox so
// request handlers never block on the broker. A nil Publisher is a no-op,
// which keeps the core usable without Kafka configured.
type Publisher struct {
	w       *kafka.Writer
	inbox   chan kafka.Message
	service string
	done    chan struct{}
}

func NewPublisher(brokers []string, topic, service string, buf int) *Publisher {
	if len(brokers) == 0 {
		return nil
	}
	return &Publisher{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
		inbox:   make(chan kafka.Message, buf),
		service: service,
		done:    make(chan struct{}),
	}
}

// Start drains the inbox until ctx is cancelled, then flushes what remains.
func (p *Publisher) Start(ctx context.Context) {
	if p == nil {
		return
	}
	go func() {
		defer close(p.done)
		for {
			select {
			case <-ctx.Done():
				for {
					select {
					case m := <-p.inbox:
						p.write(m)
					default:
						if err := p.w.Close(); err != nil {
							log.Printf("Close kafka writer: %v", err)
						}
						return
					}
				}
			case m := <-p.inbox:
				p.write(m)
			}
		}
	}()
}

func (p *Publisher) write(m kafka.Message) {
	if err := p.w.WriteMessages(context.Background(), m); err != nil {
		log.Printf("Publish %s: %v", headerValue(m, "x-event-type"), err)
	}
}

// PublishOrderEvent enqueues an event keyed by order id so all events for one
// order land on the same partition in order. Fire-and-forget: a full inbox
// drops the event rather than stalling the request path.
func (p *Publisher) PublishOrderEvent(eventType string, payload OrderPayload) {
	if p == nil {
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Marshal %s payload: %v", eventType, err)
		return
	}
	value, err := json.Marshal(Envelope{
		EventID:    uuid.NewString(),
		EventType:  eventType,
		Version:    1,
		OccurredAt: time.Now().UTC(),
		Producer:   p.service,
		Payload:    body,
	})
	if err != nil {
		log.Printf("Marshal %s envelope: %v", eventType, err)
		return
	}

	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(payload.OrderID, 10)),
		Value: value,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "x-event-type", Value: []byte(eventType)},
			{Key: "x-event-version", Value: []byte("1")},
		},
	}

	select {
	case p.inbox <- msg:
	default:
		log.Printf("Event inbox full, dropping %s for order %d", eventType, payload.OrderID)
	}
}

// WaitClosed blocks until the drain goroutine has flushed and exited.
func (p *Publisher) WaitClosed() {
	if p == nil {
		return
	}
	<-p.done
}

func headerValue(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
