package common

import (
	"context"
	"courtbook/src/lib"
	"courtbook/src/models"
	"courtbook/src/types"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/pusher/pusher-http-go/v5"
)

const (
	EVENT_BOOKING_CREATED      = "booking.created"
	EVENT_BOOKING_CONFIRMED    = "booking.confirmed"
	EVENT_BOOKING_CANCELLED    = "booking.cancelled"
	EVENT_BOOKING_EXPIRED      = "booking.expired"
	EVENT_BOOKING_COMPLETED    = "booking.completed"
	EVENT_OCCURRENCE_CHECKIN   = "occurrence.checked_in"
	EVENT_OCCURRENCE_CHECKOUT  = "occurrence.checked_out"
	EVENT_OCCURRENCE_NO_SHOW   = "occurrence.no_show"
	EVENT_OCCURRENCE_CANCELLED = "occurrence.cancelled"
	EVENT_COURT_STATUS         = "court.status"
)

type Event struct {
	Type         string      `json:"type"`
	CourtID      uint        `json:"court_id"`
	BookingID    uint        `json:"booking_id,omitempty"`
	OccurrenceID uint        `json:"occurrence_id,omitempty"`
	Status       string      `json:"status,omitempty"`
	At           time.Time   `json:"at"`
	Data         types.JSONB `json:"data,omitempty"`
}

// Notifier is fire-and-forget: it never blocks the caller and never returns an error.
type Notifier interface {
	Notify(ev Event)
}

type NopNotifier struct{}

func (NopNotifier) Notify(Event) {}

type Sink interface {
	Name() string
	Send(ctx context.Context, ev Event) error
}

// Broadcaster fans each event out to every sink on its own goroutine.
// Sink errors and panics are logged and dropped.
type Broadcaster struct {
	sinks   []Sink
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewBroadcaster(timeout time.Duration, sinks ...Sink) *Broadcaster {
	return &Broadcaster{sinks: sinks, timeout: timeout}
}

func (b *Broadcaster) Sinks() []Sink {
	return b.sinks
}

func (b *Broadcaster) Notify(ev Event) {
	for _, sink := range b.sinks {
		b.wg.Add(1)
		go func(s Sink) {
			defer b.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Printf("[Notify] %s panicked on %s: %v\n", s.Name(), ev.Type, r)
				}
			}()
			ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
			defer cancel()
			if err := s.Send(ctx, ev); err != nil {
				log.Printf("[Notify] %s failed on %s: %s\n", s.Name(), ev.Type, err.Error())
			}
		}(sink)
	}
}

// Wait blocks until in-flight deliveries finish. Used on shutdown and in tests.
func (b *Broadcaster) Wait() {
	b.wg.Wait()
}

// Close drains in-flight deliveries and releases sinks that hold connections.
func (b *Broadcaster) Close() {
	b.Wait()
	for _, s := range b.sinks {
		if c, ok := s.(interface{ Close() }); ok {
			c.Close()
		}
	}
}

type PusherSink struct {
	Client *pusher.Client
}

func (p *PusherSink) Name() string { return "pusher" }

func (p *PusherSink) Send(ctx context.Context, ev Event) error {
	return p.Client.Trigger(fmt.Sprintf("court-%d", ev.CourtID), ev.Type, ev)
}

type KafkaSink struct {
	Publisher *lib.KafkaPublisher
}

func (k *KafkaSink) Name() string { return "kafka" }

func (k *KafkaSink) Send(ctx context.Context, ev Event) error {
	return k.Publisher.Publish(ctx, fmt.Sprintf("court-%d", ev.CourtID), ev)
}

func (k *KafkaSink) Close() {
	k.Publisher.Close()
}

type SNSSink struct {
	Publisher *lib.SNSPublisher
}

func (s *SNSSink) Name() string { return "sns" }

func (s *SNSSink) Send(ctx context.Context, ev Event) error {
	return s.Publisher.Publish(ctx, ev.Type, ev)
}

// OutboxSink persists each event as a notifications row.
type OutboxSink struct {
	Store Store
}

func (o *OutboxSink) Name() string { return "outbox" }

func (o *OutboxSink) Send(ctx context.Context, ev Event) error {
	refType, refValue := "court", fmt.Sprint(ev.CourtID)
	switch {
	case ev.OccurrenceID != 0:
		refType, refValue = "occurrence", fmt.Sprint(ev.OccurrenceID)
	case ev.BookingID != 0:
		refType, refValue = "booking", fmt.Sprint(ev.BookingID)
	}
	body := types.JSONB{
		"court_id":      ev.CourtID,
		"booking_id":    ev.BookingID,
		"occurrence_id": ev.OccurrenceID,
		"status":        ev.Status,
		"at":            ev.At,
	}
	for k, v := range ev.Data {
		body[k] = v
	}
	return o.Store.CreateNotification(ctx, &models.Notification{
		ReferenceSource: "engine",
		ReferenceType:   refType,
		ReferenceValue:  refValue,
		Title:           ev.Type,
		ReferenceBody:   &body,
		Type:            "status",
	})
}

// NewBroadcasterFromEnv wires every sink whose credentials are present. The outbox is always on.
func NewBroadcasterFromEnv(ctx context.Context, store Store) *Broadcaster {
	sinks := []Sink{&OutboxSink{Store: store}}
	if c := lib.GetPusherClient(); c != nil {
		sinks = append(sinks, &PusherSink{Client: c})
	}
	if os.Getenv("KAFKA_BROKER") != "" {
		if _, err := lib.KafkaCreateTopics("booking-events"); err != nil {
			log.Printf("[Notify] Could not create Kafka topic: %s\n", err.Error())
		}
		p, err := lib.NewKafkaPublisher("courtbook-api", "booking-events")
		if err != nil {
			log.Printf("[Notify] Kafka disabled: %s\n", err.Error())
		} else {
			sinks = append(sinks, &KafkaSink{Publisher: p})
		}
	}
	if os.Getenv("AWS_REGION") != "" && os.Getenv("AWS_ACCOUNT_ID") != "" {
		if p := lib.NewSNSPublisher(ctx, "BookingEvents"); p != nil {
			sinks = append(sinks, &SNSSink{Publisher: p})
		}
	}
	names := []string{}
	for _, s := range sinks {
		names = append(names, s.Name())
	}
	log.Printf("[Notify] Sinks: %v\n", names)
	return NewBroadcaster(5*time.Second, sinks...)
}
