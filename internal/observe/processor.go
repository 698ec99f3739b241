// Package observe streams capture-layer observations from Kafka into the
// tracker.
package observe

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// Reader describes the kafka.Reader functions the processor interacts with.
type Reader interface {
	FetchMessage(context.Context) (kafka.Message, error)
	CommitMessages(context.Context, ...kafka.Message) error
	Close() error
}

// Handler processes decoded Kafka messages.
type Handler interface {
	Handle(context.Context, Message) error
}

// Message represents a decoded Kafka record.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Payload   json.RawMessage
	Timestamp time.Time
	Headers   map[string]string
}

// Option configures processor behaviour.
type Option func(*Processor)

// WithLogger sets a custom logger.
func WithLogger(l *log.Logger) Option {
	return func(p *Processor) { p.logger = l }
}

// WithBackoff sets the first and the largest delay between retries of a
// failed fetch or a failed observation.
func WithBackoff(initial, maxDelay time.Duration) Option {
	return func(p *Processor) {
		p.backoff = initial
		p.maxBackoff = maxDelay
	}
}

// Default retry delays.
const (
	DefaultBackoff    = 200 * time.Millisecond
	DefaultMaxBackoff = 10 * time.Second
)

// Processor coordinates the consumer loop.
type Processor struct {
	reader     Reader
	handler    Handler
	logger     *log.Logger
	backoff    time.Duration
	maxBackoff time.Duration
}

// NewProcessor constructs a processor from a reader/handler pair.
func NewProcessor(reader Reader, handler Handler, opts ...Option) *Processor {
	p := &Processor{
		reader:     reader,
		handler:    handler,
		logger:     log.Default(),
		backoff:    DefaultBackoff,
		maxBackoff: DefaultMaxBackoff,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run consumes messages until ctx cancellation.
//
// Malformed payloads are committed and skipped. Any other handler failure
// is retried on the same message with capped backoff, so no later offset is
// committed past an observation that was not tracked. On cancellation the
// pending message stays uncommitted and is redelivered to the group.
func (p *Processor) Run(ctx context.Context) error {
	delay := p.backoff
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := p.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			p.logger.Printf("fetch error, retrying in %s: %v", delay, err)
			if err := p.wait(ctx, delay); err != nil {
				return err
			}
			delay = p.next(delay)
			continue
		}
		delay = p.backoff

		decoded := Message{
			Topic:     msg.Topic,
			Partition: msg.Partition,
			Offset:    msg.Offset,
			Key:       msg.Key,
			Payload:   append(json.RawMessage{}, msg.Value...),
			Timestamp: msg.Time,
			Headers:   make(map[string]string, len(msg.Headers)),
		}
		for _, header := range msg.Headers {
			decoded.Headers[header.Key] = string(header.Value)
		}

		if err := p.handle(ctx, decoded); err != nil {
			return err
		}

		if err := p.reader.CommitMessages(ctx, msg); err != nil {
			p.logger.Printf("commit error: %v", err)
		}
	}
}

// handle runs the handler until it succeeds or rejects the payload as
// malformed. It only returns an error when ctx is done.
func (p *Processor) handle(ctx context.Context, msg Message) error {
	delay := p.backoff
	for {
		err := p.handler.Handle(ctx, msg)
		switch {
		case err == nil:
			recordResult(msg, resultProcessed)
			return nil
		case errors.Is(err, ErrMalformed):
			recordResult(msg, resultMalformed)
			p.logger.Printf("skipping malformed observation (topic=%s offset=%d): %v", msg.Topic, msg.Offset, err)
			return nil
		}

		recordResult(msg, resultFailed)
		p.logger.Printf("handler error (topic=%s offset=%d), retrying in %s: %v", msg.Topic, msg.Offset, delay, err)
		if err := p.wait(ctx, delay); err != nil {
			return err
		}
		delay = p.next(delay)
	}
}

func (p *Processor) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (p *Processor) next(d time.Duration) time.Duration {
	d *= 2
	if d > p.maxBackoff {
		d = p.maxBackoff
	}
	return d
}

// ReaderConfig selects the topic to consume.
type ReaderConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// NewReader opens a consumer-group reader.
func NewReader(cfg ReaderConfig) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.GroupID,
		Topic:          cfg.Topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
	})
}
