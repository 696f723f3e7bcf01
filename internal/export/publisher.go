// Package export publishes storm completion events to Kafka for downstream
// consumers. Publishing is optional: with no brokers configured the publisher
// is disabled and every publish succeeds as a no-op.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"storm-align-lab/internal/domain"
	"storm-align-lab/internal/observability"
)

// DefaultTopic is the completion event sink topic.
const DefaultTopic = "storm-alignment-results"

// StageSummary is the per-stage slice of a completion event.
type StageSummary struct {
	Stage string `json:"stage"`
	OK    bool   `json:"ok"`
	Rows  int    `json:"rows"`
	Error string `json:"error,omitempty"`
}

// CompletionEvent is the wire shape of one storm's terminal result.
type CompletionEvent struct {
	RunID       string         `json:"run_id"`
	StormCode   string         `json:"storm_code"`
	StormName   string         `json:"storm_name"`
	Status      string         `json:"status"`
	FailedStage string         `json:"failed_stage,omitempty"`
	Error       string         `json:"error,omitempty"`
	Stages      []StageSummary `json:"stages"`
	ArtifactDir string         `json:"artifact_dir,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	FinishedAt  time.Time      `json:"finished_at"`
}

// messageWriter abstracts the Kafka producer for tests.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher emits one completion event per storm result.
type Publisher struct {
	writer messageWriter
	logger *log.Logger
}

// PublisherOptions contains configuration for creating a Publisher.
type PublisherOptions struct {
	Brokers []string // empty disables publishing
	Topic   string   // default DefaultTopic
	Logger  *log.Logger
}

// NewPublisher creates a completion publisher. With no brokers it returns a
// disabled publisher.
func NewPublisher(opts PublisherOptions) *Publisher {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	if len(opts.Brokers) == 0 {
		return &Publisher{logger: logger}
	}

	topic := opts.Topic
	if topic == "" {
		topic = DefaultTopic
	}
	return &Publisher{
		writer: &kafkago.Writer{
			Addr:         kafkago.TCP(opts.Brokers...),
			Topic:        topic,
			Balancer:     &kafkago.LeastBytes{},
			RequiredAcks: kafkago.RequireAll,
		},
		logger: logger,
	}
}

// Enabled reports whether a broker connection is configured.
func (p *Publisher) Enabled() bool {
	return p.writer != nil
}

// PublishBatch serializes every storm result in the batch and publishes them
// in a single WriteMessages call, ordered by storm code.
func (p *Publisher) PublishBatch(ctx context.Context, batch *domain.BatchResult) error {
	if !p.Enabled() || len(batch.Results) == 0 {
		return nil
	}

	codes := make([]string, 0, len(batch.Results))
	for code := range batch.Results {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	msgs := make([]kafkago.Message, 0, len(codes))
	for _, code := range codes {
		msg, err := completionMessage(batch.Results[code])
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish completion events: %w", err)
	}
	for range msgs {
		observability.RecordEventPublished()
	}
	p.logger.Printf("Run %s: published %d completion events", batch.RunID, len(msgs))
	return nil
}

// Close releases the underlying producer.
func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// completionMessage marshals one storm result into a Kafka message keyed by
// storm code.
func completionMessage(result *domain.StormResult) (kafkago.Message, error) {
	event := CompletionEvent{
		RunID:       result.RunID,
		StormCode:   result.StormCode,
		StormName:   result.StormName,
		Status:      result.Status.String(),
		FailedStage: result.FailedStage.String(),
		Error:       result.Error,
		ArtifactDir: result.ArtifactDir,
		StartedAt:   result.StartedAt,
		FinishedAt:  result.FinishedAt,
	}
	for _, o := range result.Stages {
		event.Stages = append(event.Stages, StageSummary{
			Stage: o.Stage.String(),
			OK:    o.OK,
			Rows:  o.Rows,
			Error: o.Error,
		})
	}

	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize completion event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(result.StormCode),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(result.RunID)},
			{Key: "status", Value: []byte(result.Status.String())},
		},
	}, nil
}
