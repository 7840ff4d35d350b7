package kafka

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Record is one message bound for a topic.
type Record struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers map[string]string
}

type Producer struct {
	client *kgo.Client
	logger *zerolog.Logger
}

func NewProducer(cfg *Config, logger *zerolog.Logger) (*Producer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.RequiredAcks(cfg.RequiredAcks),
		kgo.ProduceRequestTimeout(cfg.ProducerTimeout),
		kgo.RecordRetries(cfg.MaxRetries),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return &Producer{client: client, logger: logger}, nil
}

// Publish produces every record in one round trip and waits for the acks.
// The result holds one error per record, in input order; nil means the
// broker accepted it.
func (p *Producer) Publish(ctx context.Context, records ...Record) []error {
	index := make(map[*kgo.Record]int, len(records))
	batch := make([]*kgo.Record, len(records))
	for i, r := range records {
		kr := &kgo.Record{Topic: r.Topic, Key: r.Key, Value: r.Value, Headers: toHeaders(r.Headers)}
		batch[i] = kr
		index[kr] = i
	}

	errs := make([]error, len(records))
	for _, res := range p.client.ProduceSync(ctx, batch...) {
		if i, ok := index[res.Record]; ok {
			errs[i] = res.Err
		}
	}
	return errs
}

// PublishOne is Publish for a single record.
func (p *Producer) PublishOne(ctx context.Context, r Record) error {
	return p.Publish(ctx, r)[0]
}

func toHeaders(m map[string]string) []kgo.RecordHeader {
	if len(m) == 0 {
		return nil
	}
	headers := make([]kgo.RecordHeader, 0, len(m))
	for k, v := range m {
		headers = append(headers, kgo.RecordHeader{Key: k, Value: []byte(v)})
	}
	return headers
}

func (p *Producer) Close() {
	p.logger.Info().Msg("closing Kafka producer")
	p.client.Close()
}
