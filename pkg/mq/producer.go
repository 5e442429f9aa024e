package mq

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog/log"
)

var (
	ErrEmptyBrokers       = errors.New("empty brokers")
	ErrEmptyTopics        = errors.New("empty topics")
	ErrEmptyTopicName     = errors.New("empty topic name")
	ErrUnsupportedPayload = errors.New("unsupported payload")
	ErrNoTopic            = errors.New("no topic for payload")
	ErrProducerClosed     = errors.New("producer closed")
)

type Message struct {
	Payload Payload     `json:"payload,omitempty"`
	Key     string      `json:"key,omitempty"`
	Body    interface{} `json:"body,omitempty"`
}

func (msg *Message) ParseBody(dst interface{}) error {
	b, err := json.Marshal(msg.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}

type Producer struct {
	saramaProducer sarama.AsyncProducer
	topics         map[uint32]string
	done           chan struct{}
}

type ProducerConfig struct {
	Brokers []string          `json:"brokers,omitempty"`
	Topics  map[uint32]string `json:"topics,omitempty"`
}

func (c *ProducerConfig) validate() error {
	if len(c.Brokers) == 0 {
		return ErrEmptyBrokers
	}

	if len(c.Topics) == 0 {
		return ErrEmptyTopics
	}

	for task, topic := range c.Topics {
		if topic == "" {
			return ErrEmptyTopicName
		}

		if _, ok := Payloads[Payload(task)]; !ok {
			return ErrUnsupportedPayload
		}
	}

	return nil
}

func NewProducer(ctx context.Context, cfg ProducerConfig) (*Producer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.Flush.Frequency = 500 * time.Millisecond
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.RequiredAcks = sarama.WaitForLocal
	saramaConfig.Producer.Return.Errors = true

	producer, err := sarama.NewAsyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, err
	}

	go func() {
		for err := range producer.Errors() {
			log.Ctx(ctx).Error().Msgf("sarama produce error, topic: %s, key: %v, err: %v",
				err.Msg.Topic, err.Msg.Key, err.Err.Error())
		}
	}()

	return &Producer{
		saramaProducer: producer,
		topics:         cfg.Topics,
		done:           make(chan struct{}),
	}, nil
}

func (p *Producer) Close() error {
	close(p.done)
	return p.saramaProducer.Close()
}

// SendMessage enqueues msg on the async producer. It blocks only while the
// producer input is full, and gives up when ctx is done.
func (p *Producer) SendMessage(ctx context.Context, msg *Message) error {
	topic, ok := p.topics[uint32(msg.Payload)]
	if !ok {
		return ErrNoTopic
	}

	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	saramaMsg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(msg.Key),
		Value: sarama.ByteEncoder(b),
	}

	select {
	case p.saramaProducer.Input() <- saramaMsg:
		return nil
	case <-p.done:
		return ErrProducerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}
