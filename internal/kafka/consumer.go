package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/fitcomp/internal/config"
	"github.com/fitcomp/internal/domain"
)

// ActivityHandler processes activity sync batches
type ActivityHandler interface {
	IngestActivity(ctx context.Context, competitionID, userID string, goals domain.RingGoals, samples []domain.DaySample) (*domain.ParticipantAggregate, error)
}

// ActivityMessage is one device sync published to the activity topic: a
// user's goals plus a batch of per-day samples for one competition.
type ActivityMessage struct {
	CompetitionID string             `json:"competition_id"`
	UserID        string             `json:"user_id"`
	Goals         domain.RingGoals   `json:"goals"`
	Samples       []domain.DaySample `json:"samples"`
}

// Consumer consumes activity sync messages from Kafka
type Consumer struct {
	config        *config.KafkaConfig
	handler       ActivityHandler
	logger        *slog.Logger
	consumerGroup sarama.ConsumerGroup
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	ready         chan bool
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(cfg *config.KafkaConfig, handler ActivityHandler, logger *slog.Logger) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_0_0_0
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaConfig.Consumer.Return.Errors = true

	consumerGroup, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Consumer{
		config:        cfg,
		handler:       handler,
		logger:        logger,
		consumerGroup: consumerGroup,
		ctx:           ctx,
		cancel:        cancel,
		ready:         make(chan bool),
	}, nil
}

// Start begins consuming messages from Kafka
func (c *Consumer) Start() error {
	c.logger.Info("starting Kafka consumer",
		"brokers", c.config.Brokers,
		"topic", c.config.Topic,
		"group_id", c.config.GroupID,
	)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			handler := &consumerGroupHandler{
				consumer: c,
				ready:    c.ready,
			}

			if err := c.consumerGroup.Consume(c.ctx, []string{c.config.Topic}, handler); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return
				}
				c.logger.Error("error from consumer", "error", err)
			}

			// Check if context was cancelled
			if c.ctx.Err() != nil {
				return
			}

			c.ready = make(chan bool)
		}
	}()

	// Wait until consumer is ready
	<-c.ready
	c.logger.Info("Kafka consumer ready")

	// Handle errors in separate goroutine
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-c.ctx.Done():
				return
			case err, ok := <-c.consumerGroup.Errors():
				if !ok {
					return
				}
				c.logger.Error("consumer group error", "error", err)
			}
		}
	}()

	return nil
}

// Stop gracefully stops the consumer
func (c *Consumer) Stop() error {
	c.logger.Info("stopping Kafka consumer")
	c.cancel()
	c.wg.Wait()
	return c.consumerGroup.Close()
}

// consumerGroupHandler implements sarama.ConsumerGroupHandler
type consumerGroupHandler struct {
	consumer *Consumer
	ready    chan bool
}

// Setup is called at the beginning of a new session
func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	close(h.ready)
	return nil
}

// Cleanup is called at the end of a session
func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim processes messages from a topic partition. Each message is a
// complete multi-day sync, so there is no cross-message batching; a failed
// ingest is logged and the offset advanced, since the next device sync will
// carry the same days again.
func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	logger := h.consumer.logger

	for {
		select {
		case <-session.Context().Done():
			return nil

		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}

			var msg ActivityMessage
			if err := json.Unmarshal(message.Value, &msg); err != nil {
				logger.Warn("failed to unmarshal activity message",
					"error", err,
					"offset", message.Offset,
					"partition", message.Partition,
				)
				session.MarkMessage(message, "")
				continue
			}

			if msg.CompetitionID == "" || msg.UserID == "" || len(msg.Samples) == 0 {
				logger.Warn("invalid activity message",
					"competition_id", msg.CompetitionID,
					"user_id", msg.UserID,
					"samples", len(msg.Samples),
				)
				session.MarkMessage(message, "")
				continue
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			_, err := h.consumer.handler.IngestActivity(ctx, msg.CompetitionID, msg.UserID, msg.Goals, msg.Samples)
			cancel()
			if err != nil {
				if errors.Is(err, domain.ErrSyncInProgress) {
					logger.Debug("skipping concurrent sync",
						"competition_id", msg.CompetitionID,
						"user_id", msg.UserID,
					)
				} else {
					logger.Error("failed to ingest activity message",
						"competition_id", msg.CompetitionID,
						"user_id", msg.UserID,
						"error", err,
					)
				}
			}

			session.MarkMessage(message, "")
		}
	}
}
