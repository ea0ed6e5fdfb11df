package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/arcade-social/internal/config"
	"github.com/arcade-social/internal/domain"
)

// ScoreHandler records score submissions from trusted game servers
type ScoreHandler interface {
	SubmitScoreBatch(ctx context.Context, subs []domain.ScoreSubmission) error
}

// Consumer consumes score messages from Kafka
type Consumer struct {
	config        *config.KafkaConfig
	handler       ScoreHandler
	logger        *slog.Logger
	consumerGroup sarama.ConsumerGroup
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	ready         chan bool
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(cfg *config.KafkaConfig, handler ScoreHandler, logger *slog.Logger) (*Consumer, error) {
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

// Start begins consuming messages from Kafka and waits for the first
// group session, or for ctx to end
func (c *Consumer) Start(ctx context.Context) error {
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
				if err == sarama.ErrClosedConsumerGroup {
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
	select {
	case <-c.ready:
		c.logger.Info("Kafka consumer ready")
	case <-ctx.Done():
		c.logger.Warn("Kafka consumer not ready yet, continuing in background", "error", ctx.Err())
	}

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

// ConsumeClaim collects submissions from one partition and hands them to the
// handler in batches. Offsets are marked only once a batch has been handed
// over, so a crash replays at most the pending batch.
func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	cfg := h.consumer.config
	pending := newScoreBatch(cfg.BatchSize)
	timer := time.NewTimer(cfg.BatchTimeout)
	defer timer.Stop()

	flush := func() {
		h.consumer.flush(session, pending)
		timer.Reset(cfg.BatchTimeout)
	}

	for {
		select {
		case <-session.Context().Done():
			h.consumer.flush(session, pending)
			return nil

		case <-timer.C:
			flush()

		case message, ok := <-claim.Messages():
			if !ok {
				h.consumer.flush(session, pending)
				return nil
			}

			submission, err := decodeSubmission(message.Value)
			if err != nil {
				h.consumer.logger.Warn("skipping score message",
					"error", err,
					"offset", message.Offset,
					"partition", message.Partition,
				)
				pending.skip(message)
				continue
			}

			if pending.add(message, submission) >= cfg.BatchSize {
				flush()
			}
		}
	}
}

// scoreBatch holds decoded submissions along with the newest message seen,
// valid or not, whose offset is committed when the batch is flushed.
type scoreBatch struct {
	subs []domain.ScoreSubmission
	last *sarama.ConsumerMessage
	size int
}

func newScoreBatch(size int) *scoreBatch {
	return &scoreBatch{subs: make([]domain.ScoreSubmission, 0, size), size: size}
}

func (b *scoreBatch) add(msg *sarama.ConsumerMessage, sub domain.ScoreSubmission) int {
	b.subs = append(b.subs, sub)
	b.last = msg
	return len(b.subs)
}

func (b *scoreBatch) skip(msg *sarama.ConsumerMessage) {
	b.last = msg
}

// take empties the batch. The returned slice is not reused.
func (b *scoreBatch) take() ([]domain.ScoreSubmission, *sarama.ConsumerMessage) {
	subs, last := b.subs, b.last
	b.subs = make([]domain.ScoreSubmission, 0, b.size)
	b.last = nil
	return subs, last
}

// flush submits the pending batch and marks its newest offset. Entries are
// append-only, so a failed batch is logged and not redelivered.
func (c *Consumer) flush(session sarama.ConsumerGroupSession, pending *scoreBatch) {
	subs, last := pending.take()
	if len(subs) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := c.handler.SubmitScoreBatch(ctx, subs)
		cancel()
		if err != nil {
			c.logger.Error("failed to record score batch", "error", err, "batch_size", len(subs))
		} else {
			c.logger.Debug("recorded score batch", "batch_size", len(subs))
		}
	}
	if last != nil {
		session.MarkMessage(last, "")
	}
}

// decodeSubmission parses one score message. User and game are required;
// the score itself is validated when recorded.
func decodeSubmission(value []byte) (domain.ScoreSubmission, error) {
	var submission domain.ScoreSubmission
	if err := json.Unmarshal(value, &submission); err != nil {
		return submission, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	if submission.UserID == "" || submission.Game == "" {
		return submission, fmt.Errorf("%w: user_id and game are required", domain.ErrInvalidRequest)
	}
	return submission, nil
}
