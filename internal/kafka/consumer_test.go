package kafka

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/require"

	"github.com/arcade-social/internal/config"
	"github.com/arcade-social/internal/domain"
	"github.com/arcade-social/internal/treetest"
)

type recordingHandler struct {
	mu      sync.Mutex
	batches [][]domain.ScoreSubmission
}

func (r *recordingHandler) SubmitScoreBatch(_ context.Context, subs []domain.ScoreSubmission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, subs)
	return nil
}

type fakeSession struct {
	sarama.ConsumerGroupSession
	ctx    context.Context
	mu     sync.Mutex
	marked []int64
}

func (s *fakeSession) Context() context.Context { return s.ctx }

func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	s.marked = append(s.marked, msg.Offset)
	s.mu.Unlock()
}

type fakeClaim struct {
	sarama.ConsumerGroupClaim
	messages chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.messages }

func TestDecodeSubmission(t *testing.T) {
	sub, err := decodeSubmission([]byte(`{"user_id":"u1","username":"alice","game":"memory","score":42}`))
	require.NoError(t, err)
	require.Equal(t, domain.ScoreSubmission{UserID: "u1", Username: "alice", Game: "memory", Score: 42}, sub)

	_, err = decodeSubmission([]byte(`{"game":"memory","score":1}`))
	require.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = decodeSubmission([]byte(`not json`))
	require.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestConsumeClaimBatches(t *testing.T) {
	handler := &recordingHandler{}
	consumer := &Consumer{
		config:  &config.KafkaConfig{BatchSize: 2, BatchTimeout: time.Hour},
		handler: handler,
		logger:  treetest.Logger(),
	}
	session := &fakeSession{ctx: context.Background()}
	claim := &fakeClaim{messages: make(chan *sarama.ConsumerMessage, 8)}

	for i, value := range []string{
		`{"user_id":"u1","game":"guess","score":10}`,
		`{"user_id":"u2","game":"guess"`,
		`{"user_id":"u2","game":"memory","score":20}`,
		`{"user_id":"u3","game":"tictactoe","score":30}`,
	} {
		claim.messages <- &sarama.ConsumerMessage{Value: []byte(value), Offset: int64(i)}
	}
	close(claim.messages)

	h := &consumerGroupHandler{consumer: consumer}
	require.NoError(t, h.ConsumeClaim(session, claim))

	require.Len(t, handler.batches, 2)
	require.Len(t, handler.batches[0], 2)
	require.Equal(t, "u1", handler.batches[0][0].UserID)
	require.Equal(t, "u2", handler.batches[0][1].UserID)
	require.Len(t, handler.batches[1], 1)
	require.Equal(t, "u3", handler.batches[1][0].UserID)
	// offsets are marked per flushed batch, up to the newest message in it
	require.Equal(t, []int64{2, 3}, session.marked)
}

func TestConsumeClaimFlushesOnTimeout(t *testing.T) {
	handler := &recordingHandler{}
	consumer := &Consumer{
		config:  &config.KafkaConfig{BatchSize: 100, BatchTimeout: 20 * time.Millisecond},
		handler: handler,
		logger:  treetest.Logger(),
	}
	ctx, cancel := context.WithCancel(context.Background())
	session := &fakeSession{ctx: ctx}
	claim := &fakeClaim{messages: make(chan *sarama.ConsumerMessage, 1)}
	claim.messages <- &sarama.ConsumerMessage{Value: []byte(`{"user_id":"u1","game":"guess","score":5}`)}

	done := make(chan error, 1)
	go func() {
		done <- (&consumerGroupHandler{consumer: consumer}).ConsumeClaim(session, claim)
	}()

	require.Eventually(t, func() bool {
		handler.mu.Lock()
		defer handler.mu.Unlock()
		return len(handler.batches) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
