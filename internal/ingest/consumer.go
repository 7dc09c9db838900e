package ingest

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"maintenance-cloud/internal/observability/metrics"
	"maintenance-cloud/internal/prediction"
	readings "maintenance-cloud/internal/readings/domain"
)

// Predictor produces a failure verdict for one raw reading. A prediction
// never fails the message: errors surface as a placeholder result.
type Predictor interface {
	PredictFailure(raw map[string]any) prediction.Result
}

type message struct {
	topic   string
	payload []byte
}

// Consumer drains telemetry messages through a worker pool: parse, dedup
// check, predict, persist. Duplicate event times are skipped so redelivered
// messages never produce a second row.
type Consumer struct {
	repo      readings.ReadingRepository
	predictor Predictor
	logger    *log.Logger

	messages chan message
	quit     chan struct{}
	quitOnce sync.Once
	wg       sync.WaitGroup
}

// NewConsumer constructs a consumer with the given channel capacity.
func NewConsumer(repo readings.ReadingRepository, predictor Predictor, logger *log.Logger, buffer int) (*Consumer, error) {
	if repo == nil {
		return nil, errors.New("ingest: nil repository")
	}
	if predictor == nil {
		return nil, errors.New("ingest: nil predictor")
	}
	if logger == nil {
		logger = log.Default()
	}
	if buffer <= 0 {
		buffer = 256
	}
	return &Consumer{
		repo:      repo,
		predictor: predictor,
		logger:    logger,
		messages:  make(chan message, buffer),
		quit:      make(chan struct{}),
	}, nil
}

// Submit queues one message for processing. Blocks when the buffer is full
// so the broker client applies backpressure instead of dropping. Once the
// workers have been told to stop, late deliveries are dropped; the broker
// redelivers them to the next session.
func (c *Consumer) Submit(topic string, payload []byte) {
	body := make([]byte, len(payload))
	copy(body, payload)
	select {
	case c.messages <- message{topic: topic, payload: body}:
	case <-c.quit:
		c.logger.Printf("ingest: drop message on %s: consumer stopped", topic)
	}
}

// Start launches the worker pool. Workers exit when ctx is cancelled.
func (c *Consumer) Start(ctx context.Context, workers int) {
	if workers <= 0 {
		workers = 2
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		<-ctx.Done()
		c.quitOnce.Do(func() { close(c.quit) })
	}()
	for i := 0; i < workers; i++ {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case msg := <-c.messages:
					c.process(ctx, msg)
				}
			}
		}()
	}
}

// Wait blocks until all workers have exited.
func (c *Consumer) Wait() {
	c.wg.Wait()
}

func (c *Consumer) process(ctx context.Context, msg message) {
	start := time.Now()

	raw, err := ParseMessage(msg.payload)
	if err != nil {
		c.logger.Printf("ingest: drop message on %s: %v", msg.topic, err)
		metrics.ObserveMessage(metrics.MessageResultParseError, time.Since(start))
		return
	}

	eventTime, err := EventTime(raw)
	if err != nil {
		c.logger.Printf("ingest: drop message on %s: %v", msg.topic, err)
		metrics.ObserveMessage(metrics.MessageResultParseError, time.Since(start))
		return
	}

	exists, err := c.repo.ExistsByEventTime(ctx, eventTime)
	if err != nil {
		c.logger.Printf("ingest: duplicate check failed for %s: %v", eventTime.Format(eventTimeLayout), err)
		metrics.ObserveMessage(metrics.MessageResultSaveError, time.Since(start))
		return
	}
	if exists {
		c.logger.Printf("ingest: skip duplicate reading at %s", eventTime.Format(eventTimeLayout))
		metrics.ObserveMessage(metrics.MessageResultDuplicate, time.Since(start))
		return
	}

	result := c.predictor.PredictFailure(raw)
	predictionResult := metrics.ResultSuccess
	if result.Failed() {
		predictionResult = metrics.ResultError
		c.logger.Printf("ingest: prediction failed for %s: %s", eventTime.Format(eventTimeLayout), result.Error)
	}
	metrics.ObservePrediction(
		predictionResult,
		string(result.Inference.ConfidenceLevel),
		time.Duration(result.Inference.PredictionLatencyMs)*time.Millisecond,
	)

	reading := BuildReading(raw, eventTime)
	inference := result.Inference
	reading.Inference = &inference

	if err := c.repo.Save(ctx, reading); err != nil {
		if errors.Is(err, readings.ErrDuplicateReading) {
			c.logger.Printf("ingest: skip duplicate reading at %s", eventTime.Format(eventTimeLayout))
			metrics.ObserveMessage(metrics.MessageResultDuplicate, time.Since(start))
			return
		}
		c.logger.Printf("ingest: save failed for %s: %v", eventTime.Format(eventTimeLayout), err)
		metrics.ObserveMessage(metrics.MessageResultSaveError, time.Since(start))
		return
	}

	metrics.ObserveMessage(metrics.MessageResultSaved, time.Since(start))
}
