package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"thinkr-backend/internal/model"
	"thinkr-backend/internal/platform/logger"
	"thinkr-backend/internal/platform/rabbitmq"
)

const jobTimeout = 5 * time.Minute

type StudyJobHandler interface {
	HandleStudyJob(ctx context.Context, job model.StudyJob) error
}

// acknowledger is the part of amqp.Delivery the worker settles messages with.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// StudyGenerationWorker consumes study jobs and generates flashcards and a
// quiz for each uploaded document.
type StudyGenerationWorker struct {
	conn        *amqp.Connection
	handler     StudyJobHandler
	queueName   string
	concurrency int
	log         *logger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewStudyGenerationWorker(conn *amqp.Connection, handler StudyJobHandler, queueName string, concurrency int, log *logger.Logger) *StudyGenerationWorker {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &StudyGenerationWorker{
		conn:        conn,
		handler:     handler,
		queueName:   queueName,
		concurrency: concurrency,
		log:         log,
	}
}

func (w *StudyGenerationWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}
	if err := rabbitmq.DeclareQueue(ch, w.queueName); err != nil {
		_ = ch.Close()
		cancel()
		return err
	}
	if err := ch.Qos(w.concurrency, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker prefetch failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	var consumers sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		consumers.Add(1)
		go func() {
			defer consumers.Done()
			for {
				select {
				case <-workerCtx.Done():
					return
				case d, ok := <-deliveries:
					if !ok {
						return
					}
					w.handleDelivery(workerCtx, d.Body, d)
				}
			}
		}()
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		consumers.Wait()
		_ = ch.Close()
	}()

	w.log.Info("study generation worker started", "queue", w.queueName, "concurrency", w.concurrency)
	return nil
}

// handleDelivery never requeues. A failed job leaves the document incomplete.
func (w *StudyGenerationWorker) handleDelivery(ctx context.Context, body []byte, ack acknowledger) {
	var job model.StudyJob
	if err := json.Unmarshal(body, &job); err != nil || job.UserID == 0 || job.DocumentID == 0 {
		w.log.Error("worker decode study job failed", "error", err, "body", string(body))
		_ = ack.Nack(false, false)
		return
	}

	jobCtx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	start := time.Now()
	if err := w.handler.HandleStudyJob(jobCtx, job); err != nil {
		w.log.Error("worker study generation failed",
			"user_id", job.UserID,
			"document_id", job.DocumentID,
			"error", err,
		)
		_ = ack.Nack(false, false)
		return
	}

	w.log.Info("study material generated",
		"user_id", job.UserID,
		"document_id", job.DocumentID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	_ = ack.Ack(false)
}

func (w *StudyGenerationWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
