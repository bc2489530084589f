// Package worker records upload events consumed from the broker into the
// durable journal.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"findash/internal/amqp"
	"findash/internal/log"
	"findash/internal/sheets"
)

// Consumer delivers upload events until ctx is done or the subscription
// breaks.
type Consumer interface {
	ConsumeUploads(ctx context.Context, handler amqp.Handler) error
}

// Recorder writes each upload event into a journal.
type Recorder struct {
	journal sheets.UploadJournal
	logger  *log.Logger
	backoff func(attempt int) time.Duration
}

func NewRecorder(journal sheets.UploadJournal, logger *log.Logger) *Recorder {
	return &Recorder{
		journal: journal,
		logger:  logger.WithComponent(log.ComponentWorker),
		backoff: amqp.ExponentialBackoff,
	}
}

// HandleUploadEvent stores one event. A returned error makes the broker
// redeliver it; the journal ignores duplicates.
func (w *Recorder) HandleUploadEvent(ctx context.Context, event *amqp.UploadEvent) error {
	rec := event.Record
	w.logger.InfoContext(ctx, "Processing upload event",
		log.FieldUploadID, rec.ID,
		log.FieldSessionID, rec.SessionID,
		log.FieldOutcome, rec.Outcome)

	if err := w.journal.Record(ctx, rec); err != nil {
		return fmt.Errorf("record upload %s: %w", rec.ID, err)
	}
	return nil
}

// Run consumes events until ctx is cancelled, resubscribing with
// exponential backoff whenever the subscription drops.
func (w *Recorder) Run(ctx context.Context, consumer Consumer) error {
	attempt := 0
	for {
		started := time.Now()
		err := consumer.ConsumeUploads(ctx, w.HandleUploadEvent)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			err = errors.New("consumer stopped")
		}
		// a subscription that lived a while resets the backoff
		if time.Since(started) > time.Minute {
			attempt = 0
		}
		delay := w.backoff(attempt)
		attempt++
		w.logger.WarnContext(ctx, "Upload consumer stopped, retrying",
			log.FieldError, err,
			"attempt", attempt,
			"delay", delay)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}
