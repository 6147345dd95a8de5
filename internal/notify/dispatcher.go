package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Ruslan-Vlasiuk/svitlobot/internal/domain"
)

// maxErrorSample bounds the error list returned from a dispatch; the full
// detail goes to the log only.
const maxErrorSample = 10

// Dispatcher fans a rendered message out to many recipients while keeping
// average throughput under the transport's rate ceiling. Pacing is a
// coarse per-batch token bucket: all sends of a batch go out concurrently,
// then the dispatcher sleeps len(batch)/rate seconds before the next
// batch. A burst inside one batch may transiently exceed the rate; that is
// an accepted property, not a defect.
type Dispatcher struct {
	transport Transport
	composer  *Composer
	logger    *zap.Logger

	rate      float64 // messages per second, average ceiling
	batchSize int
}

func NewDispatcher(transport Transport, composer *Composer, rate float64, batchSize int, logger *zap.Logger) *Dispatcher {
	if rate <= 0 {
		rate = 30
	}
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &Dispatcher{
		transport: transport,
		composer:  composer,
		logger:    logger,
		rate:      rate,
		batchSize: batchSize,
	}
}

// Dispatch delivers template to every recipient. One recipient's failure
// never aborts its batch or the job; each outcome is tallied
// independently. The error return is non-nil only when the context ends
// before all batches were issued: already-issued sends run to completion,
// only the inter-batch wait is interruptible.
func (d *Dispatcher) Dispatch(ctx context.Context, recipients []*domain.User, template, kind string, silent bool) (*domain.DispatchResult, error) {
	result := &domain.DispatchResult{Total: len(recipients), Errors: []domain.DispatchError{}}
	if len(recipients) == 0 {
		return result, nil
	}

	totalBatches := (len(recipients) + d.batchSize - 1) / d.batchSize
	d.logger.Info("starting batch dispatch",
		zap.Int("total", len(recipients)),
		zap.String("kind", kind),
		zap.Int("batches", totalBatches),
	)

	var mu sync.Mutex
	for i := 0; i < len(recipients); i += d.batchSize {
		end := i + d.batchSize
		if end > len(recipients) {
			end = len(recipients)
		}
		batch := recipients[i:end]

		var wg sync.WaitGroup
		for _, user := range batch {
			wg.Add(1)
			go func(u *domain.User) {
				defer wg.Done()
				text := d.composer.Render(template, u)
				err := d.transport.Send(ctx, u.UserID, text, silent)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					result.Failed++
					if len(result.Errors) < maxErrorSample {
						result.Errors = append(result.Errors, domain.DispatchError{
							UserID: u.UserID,
							Error:  err.Error(),
						})
					}
					d.logger.Warn("send failed",
						zap.Int64("user_id", u.UserID),
						zap.String("kind", kind),
						zap.Error(err),
					)
					return
				}
				result.Success++
			}(user)
		}
		wg.Wait()

		// Pace before the next batch, never after the last one.
		if end < len(recipients) {
			delay := time.Duration(float64(len(batch)) / d.rate * float64(time.Second))
			d.logger.Debug("rate limit delay", zap.Duration("delay", delay))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				d.logger.Warn("dispatch interrupted between batches",
					zap.Int("sent", end),
					zap.Int("total", len(recipients)),
				)
				return result, ctx.Err()
			}
		}
	}

	d.logger.Info("batch dispatch completed",
		zap.Int("success", result.Success),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

// QuietHours reports whether t falls in the 23:00-07:00 silent window,
// when notifications are delivered without sound.
func QuietHours(t time.Time) bool {
	h := t.Hour()
	return h >= 23 || h < 7
}
