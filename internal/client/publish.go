package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zeroxbob/pinstr/internal/errs"
	"github.com/zeroxbob/pinstr/internal/model"
)

// Status classifies one relay's reaction to a publish attempt.
type Status string

const (
	StatusAccepted      Status = "accepted"
	StatusRejected      Status = "rejected"
	StatusTimeout       Status = "timeout"
	StatusConnectFailed Status = "connect_failed"
	StatusSendFailed    Status = "send_failed"
)

// Outcome is the per-relay publish result.
type Outcome struct {
	Status Status
	Reason string
}

// Publish sends a signed event to every write-enabled relay concurrently and
// waits for per-relay acknowledgements up to timeout. It returns true when at
// least one relay accepted, plus the per-relay outcome map for diagnostics.
// An empty write set fails fast with errs.ErrNoWriteRelays.
func (c *Client) Publish(ctx context.Context, ev *model.Event, relays []model.RelayConfig, timeout time.Duration) (bool, map[string]Outcome, error) {
	writeRelays := model.WriteRelays(relays)
	if len(writeRelays) == 0 {
		return false, nil, errs.ErrNoWriteRelays
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		mu       sync.Mutex
		outcomes = make(map[string]Outcome, len(writeRelays))
		wg       sync.WaitGroup
	)
	for _, rc := range writeRelays {
		wg.Add(1)
		go func(url string) {
			defer wg.Done()
			out := c.publishToRelay(ctx, url, ev)
			mu.Lock()
			outcomes[url] = out
			mu.Unlock()
		}(rc.URL)
	}
	wg.Wait()

	accepted := false
	for _, out := range outcomes {
		if out.Status == StatusAccepted {
			accepted = true
			break
		}
	}
	c.log.Info("publish finished",
		zap.String("event", ev.ID),
		zap.Bool("accepted", accepted),
		zap.Int("relays", len(writeRelays)),
	)
	return accepted, outcomes, nil
}

func (c *Client) publishToRelay(ctx context.Context, url string, ev *model.Event) Outcome {
	ack, err := c.pool.Publish(ctx, url, ev)
	switch {
	case err == nil:
		if ack.Accepted {
			return Outcome{Status: StatusAccepted, Reason: ack.Reason}
		}
		return Outcome{Status: StatusRejected, Reason: ack.Reason}
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return Outcome{Status: StatusTimeout}
	case errors.Is(err, errs.ErrConnectionFailed):
		return Outcome{Status: StatusConnectFailed, Reason: err.Error()}
	default:
		return Outcome{Status: StatusSendFailed, Reason: err.Error()}
	}
}
