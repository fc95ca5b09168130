package provision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/openfroyo/esinstall/pkg/engine"
)

// PollConfig controls the readiness poll.
type PollConfig struct {
	// Attempts is the total number of HEAD requests.
	Attempts int

	// Interval is the pause between attempts.
	Interval time.Duration

	// Ticks is the progress budget spread over the attempts.
	Ticks int

	// OnAttempt, when set, is called after every attempt.
	OnAttempt func(attempt, status int, err error)
}

// DefaultPollConfig is 30 attempts one second apart.
func DefaultPollConfig() PollConfig {
	return PollConfig{
		Attempts: 30,
		Interval: 1000 * time.Millisecond,
		Ticks:    300,
	}
}

// Total is the nominal time the poll waits before giving up.
func (p PollConfig) Total() time.Duration {
	return time.Duration(p.Attempts) * p.Interval
}

// WaitForReady polls the node root with HEAD until it answers with a status
// below 500. Connection refused is retried; any other transport error ends
// the wait at once. Running out of attempts is a TIMEOUT error.
func (c *Client) WaitForReady(ctx context.Context, password string) error {
	cfg := c.Poll
	if cfg.Attempts <= 0 {
		cfg.Attempts = 1
	}
	tickIncrement := cfg.Ticks / cfg.Attempts

	attempts := 0
	attempt := func() error {
		attempts++
		c.progress(tickIncrement, "Checking Elasticsearch is up and running")

		status, err := c.head(ctx, password)
		if cfg.OnAttempt != nil {
			cfg.OnAttempt(attempts, status, err)
		}

		switch {
		case err != nil && IsConnectionRefused(err):
			c.logger.Debug().Int("attempt", attempts).Msg("Node refused connection, retrying")
			return engine.NewTransientError("node refused connection", err)
		case err != nil:
			return engine.NewPermanentError("readiness check failed", err).WithOperation("HEAD /")
		case status >= http.StatusInternalServerError:
			c.logger.Debug().Int("attempt", attempts).Int("status", status).Msg("Node not ready, retrying")
			return engine.NewTransientError(fmt.Sprintf("node answered %d", status), nil)
		default:
			return nil
		}
	}
	operation := func() error {
		err := attempt()
		if engine.IsPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(cfg.Interval), uint64(cfg.Attempts-1)),
		ctx,
	)

	err := backoff.Retry(operation, policy)
	switch {
	case err == nil:
		c.progress(cfg.Ticks-tickIncrement*attempts, "Elasticsearch is up and running")
		return nil
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		return engine.NewPermanentError("readiness wait cancelled", err).WithCode(engine.ErrCodeCancelled)
	case engine.IsRetryable(err):
		return engine.NewPermanentError(
			fmt.Sprintf("Elasticsearch not seen running after trying for %s", cfg.Total()), err).
			WithCode(engine.ErrCodeTimeout).
			WithDetail("attempts", attempts)
	default:
		return err
	}
}

func (c *Client) head(ctx context.Context, password string) (int, error) {
	resp, err := c.do(ctx, http.MethodHead, "/", password, nil)
	if err != nil {
		return 0, err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}
