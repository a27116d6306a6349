package infra

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// RetryTransport retries transient CRM failures before the caller ever sees them:
// 429/500/502/503/504 and network timeouts, up to MaxRetries extra attempts
// with exponential backoff (1s, 2s, 4s) or whatever Retry-After asks for.
// Requests with a body are replayed through Request.GetBody.
//
// AttemptTimeout bounds each attempt on its own; backoff sleeps run on the
// caller's context only, so a slow first attempt still leaves room to retry.
type RetryTransport struct {
	Base           http.RoundTripper
	MaxRetries     int
	BackoffBase    time.Duration
	AttemptTimeout time.Duration
	// MaxWait caps a Retry-After value so a misbehaving server cannot park a worker.
	MaxWait time.Duration
	Sleep   SleepFunc
}

func NewRetryTransport(base http.RoundTripper) *RetryTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &RetryTransport{
		Base:           base,
		MaxRetries:     3,
		BackoffBase:    time.Second,
		AttemptTimeout: crmAPITimeout,
		MaxWait:        60 * time.Second,
		Sleep:          SleepContext,
	}
}

type attemptTimeoutKey struct{}

// WithAttemptTimeout overrides RetryTransport.AttemptTimeout for requests made with ctx.
func WithAttemptTimeout(ctx context.Context, d time.Duration) context.Context {
	return context.WithValue(ctx, attemptTimeoutKey{}, d)
}

func (t *RetryTransport) attemptTimeout(ctx context.Context) time.Duration {
	if d, ok := ctx.Value(attemptTimeoutKey{}).(time.Duration); ok && d > 0 {
		return d
	}
	return t.AttemptTimeout
}

// cancelOnClose releases the attempt context once the caller is done with the body.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

var retryableStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

func (t *RetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	timeout := t.attemptTimeout(ctx)
	for attempt := 0; ; attempt++ {
		attemptCtx, cancel := ctx, context.CancelFunc(func() {})
		if timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, timeout)
		}
		attemptReq := req.Clone(attemptCtx)
		if attempt > 0 && req.Body != nil && req.Body != http.NoBody {
			if req.GetBody == nil {
				cancel()
				return nil, errors.New("retry transport: request body cannot be replayed")
			}
			body, err := req.GetBody()
			if err != nil {
				cancel()
				return nil, err
			}
			attemptReq.Body = body
		}

		resp, err := t.Base.RoundTrip(attemptReq)
		retry := t.shouldRetry(resp, err) || (err != nil && attemptCtx.Err() != nil)
		if ctx.Err() != nil || !retry || attempt >= t.MaxRetries {
			if resp != nil {
				resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
			} else {
				cancel()
			}
			return resp, err
		}

		wait := t.BackoffBase << uint(attempt)
		if resp != nil {
			if d, ok := RetryAfter(resp.Header.Get("Retry-After"), time.Now()); ok {
				wait = min(d, t.MaxWait)
			}
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
		cancel()

		ev := log.Debug().Str("method", req.Method).Str("path", req.URL.Path).Int("attempt", attempt+1).Dur("wait", wait)
		if resp != nil {
			ev = ev.Int("status", resp.StatusCode)
		} else if err != nil {
			ev = ev.Err(err)
		}
		ev.Msg("crm_transport: retrying")

		if serr := t.Sleep(ctx, wait); serr != nil {
			return nil, serr
		}
	}
}

func (t *RetryTransport) shouldRetry(resp *http.Response, err error) bool {
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return true
		}
		var ne net.Error
		return errors.As(err, &ne) && ne.Timeout()
	}
	return retryableStatus[resp.StatusCode]
}
