package infra

import (
	"context"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ── Pacer ─────────────────────────────────────────────────────────────────────
// Rate-limit pacing between calls to the CRM. The CRM signals pressure with
// Retry-After headers and 429 responses; everything else gets a small fixed
// pause so bursts of writes stay under the per-location quota.

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// SleepContext is the production SleepFunc.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type Pacer struct {
	BaseDelay    time.Duration // first step of the 429 backoff (default: 200ms)
	MaxDelay     time.Duration // backoff cap (default: 10s)
	DefaultDelay time.Duration // pause when the CRM gave no signal (default: 200ms)
	Sleep        SleepFunc
	// Jitter returns a value in [0,1); the backoff is scaled by 0.5+Jitter().
	Jitter func() float64
}

func NewPacer() *Pacer {
	return &Pacer{
		BaseDelay:    200 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		DefaultDelay: 200 * time.Millisecond,
		Sleep:        SleepContext,
		Jitter:       rand.Float64,
	}
}

// Backoff returns min(base·2^attempt, max) scaled by a ±50% jitter.
func (p *Pacer) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := p.BaseDelay << uint(min(attempt, 30))
	if d > p.MaxDelay || d <= 0 {
		d = p.MaxDelay
	}
	return time.Duration(float64(d) * (0.5 + p.Jitter()))
}

// Delay decides how long to wait after resp. A nil response means "no signal".
func (p *Pacer) Delay(resp *http.Response, defaultWait time.Duration) time.Duration {
	if resp != nil {
		if d, ok := RetryAfter(resp.Header.Get("Retry-After"), time.Now()); ok {
			return d
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return p.Backoff(2)
		}
	}
	return defaultWait
}

// Wait sleeps for Delay(resp, defaultWait).
func (p *Pacer) Wait(ctx context.Context, resp *http.Response, defaultWait time.Duration) error {
	d := p.Delay(resp, defaultWait)
	if resp != nil && d > 0 && d != defaultWait {
		log.Warn().Int("status", resp.StatusCode).Dur("wait", d).Msg("pacer: rate limited by CRM")
	}
	return p.Sleep(ctx, d)
}

// Pause waits the default delay between two calls.
func (p *Pacer) Pause(ctx context.Context) error {
	return p.Sleep(ctx, p.DefaultDelay)
}

// RetryAfter parses a Retry-After header given as seconds or as an HTTP date.
func RetryAfter(v string, now time.Time) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(v); err == nil {
		d := at.Sub(now)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}
