package common

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"cdr.dev/slog"
	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"

	"github.com/teamclock/teamclock/internal/apperr"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultInterval = 500 * time.Millisecond
)

// StatusError is a non-success upstream response.
type StatusError struct {
	Code int
	Err  error
}

func (e *StatusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream returned %d: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("upstream returned %d %s", e.Code, http.StatusText(e.Code))
}

func (e *StatusError) Unwrap() error { return e.Err }

// CheckStatus turns a response outside want into a StatusError.
func CheckStatus(resp *http.Response, want ...int) error {
	for _, code := range want {
		if resp.StatusCode == code {
			return nil
		}
	}
	return &StatusError{Code: resp.StatusCode}
}

// StatusOf returns the upstream status carried by err, or 0.
func StatusOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// Retryable reports whether another attempt could succeed: server errors,
// rate limiting and timeouts.
func Retryable(err error) bool {
	if code := StatusOf(err); code != 0 {
		return code >= 500 || code == http.StatusTooManyRequests
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// Do runs fn with a per-attempt timeout, retrying retryable failures with
// exponential backoff. A final failure is an upstream error naming the call.
func Do(ctx context.Context, log slog.Logger, opts RetryOptions, call string, fn func(ctx context.Context) error) error {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = defaultInterval
	if opts.InitialInterval > 0 {
		eb.InitialInterval = opts.InitialInterval
	}
	eb.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(eb, opts.MaxRetries), ctx)

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		actx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		err := fn(actx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !Retryable(err) {
			return backoff.Permanent(err)
		}
		log.Warn(ctx, "integration call failed",
			slog.F("call", call),
			slog.F("attempt", attempt),
			slog.Error(err))
		return err
	}, b)
	if err != nil {
		return apperr.Upstream(err, "%s failed", call)
	}
	return nil
}

// VerifyFailed maps rejected credentials onto a client error and keeps
// every other failure as is.
func VerifyFailed(err error, message string) error {
	switch StatusOf(err) {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return apperr.Invalid("%s", message)
	}
	return err
}
