package metering

import (
	"math"
	"net/http"
	"strconv"

	"github.com/dmitrymomot/meterkit/pkg/ratelimit"
)

// RequestFunc extracts the authorization request from an HTTP request.
// The transport layer owns authentication; by the time this runs the
// account identity must already be established.
type RequestFunc func(r *http.Request) AuthorizeRequest

// Middleware authorizes every request before the wrapped handler runs.
// Underfunded callers get 402, throttled callers get 429 with a
// Retry-After; allowed requests carry X-RateLimit-* and
// X-Credits-Remaining headers into the response.
func Middleware(engine *Engine, reqFunc RequestFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision, err := engine.Authorize(r.Context(), reqFunc(r))
			if err != nil {
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			setRateLimitHeaders(w, decision.RateLimit)
			w.Header().Set("X-Credits-Remaining", strconv.FormatInt(decision.RemainingBalance, 10))

			if decision.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			switch decision.Reason {
			case ReasonInsufficientCredits:
				http.Error(w, "Payment Required", http.StatusPaymentRequired)
			case ReasonQuotaExceeded:
				retryAfter := int(math.Ceil(decision.RetryAfter.Seconds()))
				if retryAfter > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				}
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			default:
				http.Error(w, "Forbidden", http.StatusForbidden)
			}
		})
	}
}

// setRateLimitHeaders reports the tightest window: the exceeded one if
// any, otherwise the minute window.
func setRateLimitHeaders(w http.ResponseWriter, windows map[ratelimit.Window]ratelimit.Status) {
	status, ok := windows[ratelimit.WindowMinute]
	for _, s := range windows {
		if s.Exceeded {
			status, ok = s, true
			break
		}
	}
	if !ok || status.Limit == ratelimit.Unlimited {
		return
	}

	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(status.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(max(status.Remaining, 0), 10))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(status.ResetAt.Unix(), 10))
}
