package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// slidingWindow tracks request timestamps per client. The sliding window
// avoids the burst-at-boundary problem of fixed counters.
type slidingWindow struct {
	mu      sync.Mutex
	clients map[string][]time.Time
	window  time.Duration
	limit   int
}

func (s *slidingWindow) allow(client string, now time.Time) (bool, int, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-s.window)
	stamps := s.clients[client]
	kept := stamps[:0]
	for _, ts := range stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= s.limit {
		s.clients[client] = kept
		return false, 0, kept[0].Add(s.window)
	}
	kept = append(kept, now)
	s.clients[client] = kept
	return true, s.limit - len(kept), kept[0].Add(s.window)
}

// RateLimit bounds requests per client IP over a sliding window. Exceeding
// clients get 429 with Retry-After; a zero limit disables the guard.
func RateLimit(limit int, window time.Duration, logger *slog.Logger) func(http.Handler) http.Handler {
	sw := &slidingWindow{
		clients: make(map[string][]time.Time),
		window:  window,
		limit:   limit,
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			client := clientIP(r)
			allowed, remaining, resetAt := sw.allow(client, time.Now())
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			if !allowed {
				retry := max(int(time.Until(resetAt).Seconds()), 1)
				logger.WarnContext(r.Context(), "request rate limited",
					"client", client,
					"path", r.URL.Path,
				)
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate_limited","error_description":"request rate limit exceeded"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP trusts RemoteAddr; the router's RealIP middleware has already
// folded X-Forwarded-For into it.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
