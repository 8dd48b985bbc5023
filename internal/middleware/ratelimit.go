package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"patient-data-service/pkg/httputil"
)

// blockDuration は制限値を大幅に超過したクライアントを遮断する時間。
const blockDuration = 5 * time.Minute

// RateLimiter はクライアントIPごとのスライディングウィンドウ方式の
// レートリミッター。ウィンドウ内のリクエスト数が制限値の3倍に達した
// クライアントは一定時間遮断する。
type RateLimiter struct {
	mu       sync.Mutex
	limit    int
	window   time.Duration
	requests map[string][]time.Time
	blocked  map[string]time.Time
}

// NewRateLimiter は新しいRateLimiterを生成する。
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:    limit,
		window:   window,
		requests: make(map[string][]time.Time),
		blocked:  make(map[string]time.Time),
	}
}

// clientIP はクライアントの実IPを返す。プロキシ経由の場合は
// X-Forwarded-Forの先頭エントリを使う。
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Handler はレートリミットを適用するミドルウェアを返す。
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)

		rl.mu.Lock()
		now := time.Now()

		// 遮断中のクライアントか確認
		if until, ok := rl.blocked[ip]; ok {
			if now.Before(until) {
				retry := int(until.Sub(now).Seconds()) + 1
				rl.mu.Unlock()
				rejectRateLimited(w, r, ip, retry)
				return
			}
			delete(rl.blocked, ip)
		}

		// ウィンドウ外のリクエストを破棄してから今回分を記録する。
		// 制限超過中のリクエストも数えるので、叩き続けるクライアントは
		// 遮断の閾値に到達する。
		cutoff := now.Add(-rl.window)
		kept := rl.requests[ip][:0]
		for _, t := range rl.requests[ip] {
			if t.After(cutoff) {
				kept = append(kept, t)
			}
		}
		kept = append(kept, now)
		rl.requests[ip] = kept

		count := len(kept)
		if count > rl.limit {
			if count >= rl.limit*3 {
				rl.blocked[ip] = now.Add(blockDuration)
				slog.WarnContext(r.Context(), "client temporarily blocked",
					"ip", ip,
					"requests", count,
					"duration", blockDuration.String(),
				)
			}
			retry := int(rl.window.Seconds() - now.Sub(kept[0]).Seconds())
			if retry < 1 {
				retry = 1
			}
			rl.mu.Unlock()
			rejectRateLimited(w, r, ip, retry)
			return
		}

		remaining := rl.limit - count
		rl.mu.Unlock()

		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.Itoa(int(rl.window.Seconds())))
		next.ServeHTTP(w, r)
	})
}

func rejectRateLimited(w http.ResponseWriter, r *http.Request, ip string, retryAfter int) {
	slog.WarnContext(r.Context(), "rate limit exceeded",
		"ip", ip,
		"path", r.URL.Path,
	)
	w.Header().Set("X-RateLimit-Remaining", "0")
	w.Header().Set("X-RateLimit-Reset", strconv.Itoa(retryAfter))
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	httputil.Error(w, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded")
}
