package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	GeneralRate     rate.Limit    // API全般のレート（req/sec）。120/60 = 2 req/sec
	GeneralBurst    int           // API全般のバーストサイズ
	GenerationLimit int           // AI生成のウィンドウあたり許可数
	GenerationSpan  time.Duration // AI生成のスライディングウィンドウ幅
	WebhookLimit    int           // Webhook受信のウィンドウあたり許可数（IPごと）
	WebhookSpan     time.Duration // Webhook受信の固定ウィンドウ幅
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// API全般 120 req/min/user、AI生成 5 req/min/user、Webhook 60 req/min/IP
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(120.0 / 60.0), // 2 req/sec
		GeneralBurst:    120,
		GenerationLimit: 5,
		GenerationSpan:  time.Minute,
		WebhookLimit:    60,
		WebhookSpan:     time.Minute,
		CleanupInterval: 5 * time.Minute,
	}
}

// userLimiter はユーザーごとのトークンバケットとアクセス時刻を保持する。
type userLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// slidingWindow はキーごとの直近リクエスト時刻を保持する。
type slidingWindow struct {
	timestamps []time.Time
	lastAccess time.Time
}

// fixedWindow はキーごとの固定ウィンドウの開始時刻とカウントを保持する。
type fixedWindow struct {
	windowStart time.Time
	count       int
	lastAccess  time.Time
}

// RateLimiter はリクエストのレート制限を管理する。
// 3種類の制限を提供する:
//   - API全般: ユーザーごとのトークンバケット
//   - AI生成: ユーザーごとのスライディングウィンドウ
//   - Webhook受信: 送信元IPごとの固定ウィンドウ
type RateLimiter struct {
	config RateLimiterConfig

	generalMu       sync.RWMutex
	generalLimiters map[string]*userLimiter

	generationMu      sync.Mutex
	generationWindows map[string]*slidingWindow

	webhookMu      sync.Mutex
	webhookWindows map[string]*fixedWindow

	stopCh chan struct{}
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config:            config,
		generalLimiters:   make(map[string]*userLimiter),
		generationWindows: make(map[string]*slidingWindow),
		webhookWindows:    make(map[string]*fixedWindow),
		stopCh:            make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

// GeneralMiddleware はAPI全般のレート制限ミドルウェアを返す。
// リクエストコンテキストにユーザーIDが含まれている必要がある（認証ミドルウェアの後に配置）。
func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := UserIDFromContext(r.Context())
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			limiter := rl.getOrCreateGeneralLimiter(userID)

			if !limiter.Allow() {
				retryAfterSec := int(math.Ceil(1.0 / float64(rl.config.GeneralRate)))
				writeRateLimitResponse(w, retryAfterSec)
				slog.Warn("rate limit exceeded",
					slog.String("user_id", userID),
					slog.String("limit_type", "general"),
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GenerationMiddleware はAI生成専用のレート制限ミドルウェアを返す。
// スライディングウィンドウ方式で、ウィンドウ内の許可数を超えたリクエストを拒否する。
// API全般のレート制限とは独立に動作する。
func (rl *RateLimiter) GenerationMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := UserIDFromContext(r.Context())
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			allowed, retryAfter := rl.allowGeneration(userID, time.Now())
			if !allowed {
				writeRateLimitResponse(w, retryAfter)
				slog.Warn("rate limit exceeded",
					slog.String("user_id", userID),
					slog.String("limit_type", "generation"),
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// WebhookMiddleware はWebhook受信専用のレート制限ミドルウェアを返す。
// 認証前に動作するため、送信元IPアドレスをキーとする固定ウィンドウ方式を使用する。
func (rl *RateLimiter) WebhookMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)

			allowed, retryAfter := rl.allowWebhook(ip, time.Now())
			if !allowed {
				writeRateLimitResponse(w, retryAfter)
				slog.Warn("rate limit exceeded",
					slog.String("remote_ip", ip),
					slog.String("limit_type", "webhook"),
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GeneralLimiterCount は現在管理されているAPI全般リミッターのエントリ数を返す。
// テストおよびメトリクス用。
func (rl *RateLimiter) GeneralLimiterCount() int {
	rl.generalMu.RLock()
	defer rl.generalMu.RUnlock()
	return len(rl.generalLimiters)
}

// GenerationWindowCount は現在管理されているAI生成ウィンドウのエントリ数を返す。
// テストおよびメトリクス用。
func (rl *RateLimiter) GenerationWindowCount() int {
	rl.generationMu.Lock()
	defer rl.generationMu.Unlock()
	return len(rl.generationWindows)
}

// getOrCreateGeneralLimiter はユーザーのAPI全般リミッターを取得または作成する。
func (rl *RateLimiter) getOrCreateGeneralLimiter(userID string) *rate.Limiter {
	rl.generalMu.RLock()
	ul, exists := rl.generalLimiters[userID]
	rl.generalMu.RUnlock()

	if exists {
		rl.generalMu.Lock()
		ul.lastAccess = time.Now()
		rl.generalMu.Unlock()
		return ul.limiter
	}

	rl.generalMu.Lock()
	defer rl.generalMu.Unlock()

	// ダブルチェック
	if ul, exists := rl.generalLimiters[userID]; exists {
		ul.lastAccess = time.Now()
		return ul.limiter
	}

	limiter := rate.NewLimiter(rl.config.GeneralRate, rl.config.GeneralBurst)
	rl.generalLimiters[userID] = &userLimiter{
		limiter:    limiter,
		lastAccess: time.Now(),
	}

	return limiter
}

// allowGeneration はスライディングウィンドウでAI生成リクエストの可否を判定する。
// 拒否時はウィンドウ内最古のリクエストが期限切れになるまでの秒数を返す。
func (rl *RateLimiter) allowGeneration(userID string, now time.Time) (bool, int) {
	rl.generationMu.Lock()
	defer rl.generationMu.Unlock()

	sw, exists := rl.generationWindows[userID]
	if !exists {
		sw = &slidingWindow{}
		rl.generationWindows[userID] = sw
	}
	sw.lastAccess = now

	// ウィンドウ外の古いタイムスタンプを破棄
	cutoff := now.Add(-rl.config.GenerationSpan)
	kept := sw.timestamps[:0]
	for _, ts := range sw.timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	sw.timestamps = kept

	if len(sw.timestamps) >= rl.config.GenerationLimit {
		oldest := sw.timestamps[0]
		retryAfter := int(math.Ceil(oldest.Add(rl.config.GenerationSpan).Sub(now).Seconds()))
		if retryAfter < 1 {
			retryAfter = 1
		}
		return false, retryAfter
	}

	sw.timestamps = append(sw.timestamps, now)
	return true, 0
}

// allowWebhook は固定ウィンドウでWebhook受信の可否を判定する。
// 拒否時は現在のウィンドウが終了するまでの秒数を返す。
func (rl *RateLimiter) allowWebhook(ip string, now time.Time) (bool, int) {
	rl.webhookMu.Lock()
	defer rl.webhookMu.Unlock()

	fw, exists := rl.webhookWindows[ip]
	if !exists || now.Sub(fw.windowStart) >= rl.config.WebhookSpan {
		rl.webhookWindows[ip] = &fixedWindow{
			windowStart: now,
			count:       1,
			lastAccess:  now,
		}
		return true, 0
	}
	fw.lastAccess = now

	if fw.count >= rl.config.WebhookLimit {
		retryAfter := int(math.Ceil(fw.windowStart.Add(rl.config.WebhookSpan).Sub(now).Seconds()))
		if retryAfter < 1 {
			retryAfter = 1
		}
		return false, retryAfter
	}

	fw.count++
	return true, 0
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup は最終アクセス時刻がCleanupIntervalの2倍を超えたエントリを削除する。
func (rl *RateLimiter) cleanup() {
	ttl := rl.config.CleanupInterval * 2

	now := time.Now()

	rl.generalMu.Lock()
	for userID, ul := range rl.generalLimiters {
		if now.Sub(ul.lastAccess) > ttl {
			delete(rl.generalLimiters, userID)
		}
	}
	rl.generalMu.Unlock()

	rl.generationMu.Lock()
	for userID, sw := range rl.generationWindows {
		if now.Sub(sw.lastAccess) > ttl {
			delete(rl.generationWindows, userID)
		}
	}
	rl.generationMu.Unlock()

	rl.webhookMu.Lock()
	for ip, fw := range rl.webhookWindows {
		if now.Sub(fw.lastAccess) > ttl {
			delete(rl.webhookWindows, ip)
		}
	}
	rl.webhookMu.Unlock()
}

// clientIP はリクエストの送信元IPアドレスを返す。
// リバースプロキシ経由の場合はX-Forwarded-Forの先頭を使用する。
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterヘッダーには再試行可能になるまでの推定秒数を設定する。
func writeRateLimitResponse(w http.ResponseWriter, retryAfterSec int) {
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	w.Write([]byte(`{"code":"RATE_LIMIT_EXCEEDED","message":"リクエストが多すぎます。","category":"system","action":"しばらく待ってから再度お試しください。"}` + "\n"))
}
