// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// maxTrackedIPs bounds the limiter table between cleanups.
const maxTrackedIPs = 10000

// LoginProtectionConfig holds configuration for login throttling.
type LoginProtectionConfig struct {
	// IPRateLimit is login POSTs per second per client IP.
	IPRateLimit float64
	// IPBurst is the maximum burst per client IP.
	IPBurst int
	// CleanupInterval is how often the limiter table is checked for size.
	CleanupInterval time.Duration
}

// DefaultLoginProtectionConfig returns the defaults used by the server.
func DefaultLoginProtectionConfig() LoginProtectionConfig {
	return LoginProtectionConfig{
		IPRateLimit:     2,
		IPBurst:         20,
		CleanupInterval: 10 * time.Minute,
	}
}

// LoginProtection rate limits login attempts per client IP. It only bounds
// request volume. Detection of failed-password runs is done per username by
// the brute-force detector and is unaffected by this limiter.
type LoginProtection struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
	interval time.Duration
	stop     chan struct{}
	once     sync.Once
}

// NewLoginProtection creates a limiter and starts its cleanup loop. Call
// Close to stop it.
func NewLoginProtection(cfg LoginProtectionConfig) *LoginProtection {
	def := DefaultLoginProtectionConfig()
	if cfg.IPRateLimit <= 0 {
		cfg.IPRateLimit = def.IPRateLimit
	}
	if cfg.IPBurst <= 0 {
		cfg.IPBurst = def.IPBurst
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}

	lp := &LoginProtection{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(cfg.IPRateLimit),
		burst:    cfg.IPBurst,
		interval: cfg.CleanupInterval,
		stop:     make(chan struct{}),
	}
	go lp.cleanup()
	return lp
}

// Allow reports whether ip may attempt another login now.
func (lp *LoginProtection) Allow(ip string) bool {
	lp.mu.Lock()
	limiter, ok := lp.limiters[ip]
	if !ok {
		limiter = rate.NewLimiter(lp.rate, lp.burst)
		lp.limiters[ip] = limiter
	}
	lp.mu.Unlock()

	return limiter.Allow()
}

func (lp *LoginProtection) cleanup() {
	ticker := time.NewTicker(lp.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if lp.clearIfExceeds(maxTrackedIPs) {
				slog.Info("cleared login rate limiters due to size")
			}
		case <-lp.stop:
			return
		}
	}
}

func (lp *LoginProtection) clearIfExceeds(n int) bool {
	lp.mu.Lock()
	defer lp.mu.Unlock()

	if len(lp.limiters) <= n {
		return false
	}
	lp.limiters = make(map[string]*rate.Limiter)
	return true
}

// Close stops the cleanup loop.
func (lp *LoginProtection) Close() {
	lp.once.Do(func() { close(lp.stop) })
}

// Middleware throttles POST requests with 429. Other methods pass through.
func (lp *LoginProtection) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			next.ServeHTTP(w, r)
			return
		}

		ip := ClientIP(r)
		if !lp.Allow(ip) {
			slog.WarnContext(r.Context(), "login rate limit exceeded", "ip", ip)
			http.Error(w, "Too many login attempts, please slow down", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ClientIP returns the host part of r.RemoteAddr. Forwarded headers are
// trusted only through chi's RealIP middleware, which rewrites RemoteAddr.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
