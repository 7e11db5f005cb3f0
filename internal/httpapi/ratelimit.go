package httpapi

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

const limiterCacheSize = 10000

type RateLimitConfig struct {
	IPPerMinute    int
	IPBurst        int
	LoginPerMinute int
	LoginBurst     int
	// TrustedProxies lists the peers whose X-Forwarded-For header is believed.
	TrustedProxies []netip.Prefix
}

// RateLimiter throttles all requests per client IP, and login attempts per
// IP and per account email.
type RateLimiter struct {
	ipLimiter    *tokenLimiter
	loginLimiter *tokenLimiter
	proxies      trustedProxies
}

func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		ipLimiter:    newTokenLimiter(cfg.IPPerMinute, cfg.IPBurst),
		loginLimiter: newTokenLimiter(cfg.LoginPerMinute, cfg.LoginBurst),
		proxies:      trustedProxies(cfg.TrustedProxies),
	}
}

// ClientIP resolves the caller address, following X-Forwarded-For only
// through trusted proxies.
func (l *RateLimiter) ClientIP(r *http.Request) string {
	return l.proxies.clientIP(r)
}

func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := l.ClientIP(r)
		if ip != "" && !l.ipLimiter.allow(ip) {
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// AllowLogin spends one login token for the IP and one for the email.
func (l *RateLimiter) AllowLogin(r *http.Request, email string) bool {
	if ip := l.ClientIP(r); ip != "" && !l.loginLimiter.allow("ip:"+ip) {
		return false
	}
	if email != "" && !l.loginLimiter.allow("email:"+strings.ToLower(email)) {
		return false
	}
	return true
}

type tokenLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	buckets *lru.Cache[string, *rate.Limiter]
}

func newTokenLimiter(perMinute, burst int) *tokenLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	if burst <= 0 {
		burst = 20
	}
	buckets, err := lru.New[string, *rate.Limiter](limiterCacheSize)
	if err != nil {
		panic(err)
	}
	return &tokenLimiter{
		limit:   rate.Limit(float64(perMinute) / 60.0),
		burst:   burst,
		buckets: buckets,
	}
}

func (l *tokenLimiter) allow(key string) bool {
	l.mu.Lock()
	limiter, ok := l.buckets.Get(key)
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.buckets.Add(key, limiter)
	}
	l.mu.Unlock()
	return limiter.Allow()
}

type trustedProxies []netip.Prefix

func (t trustedProxies) trusts(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range t {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// clientIP walks X-Forwarded-For from the nearest hop and returns the first
// address that is not a trusted proxy. Untrusted peers are taken at their
// socket address.
func (t trustedProxies) clientIP(r *http.Request) string {
	ip := remoteIP(r)
	if len(t) == 0 || !t.trusts(ip) {
		return ip
	}
	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if _, err := netip.ParseAddr(hop); err != nil {
			return ip
		}
		ip = hop
		if !t.trusts(hop) {
			return hop
		}
	}
	return ip
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
