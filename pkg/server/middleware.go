package server

import (
	"fmt"
	"log"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"
)

// connLimiter caps how often one address may open a WebSocket session.
type connLimiter struct {
	mu        sync.Mutex
	attempts  map[string]*attemptWindow
	limit     int
	window    time.Duration
	lastSweep time.Time
}

type attemptWindow struct {
	count  int
	expiry time.Time
}

func newConnLimiter(perMinute int) *connLimiter {
	return &connLimiter{
		attempts: make(map[string]*attemptWindow),
		limit:    perMinute,
		window:   time.Minute,
	}
}

func (cl *connLimiter) allow(host string, now time.Time) bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if now.Sub(cl.lastSweep) > cl.window {
		for h, w := range cl.attempts {
			if now.After(w.expiry) {
				delete(cl.attempts, h)
			}
		}
		cl.lastSweep = now
	}

	w, ok := cl.attempts[host]
	if !ok || now.After(w.expiry) {
		cl.attempts[host] = &attemptWindow{count: 1, expiry: now.Add(cl.window)}
		return true
	}
	w.count++
	return w.count <= cl.limit
}

// limitConnections rejects upgrade attempts over the per-address limit.
func limitConnections(cl *connLimiter, proxies proxySet, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		host := remoteAddr(r, proxies)
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}
		if !cl.allow(host, time.Now()) {
			log.Printf("web: connection limit reached for %s", host)
			http.Error(w, "too many connections", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}

// proxySet holds the peers whose forwarding headers are believed.
type proxySet []netip.Prefix

// parseProxies accepts addresses ("10.0.0.1") and networks ("10.0.0.0/8").
func parseProxies(entries []string) (proxySet, error) {
	var ps proxySet
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if strings.Contains(e, "/") {
			p, err := netip.ParsePrefix(e)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", e, err)
			}
			ps = append(ps, p.Masked())
			continue
		}
		a, err := netip.ParseAddr(e)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", e, err)
		}
		a = a.Unmap()
		ps = append(ps, netip.PrefixFrom(a, a.BitLen()))
	}
	return ps, nil
}

// trusts reports whether addr, with or without a port, is a trusted proxy.
func (ps proxySet) trusts(addr string) bool {
	if h, _, err := net.SplitHostPort(addr); err == nil {
		addr = h
	}
	ip, err := netip.ParseAddr(strings.TrimSpace(addr))
	if err != nil {
		return false
	}
	ip = ip.Unmap()
	for _, p := range ps {
		if p.Contains(ip) {
			return true
		}
	}
	return false
}

// remoteAddr returns the client address. Forwarding headers count only
// when the peer is a trusted proxy; X-Forwarded-For is read from the right,
// skipping the trusted hops.
func remoteAddr(r *http.Request, proxies proxySet) string {
	if !proxies.trusts(r.RemoteAddr) {
		return r.RemoteAddr
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop != "" && (i == 0 || !proxies.trusts(hop)) {
				return hop
			}
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
