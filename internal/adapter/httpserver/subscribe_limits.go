package httpserver

import "sync"

type limitReason string

const (
	limitReasonGlobal limitReason = "global_limit"
	limitReasonPerIP  limitReason = "per_ip_limit"
)

// subscribeLimits caps concurrent subscriptions per instance and per client
// IP. A maximum <= 0 disables that cap.
type subscribeLimits struct {
	mu       sync.Mutex
	total    int
	perIP    map[string]int
	maxTotal int
	maxPerIP int
}

func newSubscribeLimits(maxTotal, maxPerIP int) *subscribeLimits {
	return &subscribeLimits{
		perIP:    make(map[string]int),
		maxTotal: maxTotal,
		maxPerIP: maxPerIP,
	}
}

// acquire takes one slot for ip. Every successful acquire must be paired
// with a release.
func (l *subscribeLimits) acquire(ip string) (bool, limitReason) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.maxTotal > 0 && l.total >= l.maxTotal {
		return false, limitReasonGlobal
	}
	if l.maxPerIP > 0 && l.perIP[ip] >= l.maxPerIP {
		return false, limitReasonPerIP
	}

	l.total++
	l.perIP[ip]++
	return true, ""
}

func (l *subscribeLimits) release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.perIP[ip] == 0 {
		return
	}
	l.total--
	l.perIP[ip]--
	if l.perIP[ip] == 0 {
		delete(l.perIP, ip)
	}
}

func (l *subscribeLimits) count(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.perIP[ip]
}
