package rate

import (
	"slices"
	"time"
)

// Window represents a provider rate-limit bucket.
type Window int

const (
	Minute Window = iota
	Hour
)

func (w Window) String() string {
	switch w {
	case Minute:
		return "minute"
	case Hour:
		return "hour"
	default:
		return "unknown"
	}
}

func (w Window) Duration() time.Duration {
	switch w {
	case Hour:
		return time.Hour
	default:
		return time.Minute
	}
}

// Declaration defines how often a provider may be called and which
// responses may be replayed while it is throttled.
type Declaration struct {
	provider   string
	limits     map[Window]int
	cacheTTL   time.Duration
	cachePaths []string
	cooldown   time.Duration
}

// Provider creates a new declaration for a provider.
func Provider(name string) Declaration {
	return Declaration{provider: name}
}

func (d Declaration) ProviderName() string {
	return d.provider
}

func (d Declaration) MaxRequestsPer(window Window, limit int) Declaration {
	limits := make(map[Window]int, len(d.limits)+1)
	for w, l := range d.limits {
		limits[w] = l
	}
	limits[window] = limit
	d.limits = limits
	return d
}

// CacheFor keeps successful GET responses for paths for ttl and serves them
// when the budget is exhausted. Only read-only paths belong here.
func (d Declaration) CacheFor(ttl time.Duration, paths ...string) Declaration {
	d.cacheTTL = ttl
	d.cachePaths = append([]string(nil), paths...)
	return d
}

// CooldownAfterError blocks calls for d after a 429 or 503 without Retry-After.
func (d Declaration) CooldownAfterError(cooldown time.Duration) Declaration {
	d.cooldown = cooldown
	return d
}

func (d Declaration) Limits() map[Window]int {
	return d.limits
}

func (d Declaration) CacheTTL() time.Duration {
	return d.cacheTTL
}

func (d Declaration) Cacheable(path string) bool {
	return d.cacheTTL > 0 && slices.Contains(d.cachePaths, path)
}

func (d Declaration) Cooldown() time.Duration {
	return d.cooldown
}

func (d Declaration) HasLimits() bool {
	return len(d.limits) > 0
}

// RateLimited is the compile-time contract for plugins that declare limits.
type RateLimited interface {
	RateLimits() Declaration
}
