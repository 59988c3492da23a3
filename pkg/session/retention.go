package session

import (
	"fmt"
	"strings"
	"time"
)

// RetentionPolicy decides when a session may be evicted from the store
type RetentionPolicy interface {
	Expired(info Info, now time.Time) bool
	Name() string
}

// KeepForever never evicts. Sessions end with the process.
type KeepForever struct{}

func (KeepForever) Expired(Info, time.Time) bool { return false }
func (KeepForever) Name() string                 { return "keep_forever" }

// IdleTTL evicts sessions with no append for longer than TTL
type IdleTTL struct {
	TTL time.Duration
}

func (p IdleTTL) Expired(info Info, now time.Time) bool {
	if p.TTL <= 0 {
		return false
	}
	return now.Sub(info.UpdatedAt) >= p.TTL
}

func (p IdleTTL) Name() string {
	return fmt.Sprintf("idle_ttl(%s)", p.TTL)
}

// MaxMessages evicts whole sessions whose history grew past Limit.
// History is never truncated in place.
type MaxMessages struct {
	Limit int
}

func (p MaxMessages) Expired(info Info, _ time.Time) bool {
	if p.Limit <= 0 {
		return false
	}
	return info.MessageCount > p.Limit
}

func (p MaxMessages) Name() string {
	return fmt.Sprintf("max_messages(%d)", p.Limit)
}

// AnyOf evicts when any of its policies does
type AnyOf []RetentionPolicy

func (p AnyOf) Expired(info Info, now time.Time) bool {
	for _, policy := range p {
		if policy.Expired(info, now) {
			return true
		}
	}
	return false
}

func (p AnyOf) Name() string {
	names := make([]string, 0, len(p))
	for _, policy := range p {
		names = append(names, policy.Name())
	}
	return "any_of(" + strings.Join(names, ",") + ")"
}

// NewRetentionPolicy builds a policy from configuration values.
// Zero values disable the corresponding bound.
func NewRetentionPolicy(idleTTL time.Duration, maxMessages int) RetentionPolicy {
	var policies AnyOf
	if idleTTL > 0 {
		policies = append(policies, IdleTTL{TTL: idleTTL})
	}
	if maxMessages > 0 {
		policies = append(policies, MaxMessages{Limit: maxMessages})
	}

	switch len(policies) {
	case 0:
		return KeepForever{}
	case 1:
		return policies[0]
	default:
		return policies
	}
}
