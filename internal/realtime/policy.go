// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package realtime

import (
	"math"
	"time"

	"github.com/taibuivan/leadcrm/internal/platform/constants"
)

// ReconnectPolicy controls automatic reconnection after an unexpected loss.
type ReconnectPolicy struct {
	Enabled bool

	// MaxAttempts is the number of consecutive failed attempts after which the
	// channel gives up and enters [StateFailed]. Zero means no limit.
	MaxAttempts int

	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
}

// DefaultReconnectPolicy returns the policy used when none is configured.
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		Enabled:     true,
		MaxAttempts: constants.DefaultMaxReconnectAttempts,
		BaseDelay:   constants.DefaultReconnectDelay,
		MaxDelay:    constants.DefaultReconnectDelayMax,
		Multiplier:  constants.DefaultReconnectMultiplier,
	}
}

// Delay returns the wait before attempt n (1-based): BaseDelay grown by
// Multiplier per attempt and capped at MaxDelay.
func (policy ReconnectPolicy) Delay(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	multiplier := policy.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}

	delay := float64(policy.BaseDelay) * math.Pow(multiplier, float64(n-1))
	if policy.MaxDelay > 0 && delay > float64(policy.MaxDelay) {
		return policy.MaxDelay
	}
	return time.Duration(delay)
}

// allows reports whether another attempt may follow failed consecutive failures.
func (policy ReconnectPolicy) allows(failed int) bool {
	if !policy.Enabled {
		return false
	}
	return policy.MaxAttempts <= 0 || failed < policy.MaxAttempts
}
