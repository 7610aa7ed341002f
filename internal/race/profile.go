package race

import (
	"math/rand"
	"time"
)

// LatencyProfile is a named tier of simulated upstream delay.
type LatencyProfile struct {
	Name           string
	BaseDelay      time.Duration
	Jitter         time.Duration
	ConnectTimeout time.Duration
	AuthDelay      time.Duration
	Description    string
}

// EffectiveDelay returns base + uniform(0, jitter); always >= BaseDelay.
func (p LatencyProfile) EffectiveDelay() time.Duration {
	if p.Jitter <= 0 {
		return p.BaseDelay
	}
	return p.BaseDelay + time.Duration(rand.Int63n(int64(p.Jitter)))
}

// Fixed latency tiers.
var (
	ProfileFast = LatencyProfile{
		Name:           "fast",
		BaseDelay:      50 * time.Millisecond,
		Jitter:         25 * time.Millisecond,
		ConnectTimeout: 5 * time.Second,
		AuthDelay:      20 * time.Millisecond,
		Description:    "warm backend, negligible network delay",
	}
	ProfileTypical = LatencyProfile{
		Name:           "typical",
		BaseDelay:      150 * time.Millisecond,
		Jitter:         50 * time.Millisecond,
		ConnectTimeout: 8 * time.Second,
		AuthDelay:      50 * time.Millisecond,
		Description:    "steady-state cloud deployment",
	}
	ProfileSlow = LatencyProfile{
		Name:           "slow",
		BaseDelay:      300 * time.Millisecond,
		Jitter:         100 * time.Millisecond,
		ConnectTimeout: 12 * time.Second,
		AuthDelay:      100 * time.Millisecond,
		Description:    "cold start or degraded region",
	}
	ProfileStress = LatencyProfile{
		Name:           "stress",
		BaseDelay:      500 * time.Millisecond,
		Jitter:         200 * time.Millisecond,
		ConnectTimeout: 15 * time.Second,
		AuthDelay:      200 * time.Millisecond,
		Description:    "worst-case latency under load",
	}
)

// Profiles maps tier names to their profiles.
var Profiles = map[string]LatencyProfile{
	ProfileFast.Name:    ProfileFast,
	ProfileTypical.Name: ProfileTypical,
	ProfileSlow.Name:    ProfileSlow,
	ProfileStress.Name:  ProfileStress,
}
