package station

import (
	"sync"
	"time"

	"github.com/retrowaves/retrowaves/internal/frame"
)

var basePeriodSeconds = frame.Period.Seconds()

const (
	maxDTermMagnitude = 0.1
	minDTDuration     = time.Millisecond
)

// PIDConfig carries the tunable gains and limits for a PIDController.
type PIDConfig struct {
	Enabled bool

	Kp, Ki, Kd float64

	TargetRatio float64

	MinSleep, MaxSleep time.Duration

	IntegralWindupLimit float64

	QueryFailureResetThreshold int
}

// PIDController implements the adaptive Clock A pacing loop described by
// the playout engine's buffer-status feedback: it polls the tower's fill
// ratio and produces an *adjustment* added to Clock A's base period, never
// an absolute replacement.
type PIDController struct {
	cfg PIDConfig

	mu sync.Mutex

	integralSum   float64
	previousError float64
	lastUpdate    time.Time

	lastRatio           float64
	haveRatio           bool
	consecutiveFailures int
	lastAdjustment      time.Duration

	queryCount    uint64
	queryFailures uint64
	limitHits     uint64
	windupEvents  uint64
}

// NewPIDController creates a controller with the given configuration.
func NewPIDController(cfg PIDConfig) *PIDController {
	if cfg.QueryFailureResetThreshold <= 0 {
		cfg.QueryFailureResetThreshold = 3
	}
	return &PIDController{
		cfg:        cfg,
		lastUpdate: time.Now(),
	}
}

// UpdateRatio feeds the controller the latest known buffer ratio. Pass
// ok=false when a poll failed; the controller then retains the last known
// ratio and, after enough consecutive failures, resets its integral term.
func (p *PIDController) UpdateRatio(ratio float64, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.queryCount++
	if !ok {
		p.queryFailures++
		p.consecutiveFailures++
		if p.consecutiveFailures >= p.cfg.QueryFailureResetThreshold {
			p.integralSum = 0
		}
		return
	}

	p.consecutiveFailures = 0
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	p.lastRatio = ratio
	p.haveRatio = true
}

// Adjustment computes the pacing adjustment to add to Clock A's base
// period. Returns 0 unconditionally when the controller is disabled.
func (p *PIDController) Adjustment(now time.Time) time.Duration {
	if !p.cfg.Enabled {
		return 0
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.haveRatio {
		return 0
	}

	errorVal := p.cfg.TargetRatio - p.lastRatio
	pTerm := p.cfg.Kp * errorVal

	dt := now.Sub(p.lastUpdate).Seconds()

	var iTerm, dTerm float64
	if dt > 0 {
		p.integralSum += errorVal * dt
		if limit := p.cfg.IntegralWindupLimit; limit > 0 {
			if p.integralSum > limit {
				p.integralSum = limit
				p.windupEvents++
			} else if p.integralSum < -limit {
				p.integralSum = -limit
				p.windupEvents++
			}
		}
		iTerm = p.cfg.Ki * p.integralSum

		if dt >= minDTDuration.Seconds() {
			dTerm = p.cfg.Kd * (errorVal - p.previousError) / dt
			if dTerm > maxDTermMagnitude {
				dTerm = maxDTermMagnitude
			} else if dTerm < -maxDTermMagnitude {
				dTerm = -maxDTermMagnitude
			}
		}
	}

	adjustmentSeconds := pTerm + iTerm + dTerm

	minAdjustment := p.cfg.MinSleep.Seconds() - basePeriodSeconds
	maxAdjustment := p.cfg.MaxSleep.Seconds() - basePeriodSeconds
	if adjustmentSeconds < minAdjustment {
		adjustmentSeconds = minAdjustment
		p.limitHits++
	} else if adjustmentSeconds > maxAdjustment {
		adjustmentSeconds = maxAdjustment
		p.limitHits++
	}

	p.previousError = errorVal
	p.lastUpdate = now
	p.lastAdjustment = time.Duration(adjustmentSeconds * float64(time.Second))
	return p.lastAdjustment
}

// PIDMetrics is a point-in-time snapshot of the controller's internal
// counters, for observability.
type PIDMetrics struct {
	QueryCount    uint64
	QueryFailures uint64
	LimitHits     uint64
	WindupEvents  uint64
	IntegralSum   float64
}

// Metrics returns the controller's current counters.
func (p *PIDController) Metrics() PIDMetrics {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PIDMetrics{
		QueryCount:    p.queryCount,
		QueryFailures: p.queryFailures,
		LimitHits:     p.limitHits,
		WindupEvents:  p.windupEvents,
		IntegralSum:   p.integralSum,
	}
}
