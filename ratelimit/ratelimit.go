// Package ratelimit implements the adaptive rate limiter and circuit
// breaker (spec §4.4) that every outbound request passes through. Its
// mutex-guarded state and a Cleanup-style reset pattern follow the
// teacher's sliding-window rate limiter
// (middleware.RateLimiter / slidingWindow), adapted from a per-key
// request-admission gate into a single-tenant pacing clock with a
// multiplicative backoff multiplier in place of token buckets.
package ratelimit

import (
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/windowhan/airbnb-demands-research/blockclassifier"
	"github.com/windowhan/airbnb-demands-research/tierconfig"
)

// circuitPhase is CircuitState's discriminant (spec §3: closed |
// open-until T | half-open remaining N).
type circuitPhase int

const (
	circuitClosed circuitPhase = iota
	circuitOpen
	circuitHalfOpen
)

const (
	minMultiplier       = 1.0
	maxMultiplier       = 10.0
	successDecayFactor  = 0.9
	consecutiveFailCap  = 5
	circuitOpenDuration = 300 * time.Second
	halfOpenBudget      = 2
	hourWindow          = 3600 * time.Second
	dayWindow           = 24 * time.Hour
)

var failureFactor = map[blockclassifier.BlockType]float64{
	blockclassifier.RateLimit: 2.0,
	blockclassifier.Forbidden: 3.0,
	blockclassifier.Captcha:   4.0,
}

const otherFailureFactor = 1.5

// RequestStats carries the lifetime and windowed counters L3
// monotonically updates (spec §3).
type RequestStats struct {
	Total  int64
	Success int64
	Failed  int64
	Blocked int64

	ConsecutiveFailures int64

	HourCount int64
	DayCount  int64

	HourStart time.Time
	DayStart  time.Time
}

// Limiter is the L3 rate limiter + circuit breaker. One Limiter is
// constructed per tier budget and shared by every L5 request.
type Limiter struct {
	mu sync.Mutex

	budget tierconfig.TierBudget
	stats  RequestStats

	multiplier float64
	phase      circuitPhase
	openUntil  time.Time
	halfOpenN  int

	log  zerolog.Logger
	now  func() time.Time
	sleep func(time.Duration)
	rand  *rand.Rand
}

// New constructs a Limiter for the given tier budget.
func New(budget tierconfig.TierBudget, log zerolog.Logger) *Limiter {
	now := time.Now()
	return &Limiter{
		budget:     budget,
		multiplier: minMultiplier,
		stats: RequestStats{
			HourStart: now,
			DayStart:  now,
		},
		log:   log.With().Str("component", "ratelimit").Logger(),
		now:   time.Now,
		sleep: time.Sleep,
		rand:  rand.New(rand.NewSource(now.UnixNano())),
	}
}

// Stats returns a snapshot of the current counters for diagnostics.
func (l *Limiter) Stats() RequestStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

// Multiplier returns the current adaptive backoff multiplier.
func (l *Limiter) Multiplier() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.multiplier
}

// Wait suspends the caller until it is admissible to issue the next
// request, following the seven-step order from spec §4.4.
func (l *Limiter) Wait() {
	l.mu.Lock()
	sleepFor, rollHour, rollDay := l.admissionLocked()
	l.mu.Unlock()

	if sleepFor > 0 {
		l.sleep(sleepFor)
	}
	if rollHour || rollDay {
		l.mu.Lock()
		l.rollWindowsLocked()
		l.mu.Unlock()
	}

	l.mu.Lock()
	delay := l.delayLocked()
	l.mu.Unlock()

	l.sleep(delay)

	l.mu.Lock()
	l.stats.Total++
	l.stats.HourCount++
	l.stats.DayCount++
	l.mu.Unlock()
}

// admissionLocked performs steps 1-5: circuit check, window resets and
// caps. It returns how long the caller must additionally sleep before
// the jittered per-request delay (step 6) is computed.
func (l *Limiter) admissionLocked() (sleepFor time.Duration, rollHour, rollDay bool) {
	now := l.now()

	if l.phase == circuitOpen {
		if now.Before(l.openUntil) {
			sleepFor += l.openUntil.Sub(now)
		}
		l.phase = circuitHalfOpen
		l.halfOpenN = halfOpenBudget
	}

	if now.Sub(l.stats.HourStart) >= hourWindow {
		rollHour = true
	}
	if now.Sub(l.stats.DayStart) >= dayWindow {
		rollDay = true
	}

	if !rollHour && l.budget.MaxRequestsPerHour > 0 && l.stats.HourCount >= int64(l.budget.MaxRequestsPerHour) {
		remaining := hourWindow - now.Sub(l.stats.HourStart)
		if remaining > 0 {
			sleepFor += remaining
		}
		rollHour = true
	}
	if !rollDay && l.budget.MaxRequestsPerDayPerIP > 0 && l.stats.DayCount >= int64(l.budget.MaxRequestsPerDayPerIP) {
		remaining := dayWindow - now.Sub(l.stats.DayStart)
		if remaining > 0 {
			sleepFor += remaining
		}
		rollDay = true
	}

	return sleepFor, rollHour, rollDay
}

func (l *Limiter) rollWindowsLocked() {
	now := l.now()
	if now.Sub(l.stats.HourStart) >= hourWindow {
		l.stats.HourCount = 0
		l.stats.HourStart = now
	}
	if now.Sub(l.stats.DayStart) >= dayWindow {
		l.stats.DayCount = 0
		l.stats.DayStart = now
	}
}

func (l *Limiter) delayLocked() time.Duration {
	jitter := l.budget.JitterLowSeconds
	span := l.budget.JitterHighSeconds - l.budget.JitterLowSeconds
	if span > 0 {
		jitter += l.rand.Float64() * span
	}
	seconds := (l.budget.BaseDelaySeconds + jitter) * l.multiplier
	return time.Duration(seconds * float64(time.Second))
}

// ReportSuccess records a successful request: resets the consecutive-
// failure run, decays the multiplier, and advances a half-open circuit
// toward closed.
func (l *Limiter) ReportSuccess() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.stats.Success++
	l.stats.ConsecutiveFailures = 0

	l.multiplier *= successDecayFactor
	if l.multiplier < minMultiplier {
		l.multiplier = minMultiplier
	}

	if l.phase == circuitHalfOpen {
		l.halfOpenN--
		if l.halfOpenN <= 0 {
			l.phase = circuitClosed
		}
	}
}

// ReportFailure records a failed request classified by bt, escalating
// the multiplier and opening the circuit after five consecutive
// failures.
func (l *Limiter) ReportFailure(bt blockclassifier.BlockType) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.stats.Failed++
	l.stats.ConsecutiveFailures++

	if bt != blockclassifier.None {
		l.stats.Blocked++
		factor, ok := failureFactor[bt]
		if !ok {
			factor = otherFailureFactor
		}
		l.multiplier *= factor
		if l.multiplier > maxMultiplier {
			l.multiplier = maxMultiplier
		}
	}

	if l.stats.ConsecutiveFailures >= consecutiveFailCap {
		l.phase = circuitOpen
		l.openUntil = l.now().Add(circuitOpenDuration)
		l.stats.ConsecutiveFailures = 0
		l.log.Warn().Time("open_until", l.openUntil).Msg("circuit opened after consecutive failures")
	}
}

// DetectBlock delegates to the pure classifier (spec §4.6). It is a
// package-level function, not a method on Limiter.
func DetectBlock(status int, body []byte) blockclassifier.BlockType {
	return blockclassifier.Detect(status, body)
}
