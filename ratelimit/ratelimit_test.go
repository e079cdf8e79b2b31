package ratelimit

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/windowhan/airbnb-demands-research/blockclassifier"
	"github.com/windowhan/airbnb-demands-research/tierconfig"
)

func TestRateLimitEscalationExample(t *testing.T) {
	budget, _ := tierconfig.BudgetFor("A")
	l := New(budget, zerolog.Nop())

	if got := l.Multiplier(); got != 1.0 {
		t.Fatalf("initial multiplier = %v, want 1.0", got)
	}

	l.ReportFailure(blockclassifier.RateLimit)
	if got := l.Multiplier(); got != 2.0 {
		t.Fatalf("after report_failure(rate_limit): multiplier = %v, want 2.0", got)
	}

	l.ReportSuccess()
	if got := l.Multiplier(); got != 1.8 {
		t.Fatalf("after report_success: multiplier = %v, want 1.8", got)
	}
}

func TestMultiplierStaysWithinBounds(t *testing.T) {
	budget, _ := tierconfig.BudgetFor("A")
	l := New(budget, zerolog.Nop())

	for i := 0; i < 50; i++ {
		l.ReportFailure(blockclassifier.Captcha)
		if m := l.Multiplier(); m > maxMultiplier {
			t.Fatalf("multiplier exceeded cap: %v", m)
		}
	}
	for i := 0; i < 50; i++ {
		l.ReportSuccess()
		if m := l.Multiplier(); m < minMultiplier {
			t.Fatalf("multiplier went below floor: %v", m)
		}
	}
}

func TestCircuitOpensOnFiveConsecutiveFailures(t *testing.T) {
	budget, _ := tierconfig.BudgetFor("A")
	l := New(budget, zerolog.Nop())

	for i := 0; i < 5; i++ {
		l.ReportFailure(blockclassifier.ServerError)
	}

	l.mu.Lock()
	phase := l.phase
	l.mu.Unlock()
	if phase != circuitOpen {
		t.Fatalf("expected circuit open after 5 consecutive failures, got phase %v", phase)
	}

	l.mu.Lock()
	consecutive := l.stats.ConsecutiveFailures
	l.mu.Unlock()
	if consecutive != 0 {
		t.Fatalf("expected consecutive-failure counter cleared on circuit open, got %d", consecutive)
	}
}

func TestReportSuccessResetsConsecutiveFailures(t *testing.T) {
	budget, _ := tierconfig.BudgetFor("A")
	l := New(budget, zerolog.Nop())

	l.ReportFailure(blockclassifier.RateLimit)
	l.ReportFailure(blockclassifier.RateLimit)
	l.ReportSuccess()

	if got := l.Stats().ConsecutiveFailures; got != 0 {
		t.Fatalf("ConsecutiveFailures = %d, want 0 after a success", got)
	}
}
