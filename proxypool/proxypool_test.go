package proxypool

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestGetEmptyPoolReturnsNothing(t *testing.T) {
	p := New(nil, 500, zerolog.Nop())
	if got := p.Get(); got != "" {
		t.Fatalf("Get() on empty pool = %q, want \"\"", got)
	}
}

func TestProxyRotationExample(t *testing.T) {
	p := New([]string{"http://p1:8080", "http://p2:8080"}, 2, zerolog.Nop())

	first := p.Get()
	second := p.Get()
	third := p.Get()

	if first != "http://p1:8080" || second != "http://p1:8080" {
		t.Fatalf("expected p1, p1 for first two calls, got %q, %q", first, second)
	}
	if third != "http://p2:8080" {
		t.Fatalf("expected p2 on third call after rotate threshold, got %q", third)
	}
}

func TestReportBlockedSetsCooldownAtLeast300s(t *testing.T) {
	p := New([]string{"http://p1:8080"}, 500, zerolog.Nop())
	_ = p.Get()

	before := time.Now()
	p.ReportBlocked()

	states := p.States()
	if states[0].Healthy {
		t.Fatal("expected proxy to be marked unhealthy after report_blocked")
	}
	if states[0].CooldownUntil.Before(before.Add(cooldownDuration)) {
		t.Fatalf("cooldown_until = %v, want at least %v", states[0].CooldownUntil, before.Add(cooldownDuration))
	}
}

func TestGetReturnsNothingWhenAllInCooldown(t *testing.T) {
	p := New([]string{"http://p1:8080"}, 500, zerolog.Nop())
	_ = p.Get()
	p.ReportBlocked()

	if got := p.Get(); got != "" {
		t.Fatalf("Get() with all proxies cooled down = %q, want \"\"", got)
	}
}

func TestGetRestoresHealthAfterCooldownElapses(t *testing.T) {
	p := New([]string{"http://p1:8080"}, 500, zerolog.Nop())
	fakeNow := time.Now()
	p.now = func() time.Time { return fakeNow }

	_ = p.Get()
	p.ReportBlocked()

	fakeNow = fakeNow.Add(cooldownDuration + time.Second)
	if got := p.Get(); got != "http://p1:8080" {
		t.Fatalf("Get() after cooldown elapsed = %q, want the proxy restored", got)
	}
}

func TestParseURLsRejectsMalformed(t *testing.T) {
	if _, err := ParseURLs([]string{"http://ok:8080", "://broken"}); err == nil {
		t.Fatal("expected ConfigError for malformed proxy URL")
	}
}

func TestParseURLsSkipsBlankLines(t *testing.T) {
	out, err := ParseURLs([]string{"http://ok:8080", "", "http://ok2:8080"})
	if err != nil {
		t.Fatalf("ParseURLs: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 entries after skipping blanks, got %d", len(out))
	}
}
