package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/windowhan/airbnb-demands-research/tierconfig"
)

func TestStartFiresSearchImmediately(t *testing.T) {
	budget, _ := tierconfig.BudgetFor("A")
	budget.SearchIntervalMinutes = 60

	var calls int32
	done := make(chan struct{}, 1)
	search := func(ctx context.Context) {
		atomic.AddInt32(&calls, 1)
		select {
		case done <- struct{}{}:
		default:
		}
	}

	s := New(budget, zerolog.Nop(), search, nil, nil)
	s.Start()
	defer s.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected an immediate search run on Start()")
	}

	if atomic.LoadInt32(&calls) < 1 {
		t.Fatalf("calls = %d, want at least 1", calls)
	}
}

func TestRunGuardedSkipsOverlappingInvocations(t *testing.T) {
	budget, _ := tierconfig.BudgetFor("A")
	s := New(budget, zerolog.Nop(), nil, nil, nil)

	release := make(chan struct{})
	started := make(chan struct{})
	var concurrent int32

	slowJob := func(ctx context.Context) {
		atomic.AddInt32(&concurrent, 1)
		started <- struct{}{}
		<-release
		atomic.AddInt32(&concurrent, -1)
	}

	go s.runGuarded(context.Background(), "search", slowJob)
	<-started

	s.runGuarded(context.Background(), "search", slowJob) // should be skipped, not block

	if atomic.LoadInt32(&concurrent) != 1 {
		t.Fatalf("expected exactly 1 concurrent invocation (overlap must be skipped), got %d", concurrent)
	}
	close(release)
}

func TestCalendarCronExprUsesTierHour(t *testing.T) {
	if got := calendarCronExpr(3); got != "0 3 * * *" {
		t.Fatalf("calendarCronExpr(3) = %q, want \"0 3 * * *\"", got)
	}
}
