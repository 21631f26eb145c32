package numerator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
)

type mockRow struct {
	val int64
	err error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.err != nil {
		return m.err
	}
	if len(dest) > 0 {
		if ptr, ok := dest[0].(*int64); ok {
			*ptr = m.val
		}
	}
	return nil
}

// mockQuerier simulates the sys_sequences row: every round trip advances
// the stored value by the requested increment (1 for strict, range size
// for cached).
type mockQuerier struct {
	mu           sync.Mutex
	currentValue int64
	calls        int
}

func (m *mockQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	var increment int64 = 1
	if len(args) == 2 {
		if val, ok := args[1].(int64); ok {
			increment = val
		}
	}

	m.currentValue += increment
	return &mockRow{val: m.currentValue}
}

var fixedPeriod = time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)

func TestGetNextNumber_Strict(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	ctx := context.Background()
	cfg := DefaultConfig("OC")

	num, err := svc.GetNextNumber(ctx, cfg, nil, fixedPeriod)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "OC-2025-00001" {
		t.Errorf("expected OC-2025-00001, got %s", num)
	}

	num, err = svc.GetNextNumber(ctx, cfg, nil, fixedPeriod)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "OC-2025-00002" {
		t.Errorf("expected OC-2025-00002, got %s", num)
	}
	if q.calls != 2 {
		t.Errorf("strict strategy must hit the database per number, got %d calls", q.calls)
	}
}

func TestGetNextNumber_CachedReservesRanges(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	ctx := context.Background()
	cfg := DefaultConfig("RM")
	opts := &Options{Strategy: StrategyCached, RangeSize: 10}

	num, err := svc.GetNextNumber(ctx, cfg, opts, fixedPeriod)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "RM-2025-00001" {
		t.Errorf("expected RM-2025-00001, got %s", num)
	}
	if q.currentValue != 10 {
		t.Errorf("expected the full range reserved up front, db at %d", q.currentValue)
	}

	// Next nine numbers come from memory.
	var last string
	for i := 0; i < 9; i++ {
		last, err = svc.GetNextNumber(ctx, cfg, opts, fixedPeriod)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if last != "RM-2025-00010" {
		t.Errorf("expected RM-2025-00010, got %s", last)
	}
	if q.calls != 1 {
		t.Errorf("expected a single reservation round trip, got %d", q.calls)
	}

	// Range exhausted: the next number triggers a refill.
	num, err = svc.GetNextNumber(ctx, cfg, opts, fixedPeriod)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "RM-2025-00011" {
		t.Errorf("expected RM-2025-00011, got %s", num)
	}
	if q.currentValue != 20 {
		t.Errorf("expected a second range reserved, db at %d", q.currentValue)
	}
}

func TestGetNextNumber_KeysByPeriod(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	ctx := context.Background()
	cfg := DefaultConfig("AUD")
	cfg.ResetPeriod = "month"

	march, err := svc.GetNextNumber(ctx, cfg, nil, fixedPeriod)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if march != "AUD-2025-00001" {
		t.Errorf("expected AUD-2025-00001, got %s", march)
	}
}

func TestGetNextNumber_NilService(t *testing.T) {
	var svc *Service
	_, err := svc.GetNextNumber(context.Background(), DefaultConfig("X"), nil, fixedPeriod)
	if err == nil {
		t.Fatal("expected error for uninitialized service")
	}
}
