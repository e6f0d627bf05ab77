package availability

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/reserv/internal/apiclient"
	"github.com/wolfman30/reserv/internal/observability/metrics"
)

type reply struct {
	slots []string
	err   error
}

// gatedFetcher answers each date only when the test releases it. It
// ignores cancellation unless honorCancel is set, to model a transport
// that races past the cancel.
type gatedFetcher struct {
	mu          sync.Mutex
	calls       []string
	gates       map[string]chan reply
	honorCancel bool
}

func newGatedFetcher() *gatedFetcher {
	return &gatedFetcher{gates: make(map[string]chan reply)}
}

func (f *gatedFetcher) gate(date string) chan reply {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.gates[date]
	if !ok {
		ch = make(chan reply, 1)
		f.gates[date] = ch
	}
	return ch
}

func (f *gatedFetcher) AvailableSlots(ctx context.Context, serviceID, date string) ([]string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, date)
	f.mu.Unlock()

	ch := f.gate(date)
	if f.honorCancel {
		select {
		case r := <-ch:
			return r.slots, r.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	r := <-ch
	return r.slots, r.err
}

func (f *gatedFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type staticFetcher struct {
	slots []string
	err   error
}

func (s staticFetcher) AvailableSlots(context.Context, string, string) ([]string, error) {
	return s.slots, s.err
}

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

var morning = time.Date(2026, 6, 15, 9, 30, 0, 0, time.UTC)

func loadDate(t *testing.T, w *Workflow, date string) Snapshot {
	t.Helper()
	_, err := w.SelectDate(context.Background(), date)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	snap, err := w.Wait(ctx)
	require.NoError(t, err)
	return snap
}

func TestTodayFilterDropsStartedSlots(t *testing.T) {
	w := New(staticFetcher{slots: []string{"09:00", "10:00"}}, "svc-1",
		WithClock(fixedClock(morning)), WithLocation(time.UTC))
	defer w.Close()

	snap := loadDate(t, w, "2026-06-15")
	assert.Equal(t, StateLoaded, snap.State)
	assert.Equal(t, []string{"10:00"}, snap.Slots)
}

func TestTomorrowIsNotFiltered(t *testing.T) {
	w := New(staticFetcher{slots: []string{"09:00", "10:00"}}, "svc-1",
		WithClock(fixedClock(morning.Add(14*time.Hour))), WithLocation(time.UTC))
	defer w.Close()

	snap := loadDate(t, w, "2026-06-16")
	assert.Equal(t, []string{"09:00", "10:00"}, snap.Slots)
}

func TestFilterPastBoundary(t *testing.T) {
	now := time.Date(2026, 6, 15, 10, 0, 30, 0, time.UTC)
	assert.Equal(t, []string{"10:01"}, FilterPast([]string{"09:59", "10:00", "10:01", "bogus"}, "2026-06-15", now))
	assert.Equal(t, []string{"09:59", "bogus"}, FilterPast([]string{"09:59", "bogus"}, "2026-06-14", now))
}

func TestSelectDateClearsSlotBeforeFetchResolves(t *testing.T) {
	f := newGatedFetcher()
	w := New(f, "svc-1", WithClock(fixedClock(morning)), WithLocation(time.UTC))
	defer w.Close()

	f.gate("2026-06-20") <- reply{slots: []string{"10:00", "11:00"}}
	loadDate(t, w, "2026-06-20")
	_, err := w.SelectSlot("10:00")
	require.NoError(t, err)

	snap, err := w.SelectDate(context.Background(), "2026-06-21")
	require.NoError(t, err)
	assert.Equal(t, StateLoading, snap.State)
	assert.Empty(t, snap.Selected)
	assert.Empty(t, snap.Slots)
	assert.Empty(t, w.Snapshot().Selected)

	f.gate("2026-06-21") <- reply{slots: []string{"10:00"}}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	final, err := w.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"10:00"}, final.Slots)
	assert.Empty(t, final.Selected, "selection is never carried across dates")
}

func TestLateStaleResponseIsIgnored(t *testing.T) {
	f := newGatedFetcher()
	reg := prometheus.NewRegistry()
	m := metrics.NewWorkflowMetrics(reg)
	w := New(f, "svc-1", WithClock(fixedClock(morning)), WithLocation(time.UTC), WithMetrics(m))
	defer w.Close()

	_, err := w.SelectDate(context.Background(), "2026-06-20")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return f.callCount() == 1 }, time.Second, time.Millisecond)

	_, err = w.SelectDate(context.Background(), "2026-06-21")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return f.callCount() == 2 }, time.Second, time.Millisecond)

	f.gate("2026-06-21") <- reply{slots: []string{"14:00"}}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	snap, err := w.Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"14:00"}, snap.Slots)

	// The first request ignored its cancel and answers late.
	f.gate("2026-06-20") <- reply{slots: []string{"08:00", "09:00"}}
	assert.Eventually(t, func() bool {
		return counterValue(t, reg, "reserv_booking_slot_fetches_total", "stale") == 1
	}, time.Second, 5*time.Millisecond)

	snap = w.Snapshot()
	assert.Equal(t, "2026-06-21", snap.Date)
	assert.Equal(t, []string{"14:00"}, snap.Slots)
}

func TestCanceledFetchLeavesNoError(t *testing.T) {
	f := newGatedFetcher()
	f.honorCancel = true
	w := New(f, "svc-1", WithClock(fixedClock(morning)), WithLocation(time.UTC))

	_, err := w.SelectDate(context.Background(), "2026-06-20")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return f.callCount() == 1 }, time.Second, time.Millisecond)
	w.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	snap, err := w.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, snap.State)
	assert.Empty(t, snap.Error)

	_, err = w.SelectDate(context.Background(), "2026-06-21")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestFetchErrorMessages(t *testing.T) {
	w := New(staticFetcher{err: &apiclient.APIError{Status: 400, Message: "Service is not offered on Sundays"}}, "svc-1",
		WithClock(fixedClock(morning)), WithLocation(time.UTC))
	defer w.Close()
	snap := loadDate(t, w, "2026-06-21")
	assert.Equal(t, StateError, snap.State)
	assert.Equal(t, "Service is not offered on Sundays", snap.Error)

	w2 := New(staticFetcher{err: errors.New("connection reset")}, "svc-1")
	defer w2.Close()
	snap = loadDate(t, w2, "2026-06-21")
	assert.Equal(t, StateError, snap.State)
	assert.Equal(t, MsgUnavailable, snap.Error)
}

func TestErrorRecoversOnNewDate(t *testing.T) {
	f := newGatedFetcher()
	w := New(f, "svc-1", WithClock(fixedClock(morning)), WithLocation(time.UTC))
	defer w.Close()

	f.gate("2026-06-20") <- reply{err: errors.New("boom")}
	assert.Equal(t, StateError, loadDate(t, w, "2026-06-20").State)

	f.gate("2026-06-22") <- reply{slots: []string{"12:00"}}
	snap := loadDate(t, w, "2026-06-22")
	assert.Equal(t, StateLoaded, snap.State)
	assert.Empty(t, snap.Error)
}

func TestEmptyDateOrServiceIsIdle(t *testing.T) {
	f := newGatedFetcher()
	w := New(f, "", WithClock(fixedClock(morning)))
	defer w.Close()
	snap, err := w.SelectDate(context.Background(), "2026-06-20")
	require.NoError(t, err)
	assert.Equal(t, StateIdle, snap.State)

	w2 := New(f, "svc-1", WithClock(fixedClock(morning)))
	defer w2.Close()
	snap, err = w2.SelectDate(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, StateIdle, snap.State)
	assert.Zero(t, f.callCount())

	_, err = w2.SelectDate(context.Background(), "20/06/2026")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestSelectSlotValidation(t *testing.T) {
	w := New(staticFetcher{slots: []string{"10:00", "11:00"}}, "svc-1",
		WithClock(fixedClock(morning)), WithLocation(time.UTC))
	defer w.Close()

	_, err := w.SelectSlot("10:00")
	assert.ErrorIs(t, err, ErrUnknownSlot, "nothing loaded yet")

	loadDate(t, w, "2026-06-15")
	_, err = w.SelectSlot("12:00")
	assert.ErrorIs(t, err, ErrUnknownSlot)

	snap, err := w.SelectSlot("11:00")
	require.NoError(t, err)
	assert.Equal(t, "11:00", snap.Selected)

	snap, err = w.SelectSlot("")
	require.NoError(t, err)
	assert.Empty(t, snap.Selected)
}

func TestFreezeBlocksPickers(t *testing.T) {
	w := New(staticFetcher{slots: []string{"10:00"}}, "svc-1",
		WithClock(fixedClock(morning)), WithLocation(time.UTC))
	defer w.Close()
	loadDate(t, w, "2026-06-15")

	w.Freeze()
	_, err := w.SelectDate(context.Background(), "2026-06-16")
	assert.ErrorIs(t, err, ErrFrozen)
	_, err = w.SelectSlot("10:00")
	assert.ErrorIs(t, err, ErrFrozen)
	assert.True(t, w.Snapshot().Frozen)

	w.Unfreeze()
	_, err = w.SelectSlot("10:00")
	assert.NoError(t, err)
}

func TestRefreshClearsSelectionThatPassed(t *testing.T) {
	now := morning
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	w := New(staticFetcher{slots: []string{"10:00", "11:00"}}, "svc-1", WithClock(clock), WithLocation(time.UTC))
	defer w.Close()

	loadDate(t, w, "2026-06-15")
	_, err := w.SelectSlot("10:00")
	require.NoError(t, err)

	later := morning.Add(45 * time.Minute)
	snap := w.Refresh(later)
	assert.Equal(t, []string{"11:00"}, snap.Slots)
	assert.Empty(t, snap.Selected)
}
