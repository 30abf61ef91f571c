package reminder_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
	_ "time/tzdata" // zone lookups must work on hosts without tzdata

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namannarain93/whatsapp-birthday-bot/internal/config"
	"github.com/namannarain93/whatsapp-birthday-bot/internal/engine"
	"github.com/namannarain93/whatsapp-birthday-bot/internal/reminder"
	"github.com/namannarain93/whatsapp-birthday-bot/internal/store"
)

const owner = "919999000001"

type sentMessage struct {
	To   string
	Text string
}

type fakeSender struct {
	mu       sync.Mutex
	sent     []sentMessage
	attempts int
	fail     error
}

func (f *fakeSender) SendText(_ context.Context, to, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.fail != nil {
		return f.fail
	}
	f.sent = append(f.sent, sentMessage{To: to, Text: text})
	return nil
}

func (f *fakeSender) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

func (f *fakeSender) setFail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = err
}

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// newWorker wires a worker against an in-memory store. The clock starts at
// 03:40 UTC on 25 Aug 2025, which is 09:10 in Asia/Kolkata, inside the
// delivery hour used by the tests.
func newWorker(t *testing.T) (*reminder.Worker, *fakeSender, *stepClock, *store.SQLiteStore) {
	t.Helper()

	st, err := store.Open(store.MemoryDSN)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	sender := &fakeSender{}
	clk := &stepClock{now: time.Date(2025, 8, 25, 3, 40, 0, 0, time.UTC)}
	w := &reminder.Worker{
		Store:   st,
		Sender:  sender,
		Replies: engine.NewReplies(config.DefaultLanguage),
		Clock:   clk,
		Hour:    9,
	}
	return w, sender, clk, st
}

func TestSweep_DeliversAtLocalHour(t *testing.T) {
	w, sender, clk, st := newWorker(t)
	ctx := context.Background()
	require.NoError(t, st.OnboardUser(ctx, owner, "Asia/Kolkata"))
	require.NoError(t, st.SaveRecord(ctx, owner, "Papa", 25, "Aug"))

	w.Sweep(ctx)

	msgs := sender.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, owner, msgs[0].To)
	assert.Contains(t, msgs[0].Text, "Papa")

	prof, err := st.Profile(ctx, owner)
	require.NoError(t, err)
	require.NotNil(t, prof.LastReminderSentAt)
	assert.WithinDuration(t, clk.Now(), *prof.LastReminderSentAt, time.Second)
}

func TestSweep_QuietOutsideDeliveryHour(t *testing.T) {
	w, sender, clk, st := newWorker(t)
	ctx := context.Background()
	require.NoError(t, st.OnboardUser(ctx, owner, "Asia/Kolkata"))
	require.NoError(t, st.SaveRecord(ctx, owner, "Papa", 25, "Aug"))

	// 05:30 UTC is 11:00 in Kolkata, two hours past the delivery hour.
	clk.Advance(110 * time.Minute)
	w.Sweep(ctx)

	assert.Empty(t, sender.messages())
}

func TestSweep_SendsOncePerLocalDay(t *testing.T) {
	w, sender, clk, st := newWorker(t)
	ctx := context.Background()
	require.NoError(t, st.OnboardUser(ctx, owner, "Asia/Kolkata"))
	require.NoError(t, st.SaveRecord(ctx, owner, "Papa", 25, "Aug"))

	w.Sweep(ctx)
	clk.Advance(15 * time.Minute)
	w.Sweep(ctx)

	assert.Len(t, sender.messages(), 1, "Second tick in the same hour must not send again")
}

func TestSweep_NoBirthdaysTodayStaysSilent(t *testing.T) {
	w, sender, _, st := newWorker(t)
	ctx := context.Background()
	require.NoError(t, st.OnboardUser(ctx, owner, "Asia/Kolkata"))
	require.NoError(t, st.SaveRecord(ctx, owner, "Papa", 26, "Aug"))

	w.Sweep(ctx)

	assert.Empty(t, sender.messages())

	prof, err := st.Profile(ctx, owner)
	require.NoError(t, err)
	assert.Nil(t, prof.LastReminderSentAt, "Quiet days must not be stamped")
}

func TestSweep_JoinsMultipleNames(t *testing.T) {
	w, sender, _, st := newWorker(t)
	ctx := context.Background()
	require.NoError(t, st.OnboardUser(ctx, owner, "Asia/Kolkata"))
	require.NoError(t, st.SaveRecord(ctx, owner, "Papa", 25, "Aug"))
	require.NoError(t, st.SaveRecord(ctx, owner, "Mum", 25, "Aug"))

	w.Sweep(ctx)

	msgs := sender.messages()
	require.Len(t, msgs, 1, "One message covers all of today's birthdays")
	assert.Contains(t, msgs[0].Text, "Papa")
	assert.Contains(t, msgs[0].Text, "Mum")
	assert.Contains(t, msgs[0].Text, "2")
}

func TestSweep_SendFailureRetriesNextTick(t *testing.T) {
	w, sender, clk, st := newWorker(t)
	ctx := context.Background()
	require.NoError(t, st.OnboardUser(ctx, owner, "Asia/Kolkata"))
	require.NoError(t, st.SaveRecord(ctx, owner, "Papa", 25, "Aug"))

	sender.setFail(errors.New("network down"))
	w.Sweep(ctx)

	prof, err := st.Profile(ctx, owner)
	require.NoError(t, err)
	assert.Nil(t, prof.LastReminderSentAt, "Failed sends must not be stamped")

	sender.setFail(nil)
	clk.Advance(15 * time.Minute)
	w.Sweep(ctx)

	assert.Len(t, sender.messages(), 1)
	assert.Equal(t, 2, sender.attempts)

	prof, err = st.Profile(ctx, owner)
	require.NoError(t, err)
	assert.NotNil(t, prof.LastReminderSentAt)
}

func TestSweep_UnknownTimezoneFallsBackToUTC(t *testing.T) {
	w, sender, clk, st := newWorker(t)
	ctx := context.Background()
	require.NoError(t, st.OnboardUser(ctx, owner, "Mars/Olympus"))
	require.NoError(t, st.SaveRecord(ctx, owner, "Papa", 25, "Aug"))

	// 09:05 UTC, inside the delivery hour once the zone falls back.
	clk.Advance(5*time.Hour + 25*time.Minute)
	w.Sweep(ctx)

	assert.Len(t, sender.messages(), 1)
}

func TestSweep_IndependentUsers(t *testing.T) {
	// Two users in different zones; only the one inside their local
	// delivery hour hears from the bot.
	w, sender, _, st := newWorker(t)
	ctx := context.Background()
	require.NoError(t, st.OnboardUser(ctx, owner, "Asia/Kolkata"))
	require.NoError(t, st.SaveRecord(ctx, owner, "Papa", 25, "Aug"))

	const parisOwner = "33600000001"
	require.NoError(t, st.OnboardUser(ctx, parisOwner, "Europe/Paris"))
	require.NoError(t, st.SaveRecord(ctx, parisOwner, "Claire", 25, "Aug"))

	// 03:40 UTC is 05:40 in Paris, hours before delivery.
	w.Sweep(ctx)

	msgs := sender.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, owner, msgs[0].To)
}

func TestSweep_LeapDayBirthday(t *testing.T) {
	w, sender, clk, st := newWorker(t)
	ctx := context.Background()
	require.NoError(t, st.OnboardUser(ctx, owner, "Asia/Kolkata"))
	require.NoError(t, st.SaveRecord(ctx, owner, "Nana", 29, "Feb"))

	// 2024 has a leap day: the reminder goes out on the 29th itself.
	clk.Advance(time.Date(2024, 2, 29, 3, 40, 0, 0, time.UTC).Sub(clk.Now()))
	w.Sweep(ctx)
	require.Len(t, sender.messages(), 1)

	// The day after stays quiet.
	clk.Advance(24 * time.Hour)
	w.Sweep(ctx)
	assert.Len(t, sender.messages(), 1)

	// 2025 has none: the reminder lands on 1 Mar instead, the same date
	// the calendar feed places the event on.
	clk.Advance(time.Date(2025, 3, 1, 3, 40, 0, 0, time.UTC).Sub(clk.Now()))
	w.Sweep(ctx)
	msgs := sender.messages()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[1].Text, "Nana")
}

func TestRun_StopsOnCancel(t *testing.T) {
	w, _, _, _ := newWorker(t)
	w.Interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Worker did not stop after context cancellation")
	}
}
