package relay

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"
)

// notifyWriter records notifier sends under a lock (the notifier runs
// on its own goroutine) and can fail a specific text.
type notifyWriter struct {
	fakeWriter
	mu      sync.Mutex
	sent    []string
	failing string // SendText returns an error for this exact text
}

func (w *notifyWriter) SendText(ctx context.Context, chatID int64, replyTo int, text string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if text == w.failing {
		return errBoom
	}
	w.sent = append(w.sent, text)
	return nil
}

func (w *notifyWriter) texts() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.sent...)
}

func testNotifier(writer *notifyWriter, delay time.Duration) *progressNotifier {
	return &progressNotifier{
		writer:   writer,
		delay:    delay,
		thinking: "thinking...",
		giveUp:   "giving up",
		logger:   slog.Default(),
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never met")
}

func TestProgressSendsOneThinkingNotice(t *testing.T) {
	writer := &notifyWriter{}
	n := testNotifier(writer, 20*time.Millisecond)

	stop := n.watch(context.Background(), 42)
	defer stop()

	waitFor(t, func() bool { return len(writer.texts()) == 1 })
	if got := writer.texts(); got[0] != "thinking..." {
		t.Fatalf("sent = %v", got)
	}

	// One notice is enough; the loop must have returned.
	time.Sleep(80 * time.Millisecond)
	if got := writer.texts(); len(got) != 1 {
		t.Fatalf("sent = %v, want exactly one notice", got)
	}
}

func TestProgressSilentWhenReplyBeatsDelay(t *testing.T) {
	writer := &notifyWriter{}
	n := testNotifier(writer, 100*time.Millisecond)

	stop := n.watch(context.Background(), 42)
	stop()

	time.Sleep(150 * time.Millisecond)
	if got := writer.texts(); len(got) != 0 {
		t.Fatalf("sent = %v, want silence", got)
	}
}

func TestProgressGivesUpAfterRepeatedSendFailures(t *testing.T) {
	writer := &notifyWriter{failing: "thinking..."}
	n := testNotifier(writer, 5*time.Millisecond)

	stop := n.watch(context.Background(), 42)
	defer stop()

	waitFor(t, func() bool { return len(writer.texts()) == 1 })
	if got := writer.texts(); got[0] != "giving up" {
		t.Fatalf("sent = %v, want the give-up notice", got)
	}
}

func TestProgressDisabledByZeroDelay(t *testing.T) {
	writer := &notifyWriter{}
	n := testNotifier(writer, 0)

	stop := n.watch(context.Background(), 42)
	stop()

	time.Sleep(30 * time.Millisecond)
	if got := writer.texts(); len(got) != 0 {
		t.Fatalf("sent = %v", got)
	}
}

func TestProgressDisabledByEmptyNoticeText(t *testing.T) {
	writer := &notifyWriter{}
	n := testNotifier(writer, 5*time.Millisecond)
	n.thinking = ""

	stop := n.watch(context.Background(), 42)
	defer stop()

	time.Sleep(30 * time.Millisecond)
	if got := writer.texts(); len(got) != 0 {
		t.Fatalf("sent = %v", got)
	}
}

func TestProgressStopsOnContextCancel(t *testing.T) {
	writer := &notifyWriter{}
	n := testNotifier(writer, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	stop := n.watch(ctx, 42)
	defer stop()
	cancel()

	time.Sleep(100 * time.Millisecond)
	if got := writer.texts(); len(got) != 0 {
		t.Fatalf("sent = %v, want silence after cancel", got)
	}
}
