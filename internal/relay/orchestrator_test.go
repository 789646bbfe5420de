package relay

import (
	"context"
	"errors"
	"testing"
	"time"

	"relaybot/internal/config"
	"relaybot/internal/domain"
)

func newTestOrchestrator(profile *Profile, backend *fakeBackend) (*Orchestrator, *fakeWriter) {
	writer := &fakeWriter{}
	o := NewOrchestrator(OrchestratorConfig{
		Profile: profile,
		Reader:  &fakeReader{},
		Writer:  writer,
		Backend: backend,
	})
	return o, writer
}

func TestHandleEventDeliversTextReply(t *testing.T) {
	backend := &fakeBackend{completeText: "hi there"}
	o, writer := newTestOrchestrator(testProfile(nil), backend)

	outcome, err := o.HandleEvent(context.Background(), privateEvent(42, "hello"))
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if outcome != OutcomeDelivered {
		t.Fatalf("outcome = %s", outcome)
	}
	if backend.calls() != 1 {
		t.Fatalf("backend calls = %d, want exactly 1", backend.calls())
	}
	if len(writer.texts) != 1 || writer.texts[0].text != "hi there" {
		t.Fatalf("sent = %+v", writer.texts)
	}
	if writer.texts[0].replyTo != 100 {
		t.Fatalf("replyTo = %d, want the triggering message", writer.texts[0].replyTo)
	}
}

func TestHandleEventBackendFailureFallsBackToDummy(t *testing.T) {
	backend := &fakeBackend{completeErr: errBoom}
	o, writer := newTestOrchestrator(testProfile(nil), backend)
	o.randIntN = func(n int) int { return 1 }

	outcome, err := o.HandleEvent(context.Background(), privateEvent(42, "hello"))
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if outcome != OutcomeFallback {
		t.Fatalf("outcome = %s", outcome)
	}
	if len(writer.texts) != 1 || writer.texts[0].text != "sure" {
		t.Fatalf("sent = %+v, want dummy answer", writer.texts)
	}
	if backend.calls() != 1 {
		t.Fatalf("backend calls = %d, fallback must not redispatch", backend.calls())
	}
}

func TestHandleEventImageGenerateFailureUsesRefusal(t *testing.T) {
	backend := &fakeBackend{imageErr: errBoom}
	o, writer := newTestOrchestrator(testProfile(nil), backend)

	outcome, _ := o.HandleEvent(context.Background(), privateEvent(42, "нарисуй кота"))
	if outcome != OutcomeFallback {
		t.Fatalf("outcome = %s", outcome)
	}
	if len(writer.texts) != 1 || writer.texts[0].text != "not today" {
		t.Fatalf("sent = %+v, want the image refusal line", writer.texts)
	}
}

func TestHandleEventImageGenerateDelivered(t *testing.T) {
	backend := &fakeBackend{imageURL: "https://img.example/out.png"}
	o, writer := newTestOrchestrator(testProfile(nil), backend)

	outcome, err := o.HandleEvent(context.Background(), privateEvent(42, "нарисуй кота в шляпе"))
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if outcome != OutcomeDelivered {
		t.Fatalf("outcome = %s", outcome)
	}
	if backend.lastPrompt != "кота в шляпе" {
		t.Fatalf("prompt = %q", backend.lastPrompt)
	}
	if len(writer.images) != 1 || writer.images[0].URL != "https://img.example/out.png" {
		t.Fatalf("images = %+v", writer.images)
	}
}

func TestHandleEventVoiceReply(t *testing.T) {
	backend := &fakeBackend{completeText: "привет"}
	o, writer := newTestOrchestrator(testProfile(nil), backend)

	outcome, err := o.HandleEvent(context.Background(), privateEvent(42, "скажи вслух поздоровайся"))
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if outcome != OutcomeDelivered {
		t.Fatalf("outcome = %s", outcome)
	}
	if backend.lastTTSText != "привет" {
		t.Fatalf("tts input = %q, want the completion text", backend.lastTTSText)
	}
	if len(writer.voices) != 1 {
		t.Fatalf("voices = %d", len(writer.voices))
	}
}

func TestHandleEventVoiceSynthesisFailureDegradesToText(t *testing.T) {
	backend := &fakeBackend{completeText: "привет", speechErr: errBoom}
	o, writer := newTestOrchestrator(testProfile(nil), backend)

	outcome, err := o.HandleEvent(context.Background(), privateEvent(42, "скажи вслух поздоровайся"))
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if outcome != OutcomeDelivered {
		t.Fatalf("outcome = %s", outcome)
	}
	if len(writer.voices) != 0 {
		t.Fatal("voice sent despite synthesis failure")
	}
	if len(writer.texts) != 1 || writer.texts[0].text != "привет" {
		t.Fatalf("texts = %+v, want the completion as text", writer.texts)
	}
}

func TestHandleEventStaleEventIsDropped(t *testing.T) {
	backend := &fakeBackend{completeText: "hi"}
	o, writer := newTestOrchestrator(testProfile(nil), backend)

	ev := privateEvent(42, "hello")
	ev.Timestamp = time.Now().Add(-15 * time.Minute)

	outcome, err := o.HandleEvent(context.Background(), ev)
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if outcome != OutcomeDropped {
		t.Fatalf("outcome = %s", outcome)
	}
	if backend.calls() != 0 || len(writer.texts) != 0 {
		t.Fatal("stale event must not reach the backend or the chat")
	}
}

func TestHandleEventIgnoredIntentIsDropped(t *testing.T) {
	backend := &fakeBackend{}
	o, writer := newTestOrchestrator(testProfile(nil), backend)

	outcome, err := o.HandleEvent(context.Background(), groupEvent(7, "just chatting"))
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if outcome != OutcomeDropped {
		t.Fatalf("outcome = %s", outcome)
	}
	if backend.calls() != 0 || len(writer.texts) != 0 {
		t.Fatal("ignored event must stay silent")
	}
}

func TestHandleEventDeliveryFailureIsNotRetried(t *testing.T) {
	backend := &fakeBackend{completeText: "hi"}
	o, writer := newTestOrchestrator(testProfile(nil), backend)
	writer.textErr = errBoom

	outcome, err := o.HandleEvent(context.Background(), privateEvent(42, "hello"))
	if !errors.Is(err, domain.ErrDeliveryFailure) {
		t.Fatalf("err = %v, want ErrDeliveryFailure", err)
	}
	if outcome != OutcomeDelivered {
		t.Fatalf("outcome = %s", outcome)
	}
	if backend.calls() != 1 {
		t.Fatalf("backend calls = %d, delivery failure must not redispatch", backend.calls())
	}
}

func TestHandleEventLinkReaction(t *testing.T) {
	backend := &fakeBackend{}
	o, writer := newTestOrchestrator(testProfile(nil), backend)
	// First draw decides to react (< 30), second picks the answer.
	rolls := []int{10, 0}
	o.randIntN = func(n int) int {
		r := rolls[0]
		rolls = rolls[1:]
		return r
	}

	ev := groupEvent(7, "bot look at https://example.com")
	outcome, err := o.HandleEvent(context.Background(), ev)
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if outcome != OutcomeDelivered {
		t.Fatalf("outcome = %s", outcome)
	}
	if backend.calls() != 0 {
		t.Fatal("link reaction must not hit the backend")
	}
	if len(writer.texts) != 1 || writer.texts[0].text != "hmm" {
		t.Fatalf("sent = %+v", writer.texts)
	}
}

func TestHandleEventLinkUsuallyStaysQuiet(t *testing.T) {
	backend := &fakeBackend{}
	o, writer := newTestOrchestrator(testProfile(nil), backend)
	o.randIntN = func(n int) int { return 90 }

	outcome, err := o.HandleEvent(context.Background(), groupEvent(7, "bot see https://example.com"))
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if outcome != OutcomeDropped {
		t.Fatalf("outcome = %s", outcome)
	}
	if len(writer.texts) != 0 {
		t.Fatalf("sent = %+v, want silence", writer.texts)
	}
}

func TestHandleEventPrivateBackendRouting(t *testing.T) {
	regular := &fakeBackend{completeText: "public"}
	private := &fakeBackend{completeText: "private"}
	writer := &fakeWriter{}
	o := NewOrchestrator(OrchestratorConfig{
		Profile:        testProfile(nil),
		Reader:         &fakeReader{},
		Writer:         writer,
		Backend:        regular,
		PrivateBackend: private,
	})

	if _, err := o.HandleEvent(context.Background(), privateEvent(42, "hello")); err != nil {
		t.Fatalf("err = %v", err)
	}
	if private.completes != 1 || regular.completes != 0 {
		t.Fatalf("private=%d regular=%d, want the private deployment", private.completes, regular.completes)
	}

	if _, err := o.HandleEvent(context.Background(), groupEvent(7, "bot hello")); err != nil {
		t.Fatalf("err = %v", err)
	}
	if regular.completes != 1 {
		t.Fatalf("regular=%d, group traffic must use the regular deployment", regular.completes)
	}
}

func TestHandleEventEmptyDummyPoolDrops(t *testing.T) {
	backend := &fakeBackend{completeErr: errBoom}
	profile := testProfile(func(cfg *config.Config, persona *config.Persona) {
		persona.DummyAnswers = nil
	})
	o, writer := newTestOrchestrator(profile, backend)

	outcome, err := o.HandleEvent(context.Background(), privateEvent(42, "hello"))
	if !errors.Is(err, domain.ErrBackendFailure) {
		t.Fatalf("err = %v, want ErrBackendFailure", err)
	}
	if outcome != OutcomeDropped {
		t.Fatalf("outcome = %s", outcome)
	}
	if len(writer.texts) != 0 {
		t.Fatalf("sent = %+v", writer.texts)
	}
}
