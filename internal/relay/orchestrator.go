package relay

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"relaybot/internal/domain"
	"relaybot/internal/metrics"

	"github.com/google/uuid"
)

// Outcome is the terminal state of one event's pipeline run.
type Outcome string

const (
	OutcomeDelivered Outcome = "delivered"
	OutcomeFallback  Outcome = "fallback"
	OutcomeDropped   Outcome = "dropped"
)

// Orchestrator sequences the pipeline for one event: context assembly,
// intent classification, request composition, the single backend call,
// and reply delivery with the dummy-answer fallback.
type Orchestrator struct {
	profile        *Profile
	contexts       *ContextBuilder
	classifier     *Classifier
	composer       *Composer
	backend        domain.CompletionBackend
	privateBackend domain.CompletionBackend // optional private-deployment override
	writer         domain.ChatPlatformWriter
	progress       *progressNotifier
	logger         *slog.Logger

	// randIntN is swappable in tests.
	randIntN func(n int) int
}

// OrchestratorConfig wires the orchestrator's collaborators.
type OrchestratorConfig struct {
	Profile        *Profile
	Reader         domain.ChatPlatformReader
	Writer         domain.ChatPlatformWriter
	Backend        domain.CompletionBackend
	PrivateBackend domain.CompletionBackend // nil means Backend serves private chats too
	Logger         *slog.Logger
}

func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Orchestrator{
		profile:        cfg.Profile,
		contexts:       NewContextBuilder(cfg.Reader, cfg.Profile, cfg.Logger),
		classifier:     NewClassifier(cfg.Profile),
		composer:       NewComposer(cfg.Profile),
		backend:        cfg.Backend,
		privateBackend: cfg.PrivateBackend,
		writer:         cfg.Writer,
		progress:       newProgressNotifier(cfg.Writer, cfg.Profile, cfg.Logger),
		logger:         cfg.Logger,
		randIntN:       rand.IntN,
	}
}

// HandleEvent runs the full pipeline for one event. Every event yields
// exactly one Intent and at most one reply; no event produces more than
// one outbound backend dispatch. Safe for concurrent invocation: all
// shared state is read-only.
func (o *Orchestrator) HandleEvent(ctx context.Context, ev *domain.ChatEvent) (Outcome, error) {
	metrics.EventsReceived.Inc()

	logger := o.logger.With(
		"event_id", uuid.NewString(),
		"platform", ev.Platform,
		"chat_id", ev.ChatID,
	)

	if o.profile.MaxEventAge > 0 && !ev.Timestamp.IsZero() &&
		time.Since(ev.Timestamp) > o.profile.MaxEventAge {
		logger.Warn("event too old, dropping", "age", time.Since(ev.Timestamp))
		metrics.EventsDropped.Inc()
		return OutcomeDropped, nil
	}

	// Link posts in allowed group chats occasionally get a filler
	// reaction instead of a real answer.
	if !ev.IsPrivate() && o.profile.Allowed(ev.ChatID) && HasLink(ev.Text) {
		return o.reactToLink(ctx, ev, logger)
	}

	intent := o.classifier.Classify(ev)
	if intent.Kind == domain.IntentIgnore {
		logger.Debug("event ignored")
		metrics.EventsDropped.Inc()
		return OutcomeDropped, nil
	}

	logger = logger.With("intent", string(intent.Kind))

	turns := o.contexts.Build(ctx, ev)
	req := o.composer.Compose(intent, ev, turns)

	stop := o.progress.watch(ctx, ev.ChatID)
	reply, err := o.dispatch(ctx, ev, req)
	stop()

	if err != nil {
		logger.Error("backend dispatch failed", "err", err)
		metrics.BackendFailures.Inc()
		return o.fallback(ctx, ev, req.Kind, logger)
	}

	if err := o.deliver(ctx, ev, reply); err != nil {
		logger.Error("delivery failed", "kind", string(reply.Kind), "err", err)
		metrics.DeliveryFailures.Inc()
		return OutcomeDelivered, fmt.Errorf("%w: %w", domain.ErrDeliveryFailure, err)
	}

	logger.Info("reply delivered", "kind", string(reply.Kind))
	metrics.EventsDelivered.Inc()
	return OutcomeDelivered, nil
}

// backendFor routes private chats to the private deployment when one
// is configured.
func (o *Orchestrator) backendFor(ev *domain.ChatEvent) domain.CompletionBackend {
	if o.privateBackend != nil && ev.IsPrivate() {
		return o.privateBackend
	}
	return o.backend
}

// dispatch issues the single outbound backend call for the composed
// request and shapes the result into a Reply.
func (o *Orchestrator) dispatch(ctx context.Context, ev *domain.ChatEvent, req *Request) (domain.Reply, error) {
	backend := o.backendFor(ev)
	start := time.Now()
	defer func() {
		metrics.BackendLatency.Observe(time.Since(start).Seconds())
	}()

	switch req.Kind {
	case domain.IntentImageGenerate:
		media, err := backend.GenerateImage(ctx, req.Prompt)
		if err != nil {
			return domain.Reply{Kind: domain.ReplyNone}, fmt.Errorf("%w: generate image: %w", domain.ErrBackendFailure, err)
		}
		return domain.Reply{Kind: domain.ReplyImage, Media: media}, nil

	case domain.IntentImageUnderstand:
		text, err := backend.UnderstandImage(ctx, req.Model, *req.Image, req.Question, req.Turns)
		if err != nil {
			return domain.Reply{Kind: domain.ReplyNone}, fmt.Errorf("%w: understand image: %w", domain.ErrBackendFailure, err)
		}
		return domain.Reply{Kind: domain.ReplyText, Text: text}, nil

	case domain.IntentVoiceReply:
		text, err := backend.Complete(ctx, req.Model, req.System, req.Turns)
		if err != nil {
			return domain.Reply{Kind: domain.ReplyNone}, fmt.Errorf("%w: complete: %w", domain.ErrBackendFailure, err)
		}
		audio, err := backend.SynthesizeSpeech(ctx, req.Voice, text)
		if err != nil {
			// The completion succeeded; degrade to a text reply rather
			// than throwing the answer away.
			o.logger.Warn("speech synthesis failed, sending text", "err", err)
			return domain.Reply{Kind: domain.ReplyText, Text: text}, nil
		}
		return domain.Reply{Kind: domain.ReplyVoice, Media: domain.MediaRef{Data: audio}}, nil

	default:
		text, err := backend.Complete(ctx, req.Model, req.System, req.Turns)
		if err != nil {
			return domain.Reply{Kind: domain.ReplyNone}, fmt.Errorf("%w: complete: %w", domain.ErrBackendFailure, err)
		}
		return domain.Reply{Kind: domain.ReplyText, Text: text}, nil
	}
}

func (o *Orchestrator) deliver(ctx context.Context, ev *domain.ChatEvent, reply domain.Reply) error {
	switch reply.Kind {
	case domain.ReplyImage:
		return o.writer.SendImage(ctx, ev.ChatID, ev.MessageID, reply.Media)
	case domain.ReplyVoice:
		return o.writer.SendVoice(ctx, ev.ChatID, ev.MessageID, reply.Media.Data)
	default:
		return o.writer.SendText(ctx, ev.ChatID, ev.MessageID, reply.Text)
	}
}

// fallback delivers a canned answer so the user never sees a raw
// error. Image generation gets its dedicated refusal line when one is
// configured; everything else draws from the dummy pool.
func (o *Orchestrator) fallback(ctx context.Context, ev *domain.ChatEvent, kind domain.IntentKind, logger *slog.Logger) (Outcome, error) {
	persona := o.profile.Persona

	text := ""
	if kind == domain.IntentImageGenerate && persona.ImageRefusal != "" {
		text = persona.ImageRefusal
	} else if len(persona.DummyAnswers) > 0 {
		text = persona.DummyAnswers[o.randIntN(len(persona.DummyAnswers))]
	}

	if text == "" {
		// Startup validation keeps the pool non-empty; if it is empty
		// anyway, dropping beats delivering something visibly wrong.
		logger.Error("dummy pool empty, dropping event")
		metrics.EventsDropped.Inc()
		return OutcomeDropped, domain.ErrBackendFailure
	}

	if err := o.writer.SendText(ctx, ev.ChatID, ev.MessageID, text); err != nil {
		logger.Error("fallback delivery failed", "err", err)
		metrics.DeliveryFailures.Inc()
		return OutcomeFallback, fmt.Errorf("%w: %w", domain.ErrDeliveryFailure, err)
	}

	metrics.EventsFallback.Inc()
	return OutcomeFallback, nil
}

// reactToLink occasionally replies to link-only group posts with a
// filler line; most of the time it stays quiet.
func (o *Orchestrator) reactToLink(ctx context.Context, ev *domain.ChatEvent, logger *slog.Logger) (Outcome, error) {
	if o.profile.LinkReactPercent <= 0 || o.randIntN(100) >= o.profile.LinkReactPercent {
		metrics.EventsDropped.Inc()
		return OutcomeDropped, nil
	}

	answers := o.profile.Persona.DummyAnswers
	if len(answers) == 0 {
		metrics.EventsDropped.Inc()
		return OutcomeDropped, nil
	}

	text := answers[o.randIntN(len(answers))]
	if err := o.writer.SendText(ctx, ev.ChatID, ev.MessageID, text); err != nil {
		logger.Error("link reaction delivery failed", "err", err)
		metrics.DeliveryFailures.Inc()
		return OutcomeDelivered, fmt.Errorf("%w: %w", domain.ErrDeliveryFailure, err)
	}

	logger.Info("link reaction sent")
	metrics.EventsDelivered.Inc()
	return OutcomeDelivered, nil
}
