package synopsys

import (
	"context"
	"log/slog"

	"github.com/casualjim/synopsys/event"
	"github.com/casualjim/synopsys/pkg/slogx"
)

// Hook observes the lifecycle of a Play and the messages its actors handle.
// Hooks are called synchronously from the actor loops and must not block.
//
// There is no no-op implementation; embed LoggingHook or write every method.
type Hook interface {
	PlayStarting(context.Context)
	PlayStarted(context.Context)
	PlayStopping(context.Context)
	PlayStopped(context.Context)
	PlayFailed(context.Context, []error)

	ActorStarting(context.Context, Actor)
	ActorStarted(context.Context, Actor)

	EventReceived(context.Context, Actor, event.Message)
	EventProcessed(context.Context, Actor, event.Message)
	EventProcessingFailed(context.Context, Actor, event.Message, error)
}

// LoggingHook logs every callback to logger, nil means slog.Default.
func LoggingHook(logger *slog.Logger) Hook {
	if logger == nil {
		logger = slog.Default()
	}
	return &loggingHook{logger: logger}
}

type loggingHook struct {
	logger *slog.Logger
}

func (h *loggingHook) PlayStarting(ctx context.Context) {
	h.logger.DebugContext(ctx, "play starting")
}

func (h *loggingHook) PlayStarted(ctx context.Context) {
	h.logger.InfoContext(ctx, "play started")
}

func (h *loggingHook) PlayStopping(ctx context.Context) {
	h.logger.DebugContext(ctx, "play stopping")
}

func (h *loggingHook) PlayStopped(ctx context.Context) {
	h.logger.InfoContext(ctx, "play stopped")
}

func (h *loggingHook) PlayFailed(ctx context.Context, errs []error) {
	attrs := make([]any, 0, len(errs))
	for _, err := range errs {
		attrs = append(attrs, slogx.Error(err))
	}
	h.logger.ErrorContext(ctx, "play failed", attrs...)
}

func (h *loggingHook) ActorStarting(ctx context.Context, actor Actor) {
	h.logger.DebugContext(ctx, "actor starting", slogx.Actor(actor))
}

func (h *loggingHook) ActorStarted(ctx context.Context, actor Actor) {
	h.logger.DebugContext(ctx, "actor started", slogx.Actor(actor))
}

func (h *loggingHook) EventReceived(ctx context.Context, actor Actor, msg event.Message) {
	h.logger.DebugContext(ctx, "event received", slogx.Actor(actor), slogx.Subject(msg.Subject))
}

func (h *loggingHook) EventProcessed(ctx context.Context, actor Actor, msg event.Message) {
	h.logger.DebugContext(ctx, "event processed", slogx.Actor(actor), slogx.Subject(msg.Subject))
}

func (h *loggingHook) EventProcessingFailed(ctx context.Context, actor Actor, msg event.Message, err error) {
	h.logger.WarnContext(ctx, "event processing failed", slogx.Actor(actor), slogx.Subject(msg.Subject), slogx.Error(err))
}

// CompositeHook calls each hook in order.
func CompositeHook(hooks ...Hook) Hook {
	return compositeHook(hooks)
}

type compositeHook []Hook

func (c compositeHook) PlayStarting(ctx context.Context) {
	for _, h := range c {
		h.PlayStarting(ctx)
	}
}

func (c compositeHook) PlayStarted(ctx context.Context) {
	for _, h := range c {
		h.PlayStarted(ctx)
	}
}

func (c compositeHook) PlayStopping(ctx context.Context) {
	for _, h := range c {
		h.PlayStopping(ctx)
	}
}

func (c compositeHook) PlayStopped(ctx context.Context) {
	for _, h := range c {
		h.PlayStopped(ctx)
	}
}

func (c compositeHook) PlayFailed(ctx context.Context, errs []error) {
	for _, h := range c {
		h.PlayFailed(ctx, errs)
	}
}

func (c compositeHook) ActorStarting(ctx context.Context, actor Actor) {
	for _, h := range c {
		h.ActorStarting(ctx, actor)
	}
}

func (c compositeHook) ActorStarted(ctx context.Context, actor Actor) {
	for _, h := range c {
		h.ActorStarted(ctx, actor)
	}
}

func (c compositeHook) EventReceived(ctx context.Context, actor Actor, msg event.Message) {
	for _, h := range c {
		h.EventReceived(ctx, actor, msg)
	}
}

func (c compositeHook) EventProcessed(ctx context.Context, actor Actor, msg event.Message) {
	for _, h := range c {
		h.EventProcessed(ctx, actor, msg)
	}
}

func (c compositeHook) EventProcessingFailed(ctx context.Context, actor Actor, msg event.Message, err error) {
	for _, h := range c {
		h.EventProcessingFailed(ctx, actor, msg, err)
	}
}
