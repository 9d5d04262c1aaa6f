package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"home-dispatch/internal/domain"
	"home-dispatch/internal/home"
	"home-dispatch/internal/telemetry"
)

const (
	DefaultResolverTimeout = 30 * time.Second
	notifyTimeout          = 10 * time.Second
)

const baseInstructions = `You are a smart home assistant. Use the provided functions to control the lights, the thermostat, the door locks and the music.

- Call one function for every change the user asks for, in the order they asked for it. Call the same function several times when several rooms are mentioned.
- If the user asks about the current state, call status.
- If the request has nothing to do with the home, do not call any function.
- Reply with one short, friendly sentence.`

// Dispatcher turns free text into ordered catalog operations applied to the
// store. It keeps no state between calls besides the store itself.
type Dispatcher struct {
	store     *home.Store
	catalog   *home.Catalog
	resolver  IntentResolver
	notifier  Notifier
	publisher StatePublisher
	timeout   time.Duration
	logger    *slog.Logger
	tracer    trace.Tracer
}

func NewDispatcher(store *home.Store, resolver IntentResolver, logger *slog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:    store,
		catalog:  home.NewCatalog(),
		resolver: resolver,
		notifier: &NoopNotifier{},
		timeout:  DefaultResolverTimeout,
		logger:   logger,
		tracer:   telemetry.Tracer(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) Catalog() *home.Catalog {
	return d.catalog
}

func (d *Dispatcher) Store() *home.Store {
	return d.store
}

// Handle processes one command without conversation history.
func (d *Dispatcher) Handle(ctx context.Context, text string) *Result {
	return d.handle(ctx, nil, text)
}

func (d *Dispatcher) handle(ctx context.Context, history []domain.Turn, text string) *Result {
	res := &Result{ID: uuid.NewString(), Input: text}
	logger := d.logger.With("dispatch_id", res.ID)

	ctx, span := d.tracer.Start(ctx, "dispatch", trace.WithAttributes(attribute.String("dispatch.id", res.ID)))
	defer span.End()

	text = strings.TrimSpace(text)
	if text == "" {
		res.Err = domain.ErrEmptyInput
		res.Snapshot = d.store.Snapshot()
		res.Status = res.Snapshot.String()
		telemetry.DispatchTotal.WithLabelValues("empty").Inc()
		return res
	}

	resolution, err := d.resolve(ctx, history, text)
	if err == nil && ctx.Err() != nil {
		err = fmt.Errorf("%w: %v", domain.ErrCancelled, ctx.Err())
	}
	if err != nil {
		res.Err = err
		res.Snapshot = d.store.Snapshot()
		res.Status = res.Snapshot.String()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, domain.ErrCancelled) {
			telemetry.DispatchTotal.WithLabelValues("cancelled").Inc()
			logger.Info("command cancelled before execution", "error", err)
		} else {
			telemetry.DispatchTotal.WithLabelValues("unavailable").Inc()
			logger.Error("resolving intent", "error", err)
		}
		return res
	}

	res.Reply = strings.TrimSpace(resolution.Reply)
	d.execute(ctx, logger, res, resolution.Actions)
	telemetry.DispatchTotal.WithLabelValues("ok").Inc()

	return res
}

// Apply runs actions directly, without consulting the intent resolver. It
// shares the batch, metrics and announcement path of Handle.
func (d *Dispatcher) Apply(ctx context.Context, actions ...domain.ActionRequest) *Result {
	res := &Result{ID: uuid.NewString()}
	logger := d.logger.With("dispatch_id", res.ID)

	ctx, span := d.tracer.Start(ctx, "apply", trace.WithAttributes(attribute.String("dispatch.id", res.ID)))
	defer span.End()

	d.execute(ctx, logger, res, actions)
	telemetry.DispatchTotal.WithLabelValues("direct").Inc()
	return res
}

func (d *Dispatcher) execute(ctx context.Context, logger *slog.Logger, res *Result, actions []domain.ActionRequest) {
	res.Outcomes = make([]domain.ActionOutcome, 0, len(actions))

	// The batch runs in one critical section and ignores cancellation from
	// here on, so a sequence is either applied in full or not started.
	res.Snapshot = d.store.Batch(func(ops home.Ops) {
		for _, action := range actions {
			msg, err := d.catalog.Invoke(ops, action)
			res.Outcomes = append(res.Outcomes, domain.ActionOutcome{Request: action, Message: msg, Err: err})
		}
	})
	res.Status = res.Snapshot.String()

	for _, o := range res.Outcomes {
		telemetry.ActionTotal.WithLabelValues(o.Request.Name, string(o.Status()), o.Reason()).Inc()
		if o.Err != nil {
			logger.Warn("action skipped", "operation", o.Request.Name, "reason", o.Reason(), "error", o.Err)
			continue
		}
		logger.Info("action applied", "operation", o.Request.Name, "result", o.Message)
	}

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Int("dispatch.actions", len(res.Outcomes)),
		attribute.Int("dispatch.applied", res.Applied()),
	)

	if res.Applied() > 0 {
		d.announce(ctx, logger, res)
	}
}

func (d *Dispatcher) resolve(ctx context.Context, history []domain.Turn, text string) (*domain.Resolution, error) {
	req := domain.ResolveRequest{
		Instructions: baseInstructions + "\n\nCurrent home state:\n" + d.store.Status(),
		Catalog:      d.catalog.Specs(),
		Text:         text,
		History:      history,
	}

	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	resolution, err := d.resolver.Resolve(callCtx, req)
	elapsed := time.Since(start)

	if err != nil {
		telemetry.ResolverDuration.WithLabelValues("error").Observe(elapsed.Seconds())
		switch {
		case errors.Is(ctx.Err(), context.Canceled):
			return nil, fmt.Errorf("%w: %v", domain.ErrCancelled, err)
		case errors.Is(callCtx.Err(), context.DeadlineExceeded):
			return nil, fmt.Errorf("%w: timed out after %s", domain.ErrResolverUnavailable, d.timeout)
		default:
			return nil, fmt.Errorf("%w: %v", domain.ErrResolverUnavailable, err)
		}
	}
	telemetry.ResolverDuration.WithLabelValues("ok").Observe(elapsed.Seconds())

	if resolution == nil {
		resolution = &domain.Resolution{}
	}
	return resolution, nil
}

// announce forwards the outcome to notifiers and the state publisher.
// Their failures never change the result.
func (d *Dispatcher) announce(ctx context.Context, logger *slog.Logger, res *Result) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	if err := d.notifier.Notify(ctx, res.Summary()); err != nil {
		logger.Error("notifying result", "error", err)
	}
	if d.publisher != nil {
		if err := d.publisher.PublishState(ctx, res.Snapshot); err != nil {
			logger.Error("publishing state", "error", err)
		}
	}
}
