package transport

import (
	"context"

	"github.com/chris-alexander-pop/gridswarm/pkg/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentedTransport wraps a Transport with logging and tracing.
type InstrumentedTransport struct {
	next   Transport
	tracer trace.Tracer
}

// NewInstrumentedTransport creates a new InstrumentedTransport wrapping next.
func NewInstrumentedTransport(next Transport) *InstrumentedTransport {
	return &InstrumentedTransport{
		next:   next,
		tracer: otel.Tracer("pkg/transport"),
	}
}

func (t *InstrumentedTransport) Publish(ctx context.Context, channel string, data []byte) error {
	ctx, span := t.tracer.Start(ctx, "transport.Publish", trace.WithAttributes(
		attribute.String("transport.channel", channel),
		attribute.Int("transport.bytes", len(data)),
	))
	defer span.End()

	err := t.next.Publish(ctx, channel, data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.L().ErrorContext(ctx, "publish failed", "channel", channel, "error", err)
		return err
	}
	return nil
}

func (t *InstrumentedTransport) Subscribe(ctx context.Context, pattern string, on OnMessage) (Handle, error) {
	logger.L().InfoContext(ctx, "subscribing", "pattern", pattern)
	h, err := t.next.Subscribe(ctx, pattern, on)
	if err != nil {
		logger.L().ErrorContext(ctx, "subscribe failed", "pattern", pattern, "error", err)
		return nil, err
	}
	return h, nil
}

func (t *InstrumentedTransport) Unsubscribe(ctx context.Context, h Handle) error {
	logger.L().InfoContext(ctx, "unsubscribing", "channel", h.Channel())
	return t.next.Unsubscribe(ctx, h)
}

func (t *InstrumentedTransport) KVGet(ctx context.Context, key string) ([]byte, error) {
	ctx, span := t.tracer.Start(ctx, "transport.KVGet", trace.WithAttributes(attribute.String("transport.key", key)))
	defer span.End()

	data, err := t.next.KVGet(ctx, key)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return data, nil
}

func (t *InstrumentedTransport) KVPut(ctx context.Context, key string, data []byte) error {
	ctx, span := t.tracer.Start(ctx, "transport.KVPut", trace.WithAttributes(attribute.String("transport.key", key)))
	defer span.End()

	err := t.next.KVPut(ctx, key, data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (t *InstrumentedTransport) KVDelete(ctx context.Context, key string) error {
	return t.next.KVDelete(ctx, key)
}

func (t *InstrumentedTransport) KVExists(ctx context.Context, key string) (bool, error) {
	return t.next.KVExists(ctx, key)
}

func (t *InstrumentedTransport) Healthy(ctx context.Context) bool {
	return t.next.Healthy(ctx)
}

func (t *InstrumentedTransport) Close() error {
	logger.L().Info("closing transport")
	return t.next.Close()
}
