package llm

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/archpal/coaching-platform/pkg/metrics"
)

type instrumented struct {
	Client
	tracer trace.Tracer
}

// Instrument wraps client with Prometheus metrics and OpenTelemetry spans.
func Instrument(client Client) Client {
	return &instrumented{
		Client: client,
		tracer: otel.Tracer("github.com/archpal/coaching-platform/internal/llm"),
	}
}

func (c *instrumented) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	ctx, span := c.start(ctx, "llm.complete", req)
	defer span.End()

	start := time.Now()
	resp, err := c.Client.Complete(ctx, req)
	c.record(span, req, "sync", start, resp, err)
	return resp, err
}

func (c *instrumented) CompleteStream(ctx context.Context, req *CompletionRequest, callback StreamCallback) (*CompletionResponse, error) {
	ctx, span := c.start(ctx, "llm.complete_stream", req)
	defer span.End()

	start := time.Now()
	resp, err := c.Client.CompleteStream(ctx, req, callback)
	c.record(span, req, "stream", start, resp, err)
	return resp, err
}

func (c *instrumented) start(ctx context.Context, name string, req *CompletionRequest) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("llm.provider", c.Name()),
		attribute.String("llm.model", req.Model),
		attribute.Int("llm.messages", len(req.Messages)),
	))
}

func (c *instrumented) record(span trace.Span, req *CompletionRequest, mode string, start time.Time, resp *CompletionResponse, err error) {
	status := "success"
	var tokensIn, tokensOut int
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if resp != nil {
		tokensIn, tokensOut = resp.TokensIn, resp.TokensOut
		span.SetAttributes(
			attribute.Int("llm.tokens_in", tokensIn),
			attribute.Int("llm.tokens_out", tokensOut),
			attribute.String("llm.stop_reason", resp.StopReason),
		)
	}
	metrics.RecordLLMRequest(req.Model, mode, status, time.Since(start).Seconds(), tokensIn, tokensOut)
}
