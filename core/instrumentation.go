package orchestration

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/memoir-voice/core"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)
)

var (
	turnsCompleted, _ = meter.Int64Counter("memoir_voice.turns.completed",
		metric.WithDescription("Turns delivered to the caller"))
	turnsFailed, _ = meter.Int64Counter("memoir_voice.turns.failed",
		metric.WithDescription("Turns that ended without a result"))
	turnsTimedOut, _ = meter.Int64Counter("memoir_voice.turns.timed_out",
		metric.WithDescription("Turns finalized without a completion from the provider"))
	reconnects, _ = meter.Int64Counter("memoir_voice.reconnects",
		metric.WithDescription("Reconnect attempts after a retryable transport error"))
	fragmentsReceived, _ = meter.Int64Counter("memoir_voice.fragments.received",
		metric.WithDescription("Fragments received from the provider"))
	turnDuration, _ = meter.Float64Histogram("memoir_voice.turn.duration",
		metric.WithDescription("Time from the start of a turn to its delivery"),
		metric.WithUnit("s"))
)
