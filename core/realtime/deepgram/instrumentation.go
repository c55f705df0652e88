package deepgram

import "go.opentelemetry.io/otel"

const scopeName = "github.com/koscakluka/memoir-voice/core/realtime/deepgram"

var tracer = otel.Tracer(scopeName)
