package realtime

import "go.opentelemetry.io/contrib/bridges/otelslog"

const scopeName = "github.com/koscakluka/memoir-voice/core/realtime"

var logger = otelslog.NewLogger(scopeName)
