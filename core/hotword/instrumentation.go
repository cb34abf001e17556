package hotword

import "go.opentelemetry.io/contrib/bridges/otelslog"

const scopeName = "github.com/koscakluka/ema-jarvis/core/hotword"

var logger = otelslog.NewLogger(scopeName)
