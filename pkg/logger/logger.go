// pkg/logger/logger.go
package logger

import (
	"go.uber.org/zap"
)

type Sugared = *zap.SugaredLogger

func New(env string) Sugared {
	var z *zap.Logger
	if env == "prod" {
		z, _ = zap.NewProduction()
	} else {
		z, _ = zap.NewDevelopment()
	}
	return z.Sugar()
}

// Redact shortens a secret for log output. Tokens and signing secrets must
// never appear whole in logs.
func Redact(secret string) string {
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:4] + "…" + secret[len(secret)-2:]
}
