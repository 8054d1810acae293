package auth

import (
	"time"

	"go.uber.org/zap"
)

// Recorder receives every gate decision. Implementations must be
// fire-and-forget: they never block and never fail the authentication
// decision.
type Recorder interface {
	// AuthEvent records a successful authentication.
	AuthEvent(subjectID int, remoteAddr string, elapsed time.Duration)

	// SecurityEvent records a rejected authentication with enough
	// context for incident review. tokenPrefix is pre-redacted.
	SecurityEvent(kind ErrorKind, remoteAddr, tokenPrefix string)
}

// ZapRecorder writes audit events through a zap logger.
type ZapRecorder struct {
	logger *zap.Logger
}

func NewZapRecorder(logger *zap.Logger) *ZapRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapRecorder{logger: logger}
}

func (r *ZapRecorder) AuthEvent(subjectID int, remoteAddr string, elapsed time.Duration) {
	r.logger.Info("authentication succeeded",
		zap.Int("subject_id", subjectID),
		zap.String("remote_addr", remoteAddr),
		zap.Duration("elapsed", elapsed),
	)
}

func (r *ZapRecorder) SecurityEvent(kind ErrorKind, remoteAddr, tokenPrefix string) {
	r.logger.Warn("authentication rejected",
		zap.String("reason", string(kind)),
		zap.String("remote_addr", remoteAddr),
		zap.String("token_prefix", tokenPrefix),
	)
}

// RedactToken keeps only a short prefix of the presented token so
// security events are reviewable without logging a usable credential.
func RedactToken(token string) string {
	const keep = 8
	if len(token) <= keep {
		return token
	}
	return token[:keep] + "..."
}
