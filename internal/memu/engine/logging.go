package engine

import (
	"os"

	"github.com/rs/zerolog"
)

// newLogger builds the default zerolog logger at level, matching the
// ambient logging stack used throughout the rest of the pack rather than
// the teacher's own logrus setup (SPEC_FULL.md's ambient-stack section
// names zerolog as this module's structured-logging library).
func newLogger(level string) *zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	l := zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
	return &l
}
