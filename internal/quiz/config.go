package quiz

import (
	"fmt"
	"time"
)

// Mode selects how a session behaves. It never changes during a session.
type Mode string

const (
	// Practice is untimed, resumable and reveals each answer.
	Practice Mode = "practice"
	// Exam is timed, never resumed and scored for pass/fail.
	Exam Mode = "exam"
)

// ParseMode accepts "practice" or "exam".
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case Practice, Exam:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown quiz mode %q", s)
}

// Config holds the session sizing and scoring constants.
type Config struct {
	ExamSizeMain        int           // questions drawn for a main-topic exam
	ExamSizeEndorsement int           // questions drawn for an endorsement exam
	MixedSize           int           // cap when no topic is chosen
	ExamDuration        time.Duration // exam countdown length
	PassThreshold       float64       // completion percentage needed to pass
}

// DefaultConfig returns the standard constants.
func DefaultConfig() Config {
	return Config{
		ExamSizeMain:        50,
		ExamSizeEndorsement: 20,
		MixedSize:           10,
		ExamDuration:        time.Hour,
		PassThreshold:       80,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ExamSizeMain <= 0 {
		c.ExamSizeMain = d.ExamSizeMain
	}
	if c.ExamSizeEndorsement <= 0 {
		c.ExamSizeEndorsement = d.ExamSizeEndorsement
	}
	if c.MixedSize <= 0 {
		c.MixedSize = d.MixedSize
	}
	if c.ExamDuration <= 0 {
		c.ExamDuration = d.ExamDuration
	}
	if c.PassThreshold <= 0 {
		c.PassThreshold = d.PassThreshold
	}
	return c
}
