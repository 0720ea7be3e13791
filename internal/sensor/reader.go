package sensor

import (
	"context"
	"fmt"
	"time"

	"smartfan/internal/logger"
)

// Querier returns the raw sensor report of the BMC.
type Querier interface {
	QuerySensors(ctx context.Context) (string, error)
}

// Reading is the outcome of one successful sample.
type Reading struct {
	Temperature float64
	CPUCount    int
	Samples     []Sample
	ParseErrors []*ParseError
	Timestamp   time.Time
}

// Reader samples CPU temperatures through a Querier.
type Reader struct {
	querier Querier
	now     func() time.Time
}

// NewReader creates a Reader.
func NewReader(q Querier) *Reader {
	return &Reader{querier: q, now: time.Now}
}

// Sample queries the sensors once and returns the hottest CPU reading with
// the detected socket count. It returns ErrNoData when the report carries no
// readings, or the collaborator error when the query itself failed. There is
// no retry; the next cycle tries again.
func (r *Reader) Sample(ctx context.Context) (*Reading, error) {
	log := logger.WithComponent("sensor")

	text, err := r.querier.QuerySensors(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Error executing sensor query")
		return nil, fmt.Errorf("query sensors: %w", err)
	}

	report := ParseReport(text)
	for _, perr := range report.Errors {
		ev := log.Warn()
		if perr.Reason == reasonNoNumber {
			ev = log.Debug()
		}
		ev.Str("line", perr.Line).Str("reason", perr.Reason).Msg("Skipping sensor line")
	}

	for _, s := range report.Samples {
		switch {
		case !s.Available:
			log.Info().Str("sensor", s.Label).Msg("The system is off, temperature is na")
		case s.AboveCritical():
			log.Warn().
				Str("sensor", s.Label).
				Float64("temperature", s.Value).
				Float64("upper_critical", *s.Thresholds.UpperCritical).
				Msg("CPU temperature above upper critical threshold")
		}
	}

	hottest, ok := report.Max()
	if !ok {
		log.Warn().Msg("No temperature data found")
		return nil, ErrNoData
	}

	log.Debug().
		Float64("temperature", hottest).
		Int("cpu_count", report.CPUCount).
		Int("samples", len(report.Samples)).
		Msg("Sensors sampled")

	return &Reading{
		Temperature: hottest,
		CPUCount:    report.CPUCount,
		Samples:     report.Samples,
		ParseErrors: report.Errors,
		Timestamp:   r.now(),
	}, nil
}
