package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/irfndi/celebrum-campaigns/internal/models"
)

// NewLogger builds the logrus logger shared by every service. Development
// output is human readable; every other environment logs JSON.
func NewLogger(logLevel string, environment string) *logrus.Logger {
	return NewLoggerWithOutput(logLevel, environment, os.Stdout)
}

// NewLoggerWithOutput is NewLogger writing to out.
func NewLoggerWithOutput(logLevel string, environment string, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(ParseLogrusLevel(logLevel))

	if strings.EqualFold(environment, "development") {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	}

	return logger
}

// ParseLogrusLevel converts string level to logrus.Level
func ParseLogrusLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// WithComponent creates a logger entry with component context
func WithComponent(logger *logrus.Logger, component string, symbol string) *logrus.Entry {
	return logger.WithFields(logrus.Fields{
		"component": component,
		"symbol":    symbol,
	})
}

// CampaignFields returns the fields every campaign log line carries.
func CampaignFields(c *models.Campaign) logrus.Fields {
	if c == nil {
		return logrus.Fields{}
	}
	return logrus.Fields{
		"campaign_id":    c.ID,
		"state":          c.State,
		"phase":          c.CurrentPhase,
		"pattern_count":  len(c.Patterns),
		"dollar_risk":    c.DollarRisk.String(),
		"position_size":  c.PositionSize.String(),
		"strength_score": c.StrengthScore.String(),
	}
}

// PatternFields returns the fields identifying one pattern.
func PatternFields(p models.PatternEnvelope) logrus.Fields {
	return logrus.Fields{
		"pattern_kind": p.Kind.ShortCode(),
		"bar_index":    p.BarIndex,
		"detected_at":  p.DetectedAt,
		"price":        p.Price.String(),
		"volume_ratio": p.VolumeRatio.String(),
	}
}
