package replay

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/celebrum-campaigns/internal/config"
	"github.com/irfndi/celebrum-campaigns/internal/logging"
	"github.com/irfndi/celebrum-campaigns/internal/models"
	"github.com/irfndi/celebrum-campaigns/internal/services"
)

// maxLineBytes bounds one JSON-lines record.
const maxLineBytes = 1 << 20

// SymbolReport is the end state of one symbol's engine
type SymbolReport struct {
	Symbol    string                 `json:"symbol"`
	Campaigns []*models.Campaign     `json:"campaigns"`
	Heat      services.PortfolioHeat `json:"heat"`
	Stats     services.EngineStats   `json:"stats"`
}

// Report summarizes a replay run
type Report struct {
	PatternsRead int                            `json:"patterns_read"`
	Skipped      int                            `json:"skipped"`
	Accepted     int                            `json:"accepted"`
	Rejected     map[models.RejectionReason]int `json:"rejected"`
	Symbols      []SymbolReport                 `json:"symbols"`
}

// Runner feeds a recorded pattern stream through one CampaignEngine per symbol.
type Runner struct {
	cfg         *config.Config
	logger      *logrus.Logger
	accountSize decimal.Decimal
	riskPct     decimal.Decimal
	engines     map[string]*services.CampaignEngine
}

// NewRunner creates a new replay runner
func NewRunner(cfg *config.Config, logger *logrus.Logger) (*Runner, error) {
	accountSize := decimal.NewFromFloat(cfg.Risk.AccountSize)
	if err := services.ValidateAccountSize(accountSize); err != nil {
		return nil, err
	}
	riskPct := decimal.NewFromFloat(cfg.Risk.RiskPctPerTrade)
	if err := services.ValidateRiskPct(riskPct); err != nil {
		return nil, err
	}

	return &Runner{
		cfg:         cfg,
		logger:      logger,
		accountSize: accountSize,
		riskPct:     riskPct,
		engines:     make(map[string]*services.CampaignEngine),
	}, nil
}

// Run reads JSON-lines pattern envelopes from in until EOF or ctx is done.
// Blank lines and lines starting with # are ignored. When a replay symbol is
// configured, patterns for other symbols are skipped.
func (r *Runner) Run(ctx context.Context, in io.Reader) (*Report, error) {
	report := &Report{Rejected: make(map[models.RejectionReason]int)}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	lineNo := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		lineNo++

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var p models.PatternEnvelope
		if err := json.Unmarshal([]byte(line), &p); err != nil {
			return nil, fmt.Errorf("line %d: failed to decode pattern: %w", lineNo, err)
		}
		report.PatternsRead++

		if r.cfg.Replay.Symbol != "" && !strings.EqualFold(p.Symbol, r.cfg.Replay.Symbol) {
			report.Skipped++
			continue
		}

		engine, err := r.engineFor(p.Symbol)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}

		result, err := engine.AddPattern(p, r.accountSize, r.riskPct)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if result.Accepted() {
			report.Accepted++
		} else {
			report.Rejected[result.Reason]++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read patterns: %w", err)
	}

	symbols := make([]string, 0, len(r.engines))
	for symbol := range r.engines {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	for _, symbol := range symbols {
		engine := r.engines[symbol]
		heat, err := engine.PortfolioHeat(r.accountSize)
		if err != nil {
			return nil, err
		}
		report.Symbols = append(report.Symbols, SymbolReport{
			Symbol:    symbol,
			Campaigns: engine.Campaigns(),
			Heat:      heat,
			Stats:     engine.Stats(),
		})
	}

	r.logger.WithFields(logrus.Fields{
		"patterns": report.PatternsRead,
		"accepted": report.Accepted,
		"skipped":  report.Skipped,
		"symbols":  len(symbols),
	}).Info("Replay finished")

	return report, nil
}

func (r *Runner) engineFor(symbol string) (*services.CampaignEngine, error) {
	if engine, ok := r.engines[symbol]; ok {
		return engine, nil
	}

	engine, err := services.NewCampaignEngine(symbol, r.cfg.Campaign, r.logger)
	if err != nil {
		return nil, err
	}
	r.engines[symbol] = engine

	logging.WithComponent(r.logger, "replay", symbol).WithFields(logrus.Fields{
		"timeframe": r.cfg.Campaign.Timeframe,
		"profile":   r.cfg.Campaign.Profile,
	}).Debug("Started campaign engine")

	return engine, nil
}

// WriteReport prints a human readable table of every campaign.
func WriteReport(out io.Writer, report *Report) error {
	fmt.Fprintf(out, "patterns read: %d  accepted: %d  skipped: %d\n",
		report.PatternsRead, report.Accepted, report.Skipped)

	reasons := make([]string, 0, len(report.Rejected))
	for reason := range report.Rejected {
		reasons = append(reasons, string(reason))
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		fmt.Fprintf(out, "rejected %s: %d\n", reason, report.Rejected[models.RejectionReason(reason)])
	}

	for _, sr := range report.Symbols {
		fmt.Fprintf(out, "\n%s  heat %s%% of %s%% (%s / %s)\n",
			sr.Symbol,
			sr.Heat.HeatPct.StringFixed(2), sr.Heat.MaxHeatPct.StringFixed(2),
			sr.Heat.TotalDollarRisk.StringFixed(2), sr.Heat.HeatLimit.StringFixed(2))

		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tSTATE\tPHASE\tPATTERNS\tSUPPORT\tENTRY\tSIZE\tRISK\tSTRENGTH")
		for _, c := range sr.Campaigns {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				shortID(c.ID), c.State, c.CurrentPhase, describePatterns(c),
				c.SupportLevel.StringFixed(2), c.EntryPrice.StringFixed(2),
				c.PositionSize.String(), c.DollarRisk.StringFixed(2), c.StrengthScore.StringFixed(4))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func describePatterns(c *models.Campaign) string {
	names := make([]string, len(c.Patterns))
	for i, p := range c.Patterns {
		names[i] = p.Kind.DisplayName()
	}
	return strings.Join(names, " > ")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
