package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/celebrum-campaigns/internal/config"
	"github.com/irfndi/celebrum-campaigns/internal/logging"
	"github.com/irfndi/celebrum-campaigns/internal/models"
	"github.com/irfndi/celebrum-campaigns/internal/utils"
)

var (
	// ErrSymbolMismatch is returned for a pattern addressed to another symbol.
	ErrSymbolMismatch = errors.New("pattern symbol does not match engine symbol")
	// ErrOutOfOrderPattern is returned for a pattern older than one already accepted.
	ErrOutOfOrderPattern = errors.New("pattern delivered out of order")
	// ErrCampaignNotFound is returned for an unknown campaign ID.
	ErrCampaignNotFound = errors.New("campaign not found")
	// ErrCampaignTerminal is returned when mutating a Failed or Completed campaign.
	ErrCampaignTerminal = errors.New("campaign is in a terminal state")
	// ErrInvalidTransition is returned for a lifecycle move the state machine forbids.
	ErrInvalidTransition = errors.New("invalid campaign state transition")
)

// campaignNamespace seeds deterministic campaign IDs.
var campaignNamespace = uuid.MustParse("5b0f3c2e-8d41-4a6b-9f1e-2c7a4d8e6b90")

// IDGenerator names a new campaign from its first pattern.
type IDGenerator func(symbol string, first models.PatternEnvelope) string

// DeterministicCampaignID derives a name-based UUID from the symbol and the
// first pattern, so replaying identical input yields identical IDs.
func DeterministicCampaignID(symbol string, first models.PatternEnvelope) string {
	key := fmt.Sprintf("%s|%d|%s", symbol, first.BarIndex, first.DetectedAt.UTC().Format(time.RFC3339Nano))
	return uuid.NewSHA1(campaignNamespace, []byte(key)).String()
}

// RandomCampaignID ignores its input and returns a random UUID.
func RandomCampaignID(string, models.PatternEnvelope) string {
	return uuid.New().String()
}

// EngineOption customizes a CampaignEngine
type EngineOption func(*CampaignEngine)

// WithIDGenerator replaces the deterministic campaign ID generator.
func WithIDGenerator(gen IDGenerator) EngineOption {
	return func(e *CampaignEngine) {
		if gen != nil {
			e.idGen = gen
		}
	}
}

// EngineStats counts lifecycle events since the engine was created
type EngineStats struct {
	PatternsSeen int64                            `json:"patterns_seen"`
	Created      int64                            `json:"created"`
	Extended     int64                            `json:"extended"`
	Rejected     map[models.RejectionReason]int64 `json:"rejected"`
	Expired      int64                            `json:"expired"`
	Dormant      int64                            `json:"dormant"`
	Completed    int64                            `json:"completed"`
	Invalidated  int64                            `json:"invalidated"`
}

// PortfolioHeat summarizes open risk against an account size
type PortfolioHeat struct {
	AccountSize     decimal.Decimal `json:"account_size"`
	TotalDollarRisk decimal.Decimal `json:"total_dollar_risk"`
	HeatPct         decimal.Decimal `json:"heat_pct"`
	HeatLimit       decimal.Decimal `json:"heat_limit"`
	MaxHeatPct      decimal.Decimal `json:"max_heat_pct"`
	FormingCount    int             `json:"forming_count"`
	ActiveCount     int             `json:"active_count"`
	DormantCount    int             `json:"dormant_count"`
}

// CampaignEngine fuses one symbol's pattern stream into campaigns. It owns its
// registry exclusively, performs no I/O and no locking: an engine must not be
// used from more than one goroutine without external synchronization.
type CampaignEngine struct {
	symbol string
	config config.CampaignConfig
	logger *logrus.Logger

	validator *SequenceValidator
	matcher   *TemporalWindowMatcher
	risk      *RiskBudgetEnforcer
	volume    *VolumeProfileAnalyzer
	scorer    *CampaignQualityScorer
	phases    *PhaseTracker
	sweeper   *ExpirationSweeper

	campaigns []*models.Campaign
	index     map[string]*models.Campaign
	lastSeen  *models.PatternEnvelope
	idGen     IDGenerator
	stats     EngineStats
}

// NewCampaignEngine creates a new campaign engine for symbol
func NewCampaignEngine(symbol string, cfg config.CampaignConfig, logger *logrus.Logger, opts ...EngineOption) (*CampaignEngine, error) {
	if symbol == "" {
		return nil, utils.NewValidationError("engine symbol is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid campaign configuration: %w", err)
	}
	if logger == nil {
		logger = logrus.New()
	}

	validator := NewSequenceValidator()
	e := &CampaignEngine{
		symbol:    symbol,
		config:    cfg,
		logger:    logger,
		validator: validator,
		matcher:   NewTemporalWindowMatcher(cfg, validator, logger),
		risk:      NewRiskBudgetEnforcer(cfg, logger),
		volume:    NewVolumeProfileAnalyzer(cfg, logger),
		scorer:    NewCampaignQualityScorer(validator, logger),
		phases:    NewPhaseTracker(logger),
		sweeper:   NewExpirationSweeper(cfg, logger),
		index:     make(map[string]*models.Campaign),
		idGen:     DeterministicCampaignID,
		stats:     EngineStats{Rejected: make(map[models.RejectionReason]int64)},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Symbol returns the symbol this engine serves.
func (e *CampaignEngine) Symbol() string {
	return e.symbol
}

// Config returns the engine's campaign configuration.
func (e *CampaignEngine) Config() config.CampaignConfig {
	return e.config
}

// AddPattern feeds one pattern through expiration, matching, risk, volume and
// scoring, then applies the resulting state transition.
//
// Programming errors (risk above the 2% ceiling, bad account size, malformed
// or out-of-order patterns, wrong symbol) return an error and leave the engine
// untouched. Business rejections return a result with OutcomeRejected.
func (e *CampaignEngine) AddPattern(p models.PatternEnvelope, accountSize, riskPct decimal.Decimal) (*models.AddResult, error) {
	if err := ValidateRiskPct(riskPct); err != nil {
		return nil, err
	}
	if err := ValidateAccountSize(accountSize); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}
	if p.Symbol != e.symbol {
		return nil, fmt.Errorf("%w: got %q, engine serves %q", ErrSymbolMismatch, p.Symbol, e.symbol)
	}
	if err := e.checkOrdering(p); err != nil {
		return nil, err
	}

	pattern := p.Clone()
	e.lastSeen = &pattern
	e.stats.PatternsSeen++

	e.sweep(pattern.DetectedAt)

	decision := e.matcher.Match(pattern, e.campaigns)
	if decision.Campaign != nil {
		return e.extend(decision.Campaign, pattern, accountSize, riskPct)
	}
	return e.create(pattern, decision, accountSize, riskPct)
}

// checkOrdering rejects a pattern that is older than the last accepted one
// or repeats its bar.
func (e *CampaignEngine) checkOrdering(p models.PatternEnvelope) error {
	if e.lastSeen == nil {
		return nil
	}
	last := e.lastSeen
	if p.DetectedAt.Before(last.DetectedAt) || p.BarIndex < last.BarIndex ||
		(p.DetectedAt.Equal(last.DetectedAt) && p.BarIndex == last.BarIndex) {
		return fmt.Errorf("%w: %s at %s (bar %d) after %s at %s (bar %d)",
			ErrOutOfOrderPattern,
			p.Kind.ShortCode(), p.DetectedAt.Format(time.RFC3339), p.BarIndex,
			last.Kind.ShortCode(), last.DetectedAt.Format(time.RFC3339), last.BarIndex)
	}
	return nil
}

func (e *CampaignEngine) create(p models.PatternEnvelope, match MatchDecision, accountSize, riskPct decimal.Decimal) (*models.AddResult, error) {
	if active := e.countState(models.CampaignStateActive); active >= e.config.MaxConcurrentCampaigns {
		reason := models.RejectionCampaignLimit
		detail := fmt.Sprintf("%d active campaigns at the limit of %d", active, e.config.MaxConcurrentCampaigns)
		if match.IllegalSuccessor {
			reason = models.RejectionIllegalSequence
			detail = fmt.Sprintf("no open campaign accepts %s and %s", p.Kind.ShortCode(), detail)
		}
		return e.reject(p, reason, detail), nil
	}

	candidate := &models.Campaign{
		ID:                e.idGen(e.symbol, p),
		Symbol:            e.symbol,
		CreatedAt:         p.DetectedAt,
		UpdatedAt:         p.DetectedAt,
		Patterns:          []models.PatternEnvelope{p},
		State:             models.CampaignStateForming,
		CurrentPhase:      models.PhaseUnknown,
		VolumeProfile:     models.VolumeProfileUnknown,
		EffortVsResult:    models.EffortResultUnknown,
		AbsorptionQuality: decimal.Zero,
		VolumeRatios:      []decimal.Decimal{p.VolumeRatio},
		StrengthScore:     decimal.Zero,
	}
	candidate.State = e.nextState(candidate)
	activating := candidate.State == models.CampaignStateActive

	e.risk.UpdateRiskLevels(candidate)
	riskDecision, err := e.risk.Evaluate(candidate, e.campaigns, accountSize, riskPct, activating)
	if err != nil {
		return nil, err
	}
	if !riskDecision.Approved {
		return e.reject(p, riskDecision.Reason, riskDecision.Detail), nil
	}

	e.risk.ApplySizing(candidate, riskDecision.Sizing)
	e.refreshSignals(candidate)
	e.phases.AdvanceFromPattern(candidate, p)

	e.campaigns = append(e.campaigns, candidate)
	e.index[candidate.ID] = candidate
	e.stats.Created++

	e.logger.WithFields(logging.CampaignFields(candidate)).
		WithFields(logging.PatternFields(p)).
		Info("Campaign created")

	return &models.AddResult{
		Outcome:  models.AddOutcomeCreated,
		Campaign: candidate.Clone(),
	}, nil
}

func (e *CampaignEngine) extend(c *models.Campaign, p models.PatternEnvelope, accountSize, riskPct decimal.Decimal) (*models.AddResult, error) {
	candidate := c.Clone()
	previous := c.State

	candidate.Patterns = append(candidate.Patterns, p)
	candidate.VolumeRatios = append(candidate.VolumeRatios, p.VolumeRatio)
	candidate.UpdatedAt = p.DetectedAt
	candidate.State = e.nextState(candidate)
	activating := candidate.State == models.CampaignStateActive && previous != models.CampaignStateActive

	e.risk.UpdateRiskLevels(candidate)
	riskDecision, err := e.risk.Evaluate(candidate, e.campaigns, accountSize, riskPct, activating)
	if err != nil {
		return nil, err
	}
	if !riskDecision.Approved {
		return e.reject(p, riskDecision.Reason, riskDecision.Detail), nil
	}

	e.risk.ApplySizing(candidate, riskDecision.Sizing)
	e.refreshSignals(candidate)
	e.phases.AdvanceFromPattern(candidate, p)

	*c = *candidate
	e.stats.Extended++

	entry := e.logger.WithFields(logging.CampaignFields(c)).WithFields(logging.PatternFields(p))
	if previous != c.State {
		entry.WithField("previous_state", previous).Info("Campaign state changed")
	} else {
		entry.Debug("Campaign extended")
	}

	return &models.AddResult{
		Outcome:  models.AddOutcomeExtended,
		Campaign: c.Clone(),
	}, nil
}

// nextState is Active once enough grammar-valid patterns accumulated, Forming
// before that. A Dormant campaign that receives a pattern resumes here.
func (e *CampaignEngine) nextState(c *models.Campaign) models.CampaignState {
	if c.State == models.CampaignStateActive || len(c.Patterns) >= e.config.MinPatternsForActive {
		return models.CampaignStateActive
	}
	return models.CampaignStateForming
}

// refreshSignals recomputes volume signals and the strength score.
func (e *CampaignEngine) refreshSignals(c *models.Campaign) {
	analysis := e.volume.Analyze(c)
	c.VolumeProfile = analysis.Profile
	c.EffortVsResult = analysis.EffortVsResult
	c.ClimaxDetected = analysis.ClimaxDetected
	c.AbsorptionQuality = analysis.AbsorptionQuality

	metrics := e.scorer.AssessCampaignQuality(c, analysis)
	c.StrengthScore = metrics.OverallScore
}

func (e *CampaignEngine) reject(p models.PatternEnvelope, reason models.RejectionReason, detail string) *models.AddResult {
	e.stats.Rejected[reason]++

	e.logger.WithFields(logging.PatternFields(p)).WithFields(logrus.Fields{
		"symbol": e.symbol,
		"reason": reason,
		"detail": detail,
	}).Info("Pattern rejected")

	return &models.AddResult{
		Outcome: models.AddOutcomeRejected,
		Reason:  reason,
		Detail:  detail,
	}
}

func (e *CampaignEngine) sweep(now time.Time) SweepResult {
	result := e.sweeper.Sweep(e.campaigns, now)
	e.stats.Expired += int64(len(result.Expired))
	e.stats.Dormant += int64(len(result.Dormant))
	return result
}

func (e *CampaignEngine) countState(state models.CampaignState) int {
	n := 0
	for _, c := range e.campaigns {
		if c.State == state {
			n++
		}
	}
	return n
}

// ExpireStaleCampaigns runs the expiration sweep at now and returns copies of
// the campaigns it failed.
func (e *CampaignEngine) ExpireStaleCampaigns(now time.Time) []*models.Campaign {
	result := e.sweep(now)
	expired := make([]*models.Campaign, 0, len(result.Expired))
	for _, c := range result.Expired {
		expired = append(expired, c.Clone())
	}
	return expired
}

// GetActiveCampaigns returns copies of every Forming and Active campaign in
// creation order.
func (e *CampaignEngine) GetActiveCampaigns() []*models.Campaign {
	active := make([]*models.Campaign, 0, len(e.campaigns))
	for _, c := range e.campaigns {
		if c.State.CountsTowardHeat() {
			active = append(active, c.Clone())
		}
	}
	return active
}

// Campaigns returns copies of every campaign in the registry, terminal ones included.
func (e *CampaignEngine) Campaigns() []*models.Campaign {
	all := make([]*models.Campaign, 0, len(e.campaigns))
	for _, c := range e.campaigns {
		all = append(all, c.Clone())
	}
	return all
}

// GetCampaign returns a copy of one campaign.
func (e *CampaignEngine) GetCampaign(id string) (*models.Campaign, bool) {
	c, ok := e.index[id]
	if !ok {
		return nil, false
	}
	return c.Clone(), true
}

func (e *CampaignEngine) mutable(id string) (*models.Campaign, error) {
	c, ok := e.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCampaignNotFound, id)
	}
	if c.State.IsTerminal() {
		return nil, fmt.Errorf("%w: %s is %s", ErrCampaignTerminal, id, c.State)
	}
	return c, nil
}

// UpdatePhase records an explicit phase, typically from a backtest driver
// that knows the true bar index.
func (e *CampaignEngine) UpdatePhase(campaignID string, phase models.WyckoffPhase, barIndex int64, at time.Time) error {
	if !phase.IsValid() {
		return utils.NewValidationErrorf("unknown wyckoff phase %q", phase)
	}
	c, err := e.mutable(campaignID)
	if err != nil {
		return err
	}

	e.phases.Record(c, phase, barIndex, at)
	c.UpdatedAt = at
	return nil
}

// CompleteCampaign closes an Active campaign at exitPrice. The exit decision
// is made by the caller; the engine only records it and the realized
// R-multiple.
func (e *CampaignEngine) CompleteCampaign(campaignID string, exitPrice decimal.Decimal, at time.Time) (*models.Campaign, error) {
	if !exitPrice.IsPositive() {
		return nil, utils.NewValidationErrorf("exit price must be positive, got %s", exitPrice)
	}
	c, err := e.mutable(campaignID)
	if err != nil {
		return nil, err
	}
	if c.State != models.CampaignStateActive {
		return nil, fmt.Errorf("%w: cannot complete a %s campaign", ErrInvalidTransition, c.State)
	}

	c.State = models.CampaignStateCompleted
	c.UpdatedAt = at
	completedAt := at
	c.CompletedAt = &completedAt
	exit := exitPrice
	c.ExitPrice = &exit
	if c.RiskPerShare.IsPositive() {
		r := exitPrice.Sub(c.EntryPrice).Div(c.RiskPerShare).Round(scorePrecision)
		c.RealizedRMultiple = &r
	}
	e.stats.Completed++

	e.logger.WithFields(logging.CampaignFields(c)).
		WithField("exit_price", exitPrice.String()).
		Info("Campaign completed")

	return c.Clone(), nil
}

// InvalidateCampaign fails a campaign explicitly, e.g. when price closes
// below support.
func (e *CampaignEngine) InvalidateCampaign(campaignID string, reason string, at time.Time) (*models.Campaign, error) {
	if reason == "" {
		return nil, utils.NewValidationError("invalidation reason is required")
	}
	c, err := e.mutable(campaignID)
	if err != nil {
		return nil, err
	}

	c.State = models.CampaignStateFailed
	c.FailureReason = reason
	c.UpdatedAt = at
	e.stats.Invalidated++

	e.logger.WithFields(logging.CampaignFields(c)).
		WithField("reason", reason).
		Warn("Campaign invalidated")

	return c.Clone(), nil
}

// PortfolioHeat reports open risk over Forming and Active campaigns.
func (e *CampaignEngine) PortfolioHeat(accountSize decimal.Decimal) (PortfolioHeat, error) {
	if err := ValidateAccountSize(accountSize); err != nil {
		return PortfolioHeat{}, err
	}

	total := e.risk.CurrentHeat(e.campaigns)
	heat := PortfolioHeat{
		AccountSize:     accountSize,
		TotalDollarRisk: total,
		HeatPct:         total.Div(accountSize).Mul(decimalHundred).Round(scorePrecision),
		HeatLimit:       e.risk.HeatLimit(accountSize),
		MaxHeatPct:      decimal.NewFromFloat(e.config.MaxPortfolioHeatPct),
		FormingCount:    e.countState(models.CampaignStateForming),
		ActiveCount:     e.countState(models.CampaignStateActive),
		DormantCount:    e.countState(models.CampaignStateDormant),
	}
	return heat, nil
}

// PruneTerminal evicts Failed and Completed campaigns last updated before
// cutoff and returns how many were removed. The retention policy belongs to
// the caller.
func (e *CampaignEngine) PruneTerminal(cutoff time.Time) int {
	kept := e.campaigns[:0]
	removed := 0
	for _, c := range e.campaigns {
		if c.State.IsTerminal() && c.UpdatedAt.Before(cutoff) {
			delete(e.index, c.ID)
			removed++
			continue
		}
		kept = append(kept, c)
	}
	for i := len(kept); i < len(e.campaigns); i++ {
		e.campaigns[i] = nil
	}
	e.campaigns = kept

	if removed > 0 {
		e.logger.WithFields(logrus.Fields{
			"symbol":  e.symbol,
			"removed": removed,
		}).Info("Pruned terminal campaigns")
	}
	return removed
}

// Stats returns a copy of the engine's lifecycle counters.
func (e *CampaignEngine) Stats() EngineStats {
	out := e.stats
	out.Rejected = make(map[models.RejectionReason]int64, len(e.stats.Rejected))
	for k, v := range e.stats.Rejected {
		out.Rejected[k] = v
	}
	return out
}
