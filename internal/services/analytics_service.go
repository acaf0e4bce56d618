package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"futurescli/internal/bars"
	"futurescli/internal/config"
	"futurescli/internal/constmaturity"
	"futurescli/internal/continuous"
	apierrors "futurescli/internal/errors"
	"futurescli/internal/infrastructure"
	"futurescli/internal/marketdata"
	"futurescli/internal/options"
	"futurescli/internal/rollspec"
	"futurescli/internal/session"
	"futurescli/pkg/contracts/domain"
)

// MarketData is the historical data source used when a request does not
// carry its own data. *marketdata.Client implements it.
type MarketData interface {
	Definitions(ctx context.Context, symbols []string, stype string, start, end time.Time) ([]domain.InstrumentDefinition, error)
	ResolveSymbology(ctx context.Context, req marketdata.SymbologyRequest) (map[string][]domain.RollSegment, error)
	Frame(ctx context.Context, schema string, symbols []string, stype string, start, end time.Time, columns []string) (domain.Frame, error)
	Trades(ctx context.Context, symbols []string, start, end time.Time) ([]domain.Trade, error)
	LegsOn(ctx context.Context, date domain.Date, parent string) (marketdata.Legs, error)
	OptionsChain(ctx context.Context, parent string, start time.Time, underlying string, classes []domain.InstrumentClass, daysPerYear float64) ([]options.Contract, error)
	TopOfBook(ctx context.Context, symbols []string, start, end time.Time) (map[string]domain.Quote, error)
}

// Validator validates request DTOs by their struct tags.
type Validator interface {
	ValidateStruct(v interface{}) error
}

// Unadjusted is the continuous "method" that concatenates raw prices.
const Unadjusted = "unadjusted"

// ContinuousMethods lists every method Continuous accepts.
var ContinuousMethods = []string{string(continuous.Additive), string(continuous.Multiplicative), Unadjusted}

// AnalyticsService runs the futures analytics with validation, tracing,
// metrics and logging around each call.
type AnalyticsService struct {
	source    MarketData
	validator Validator
	metrics   *infrastructure.BusinessMetrics
	cfg       config.AnalyticsConfig
	logger    *slog.Logger
	solver    *options.VolSolver
}

// NewAnalyticsService wires the service. source may be nil, in which case
// only requests carrying their own data succeed. validator and metrics may
// be nil as well.
func NewAnalyticsService(source MarketData, validator Validator, metrics *infrastructure.BusinessMetrics, cfg config.AnalyticsConfig, logger *slog.Logger) *AnalyticsService {
	if logger == nil {
		logger = slog.Default()
	}
	logger = infrastructure.WithComponent(logger, "analytics_service")
	if cfg.DaysPerYear <= 0 {
		cfg.DaysPerYear = options.DefaultDaysPerYear
	}

	logger.Info("AnalyticsService initialized",
		slog.Bool("market_data", source != nil),
		slog.String("adjust_by", cfg.AdjustBy),
		slog.Float64("risk_free_rate", cfg.RiskFreeRate))

	return &AnalyticsService{
		source:    source,
		validator: validator,
		metrics:   metrics,
		cfg:       cfg,
		logger:    logger,
		solver:    options.NewVolSolver(logger),
	}
}

// HasSource reports whether requests can fall back to fetched data.
func (s *AnalyticsService) HasSource() bool {
	return s.source != nil
}

// operation tracks one service call.
type operation struct {
	svc     *AnalyticsService
	name    string
	ctx     context.Context
	span    trace.Span
	logger  *slog.Logger
	started time.Time
}

func (s *AnalyticsService) begin(ctx context.Context, name string, attrs ...attribute.KeyValue) *operation {
	ctx, span := infrastructure.StartSpan(ctx, "analytics."+name, attrs...)

	// Span attributes such as the symbol are repeated on the log lines.
	logAttrs := make([]any, 0, len(attrs)+1)
	logAttrs = append(logAttrs, slog.String("operation", name))
	for _, kv := range attrs {
		logAttrs = append(logAttrs, slog.Any(string(kv.Key), kv.Value.AsInterface()))
	}

	return &operation{
		svc:     s,
		name:    name,
		ctx:     ctx,
		span:    span,
		logger:  s.logger.With(logAttrs...),
		started: time.Now(),
	}
}

// end closes the span, records metrics and returns err classified for the
// error handler.
func (o *operation) end(rows int, err error) error {
	defer o.span.End()

	err = classify(o.name, err)
	elapsed := time.Since(o.started)
	o.svc.metrics.RecordOperation(o.ctx, o.name, elapsed, rows, err)

	if err != nil {
		infrastructure.RecordError(o.ctx, err)
		o.logger.WarnContext(o.ctx, "analytics operation failed",
			slog.Duration("duration", elapsed),
			slog.String("error", err.Error()))
		return err
	}

	o.span.SetAttributes(attribute.Int("rows", rows))
	o.logger.InfoContext(o.ctx, "analytics operation completed",
		slog.Int("rows", rows),
		slog.Duration("duration", elapsed))
	return nil
}

func (s *AnalyticsService) validate(req interface{}) error {
	if s.validator == nil {
		return nil
	}
	return s.validator.ValidateStruct(req)
}

func (s *AnalyticsService) requireSource() error {
	if s.source == nil {
		return ErrNoSource
	}
	return nil
}

// parseRange parses [start, end) and rejects empty ranges.
func parseRange(start, end string) (domain.Date, domain.Date, error) {
	d0, err := domain.ParseDate(start)
	if err != nil {
		return domain.Date{}, domain.Date{}, apierrors.NewAppValidationError("invalid start date", err)
	}
	d1, err := domain.ParseDate(end)
	if err != nil {
		return domain.Date{}, domain.Date{}, apierrors.NewAppValidationError("invalid end date", err)
	}
	if !d1.After(d0) {
		return domain.Date{}, domain.Date{}, fmt.Errorf("%s..%s: %w", d0, d1, rollspec.ErrInvalidRange)
	}
	return d0, d1, nil
}

func idSymbols(ids []uint32) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = strconv.FormatUint(uint64(id), 10)
	}
	return out
}

// futuresDefinitions fetches the definitions of every future of root
// published over [start, end).
func (s *AnalyticsService) futuresDefinitions(ctx context.Context, root string, start, end domain.Date) ([]domain.InstrumentDefinition, error) {
	if err := s.requireSource(); err != nil {
		return nil, err
	}
	defs, err := s.source.Definitions(ctx, []string{root + ".FUT"}, marketdata.STypeParent, start.In(time.UTC), end.In(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("definitions of %s: %w", root, err)
	}
	s.logger.DebugContext(ctx, "definitions fetched",
		slog.String("root", root),
		slog.Int("count", len(defs)))
	return defs, nil
}

// RollSpec builds the constant-maturity roll schedule of req.Symbol.
func (s *AnalyticsService) RollSpec(ctx context.Context, req RollSpecRequest) (*RollSpecResult, error) {
	op := s.begin(ctx, "rollspec", attribute.String("symbol", req.Symbol))
	res, err := s.rollSpec(op.ctx, req)
	if err != nil {
		return nil, op.end(0, err)
	}
	return res, op.end(len(res.Windows), nil)
}

func (s *AnalyticsService) rollSpec(ctx context.Context, req RollSpecRequest) (*RollSpecResult, error) {
	if err := s.validate(&req); err != nil {
		return nil, err
	}
	sym, err := rollspec.ParseSymbol(req.Symbol)
	if err != nil {
		return nil, err
	}
	start, end, err := parseRange(req.Start, req.End)
	if err != nil {
		return nil, err
	}

	defs := req.Definitions
	if len(defs) == 0 {
		if defs, err = s.futuresDefinitions(ctx, sym.Root, start, end); err != nil {
			return nil, err
		}
	}

	windows, err := rollspec.Build(sym.String(), defs, start, end, rollspec.Options{MatchRoot: req.MatchRoot})
	if err != nil {
		return nil, err
	}
	return &RollSpecResult{
		Symbol:      sym.String(),
		Windows:     windows,
		Instruments: rollspec.Instruments(windows),
	}, nil
}

// Continuous splices a continuous futures series with method "additive",
// "multiplicative" or "unadjusted".
func (s *AnalyticsService) Continuous(ctx context.Context, method string, req ContinuousRequest) (*ContinuousResult, error) {
	op := s.begin(ctx, "continuous",
		attribute.String("symbol", req.Symbol),
		attribute.String("method", method))
	res, err := s.continuous(op.ctx, method, req)
	if err != nil {
		return nil, op.end(0, err)
	}
	return res, op.end(len(res.Frame.Rows), nil)
}

func (s *AnalyticsService) continuous(ctx context.Context, method string, req ContinuousRequest) (*ContinuousResult, error) {
	if err := s.validate(&req); err != nil {
		return nil, err
	}
	var m continuous.Method
	if method != Unadjusted {
		parsed, err := continuous.ParseMethod(method)
		if err != nil {
			return nil, err
		}
		m = parsed
	}
	start, end, err := parseRange(req.Start, req.End)
	if err != nil {
		return nil, err
	}

	segments := req.Segments
	if len(segments) == 0 {
		if err := s.requireSource(); err != nil {
			return nil, err
		}
		resolved, err := s.source.ResolveSymbology(ctx, marketdata.SymbologyRequest{
			Symbols:  []string{req.Symbol},
			STypeIn:  marketdata.STypeContinuous,
			STypeOut: marketdata.STypeInstrumentID,
			Start:    start,
			End:      end,
		})
		if err != nil {
			return nil, err
		}
		segments = resolved[req.Symbol]
		if len(segments) == 0 {
			return nil, fmt.Errorf("roll segments of %s: %w", req.Symbol, ErrNoData)
		}
	}

	var frame domain.Frame
	if req.Frame != nil {
		frame = *req.Frame
	} else {
		if err := s.requireSource(); err != nil {
			return nil, err
		}
		schema := req.Schema
		if schema == "" {
			schema = marketdata.SchemaOHLCV1D
		}
		ids := make([]uint32, 0, len(segments))
		seen := make(map[uint32]bool)
		for _, seg := range segments {
			if !seen[seg.InstrumentID] {
				seen[seg.InstrumentID] = true
				ids = append(ids, seg.InstrumentID)
			}
		}
		frame, err = s.source.Frame(ctx, schema, idSymbols(ids), marketdata.STypeInstrumentID, start.In(time.UTC), end.In(time.UTC), nil)
		if err != nil {
			return nil, err
		}
	}
	if len(frame.Rows) == 0 {
		return nil, fmt.Errorf("prices of %s: %w", req.Symbol, ErrNoData)
	}

	var out domain.Frame
	if method == Unadjusted {
		out, err = continuous.Unadjusted(segments, frame)
	} else {
		adjustBy := req.AdjustBy
		if adjustBy == "" {
			adjustBy = s.cfg.AdjustBy
		}
		out, err = continuous.Splice(m, segments, frame, continuous.Options{
			AdjustBy:       adjustBy,
			AdjustmentCols: req.AdjustmentCols,
		})
	}
	if err != nil {
		return nil, err
	}
	return &ContinuousResult{Symbol: req.Symbol, Method: method, Segments: segments, Frame: out}, nil
}

// ConstantMaturity blends the contracts bracketing req.Symbol's maturity
// into one series.
func (s *AnalyticsService) ConstantMaturity(ctx context.Context, req ConstantMaturityRequest) (*ConstantMaturityResult, error) {
	op := s.begin(ctx, "constant_maturity", attribute.String("symbol", req.Symbol))
	res, err := s.constantMaturity(op.ctx, req)
	if err != nil {
		return nil, op.end(0, err)
	}
	return res, op.end(len(res.Points), nil)
}

func (s *AnalyticsService) constantMaturity(ctx context.Context, req ConstantMaturityRequest) (*ConstantMaturityResult, error) {
	if err := s.validate(&req); err != nil {
		return nil, err
	}
	sym, err := rollspec.ParseSymbol(req.Symbol)
	if err != nil {
		return nil, err
	}
	start, end, err := parseRange(req.Start, req.End)
	if err != nil {
		return nil, err
	}
	column := req.Column
	if column == "" {
		column = s.cfg.AdjustBy
	}

	// Supplied prices carry their expirations; everything else needs the
	// definitions.
	defs := req.Definitions
	if len(defs) == 0 && (len(req.Windows) == 0 || len(req.Prices) == 0) {
		if defs, err = s.futuresDefinitions(ctx, sym.Root, start, end); err != nil {
			return nil, err
		}
	}

	windows := req.Windows
	if len(windows) == 0 {
		windows, err = rollspec.Build(sym.String(), defs, start, end, rollspec.Options{MatchRoot: req.MatchRoot})
		if err != nil {
			return nil, err
		}
	}
	if len(windows) == 0 {
		return nil, fmt.Errorf("no contracts bracket %s: %w", sym, ErrNoData)
	}

	prices := req.Prices
	if len(prices) == 0 {
		if err := s.requireSource(); err != nil {
			return nil, err
		}
		schema := req.Schema
		if schema == "" {
			schema = marketdata.SchemaOHLCV1D
		}
		frame, err := s.source.Frame(ctx, schema, idSymbols(rollspec.Instruments(windows)),
			marketdata.STypeInstrumentID, start.In(time.UTC), end.In(time.UTC), []string{column})
		if err != nil {
			return nil, err
		}
		prices, err = constmaturity.PricesFromFrame(frame, column, constmaturity.Expirations(defs))
		if err != nil {
			return nil, err
		}
	}

	points, err := constmaturity.Splice(sym.String(), windows, prices)
	if err != nil {
		return nil, err
	}
	return &ConstantMaturityResult{Symbol: sym.String(), Windows: windows, Points: points}, nil
}

// Bars aggregates trades into OHLCV bars.
func (s *AnalyticsService) Bars(ctx context.Context, req BarsRequest) (*BarsResult, error) {
	op := s.begin(ctx, "bars", attribute.StringSlice("symbols", req.Symbols))
	res, err := s.bars(op.ctx, req)
	if err != nil {
		return nil, op.end(0, err)
	}
	return res, op.end(len(res.Bars), nil)
}

func (s *AnalyticsService) bars(ctx context.Context, req BarsRequest) (*BarsResult, error) {
	if err := s.validate(&req); err != nil {
		return nil, err
	}
	interval := req.Interval
	if interval == "" {
		interval = s.cfg.BarInterval
	}
	width, err := bars.ParseInterval(interval)
	if err != nil {
		return nil, err
	}

	trades := req.Trades
	if len(trades) == 0 {
		if req.Start == "" || req.End == "" {
			return nil, apierrors.NewAppValidationError("start and end are required when trades are omitted", nil)
		}
		start, end, err := parseRange(req.Start, req.End)
		if err != nil {
			return nil, err
		}
		if err := s.requireSource(); err != nil {
			return nil, err
		}
		if trades, err = s.source.Trades(ctx, req.Symbols, start.In(time.UTC), end.In(time.UTC)); err != nil {
			return nil, err
		}
	}

	out, err := bars.MakeOHLCV(trades, width)
	if err != nil {
		return nil, err
	}
	return &BarsResult{Interval: interval, Bars: out}, nil
}

// Legs returns the futures legs of req.Parent on req.Date with their
// official statistics.
func (s *AnalyticsService) Legs(ctx context.Context, req LegsRequest) (*marketdata.Legs, error) {
	op := s.begin(ctx, "legs", attribute.String("parent", req.Parent))
	res, err := s.legs(op.ctx, req)
	if err != nil {
		return nil, op.end(0, err)
	}
	return res, op.end(len(res.Stats), nil)
}

func (s *AnalyticsService) legs(ctx context.Context, req LegsRequest) (*marketdata.Legs, error) {
	if err := s.validate(&req); err != nil {
		return nil, err
	}
	date, err := domain.ParseDate(req.Date)
	if err != nil {
		return nil, apierrors.NewAppValidationError("invalid date", err)
	}
	if err := s.requireSource(); err != nil {
		return nil, err
	}
	legs, err := s.source.LegsOn(ctx, date, req.Parent)
	if err != nil {
		return nil, err
	}
	return &legs, nil
}

// Session describes the CME session clock at at, listing the next days
// business days after at's Chicago date.
func (s *AnalyticsService) Session(ctx context.Context, at time.Time, days int) SessionResult {
	op := s.begin(ctx, "session")
	chicago := session.AsChicago(at)
	today := domain.DateOf(chicago)

	next := make([]domain.Date, 0, max(days, 0))
	for d, i := today, 0; i < days; i++ {
		d = session.AddBusinessDays(d, 1)
		next = append(next, d)
	}

	res := SessionResult{
		At:               at,
		Chicago:          chicago,
		BusinessDay:      session.IsBusinessDay(today),
		SessionEnd:       session.End(chicago),
		NextSessionEnd:   session.NextEnd(chicago),
		NextBusinessDays: next,
	}
	_ = op.end(len(next), nil)
	return res
}
