package trading

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"tradeassist/logger"
	"tradeassist/metrics"
)

// DefaultSeedFraction is the share of the ceiling a new session starts at
var DefaultSeedFraction = decimal.NewFromFloat(0.25)

const seedPlaces = 6

// State of the sizing controller
type State int

const (
	StateClosed State = iota
	StateOpen
	StateSubmitting
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateSubmitting:
		return "submitting"
	default:
		return "closed"
	}
}

// Session is the state of one buy/sell dialog
type Session struct {
	ID     string
	Symbol string
	Base   string
	Quote  string
	Side   Side

	// RawQuantity is exactly what the amount field shows
	RawQuantity string
	Quantity    decimal.Decimal
	Notional    decimal.Decimal
	Ceiling     decimal.Decimal
	Price       decimal.Decimal
	StepSize    decimal.Decimal
	// SliderValue follows the slider while it is being dragged
	SliderValue decimal.Decimal

	RawCustomPrice string
	CustomPrice    decimal.NullDecimal

	OpenedAt time.Time
}

// Kind is limit when a custom price is set
func (s Session) Kind() OrderKind {
	if s.CustomPrice.Valid {
		return KindLimit
	}
	return KindMarket
}

// OverCeiling reports a typed quantity above the available balance. It is
// informational only; confirm does not reject it.
func (s Session) OverCeiling() bool {
	return s.Quantity.GreaterThan(s.Ceiling)
}

// SliderPercent is the slider position as a share of the ceiling, 0..100
func (s Session) SliderPercent() decimal.Decimal {
	if !s.Ceiling.IsPositive() {
		return decimal.Zero
	}
	return s.SliderValue.Div(s.Ceiling).Mul(decimal.NewFromInt(100))
}

// Submitter places a confirmed order
type Submitter interface {
	Submit(ctx context.Context, req OrderRequest, token string) (Ack, error)
}

// ControllerOption configures a Controller
type ControllerOption func(*Controller)

// WithSeedFraction sets the share of the ceiling a session opens at
func WithSeedFraction(f decimal.Decimal) ControllerOption {
	return func(c *Controller) {
		if !f.IsNegative() && f.LessThanOrEqual(decimal.NewFromInt(1)) {
			c.seed = f
		}
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) ControllerOption {
	return func(c *Controller) { c.now = now }
}

// Controller turns slider and text input into an order quantity. It holds at
// most one session and is driven from a single goroutine; it is not safe for
// concurrent use.
type Controller struct {
	steps *StepSizeResolver
	seed  decimal.Decimal
	now   func() time.Time

	state    State
	session  *Session
	inflight string
}

// NewController creates a closed controller
func NewController(steps *StepSizeResolver, opts ...ControllerOption) *Controller {
	if steps == nil {
		steps = NewStepSizeResolver(nil, decimal.Zero)
	}
	c := &Controller{
		steps: steps,
		seed:  DefaultSeedFraction,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetStepSizes swaps the resolver, e.g. after live filters arrive. An open
// session keeps the step it was opened with.
func (c *Controller) SetStepSizes(steps *StepSizeResolver) {
	if steps != nil {
		c.steps = steps
	}
}

// State returns the current state
func (c *Controller) State() State { return c.state }

// Session returns a copy of the open session
func (c *Controller) Session() (Session, bool) {
	if c.state != StateOpen || c.session == nil {
		return Session{}, false
	}
	return *c.session, true
}

// InFlight is the client order id awaiting a result, if any
func (c *Controller) InFlight() (string, bool) {
	return c.inflight, c.state == StateSubmitting
}

func (c *Controller) log() *logrus.Entry {
	fields := logrus.Fields{"state": c.state.String()}
	if c.session != nil {
		fields["session"] = c.session.ID
		fields["symbol"] = c.session.Symbol
		fields["side"] = c.session.Side.String()
	}
	return logger.WithFields(fields)
}

func ceilingFor(side Side, base, quote string, price decimal.Decimal, view MarketView) decimal.Decimal {
	if side == SideSell {
		return view.FreeBalance(base)
	}
	return view.FreeBalance(quote).Div(price)
}

// Open starts a session for symbol and side
func (c *Controller) Open(symbol string, side Side, view MarketView) (Session, error) {
	sym := NormalizeSymbol(symbol)
	if sym == "" {
		return Session{}, ErrEmptySymbol
	}
	if !side.Valid() {
		return Session{}, ErrInvalidSide
	}
	if c.state != StateClosed {
		return Session{}, ErrSessionActive
	}

	quote, ok := view.CurrentPrice(sym)
	if !ok || !quote.Value.IsPositive() {
		metrics.SizingSessions.WithLabelValues("rejected").Inc()
		return Session{}, errors.Wrap(ErrUnpricedSymbol, sym)
	}

	base, quoteAsset := SplitSymbol(sym)
	step := c.steps.Resolve(sym)
	ceiling := ceilingFor(side, base, quoteAsset, quote.Value, view)
	seed := ceiling.Mul(c.seed).Truncate(seedPlaces)

	c.session = &Session{
		ID:          uuid.NewString(),
		Symbol:      sym,
		Base:        base,
		Quote:       quoteAsset,
		Side:        side,
		RawQuantity: seed.StringFixed(seedPlaces),
		Quantity:    seed,
		Notional:    seed.Mul(quote.Value),
		Ceiling:     ceiling,
		Price:       quote.Value,
		StepSize:    step,
		SliderValue: seed,
		OpenedAt:    c.now(),
	}
	c.state = StateOpen
	metrics.SizingSessions.WithLabelValues("opened").Inc()
	c.log().WithField("ceiling", ceiling.String()).Debug("sizing session opened")
	return *c.session, nil
}

func (c *Controller) open() (*Session, error) {
	if c.state != StateOpen || c.session == nil {
		return nil, ErrNoSession
	}
	return c.session, nil
}

func clamp(v, ceiling decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	if v.GreaterThan(ceiling) {
		return ceiling
	}
	return v
}

// SetFromSlider tracks the slider while it moves. The committed quantity
// only changes on CommitSlider.
func (c *Controller) SetFromSlider(v decimal.Decimal) error {
	s, err := c.open()
	if err != nil {
		return err
	}
	s.SliderValue = clamp(v, s.Ceiling)
	return nil
}

// CommitSlider quantizes the released slider value onto the step grid
func (c *Controller) CommitSlider(v decimal.Decimal) error {
	s, err := c.open()
	if err != nil {
		return err
	}
	v = clamp(v, s.Ceiling)
	q := FloorToStep(v, s.StepSize)

	s.SliderValue = v
	s.Quantity = q
	s.RawQuantity = q.StringFixed(DisplayPlaces(s.StepSize))
	s.Notional = q.Mul(s.Price)
	return nil
}

// SetFromText takes the amount field verbatim. Unparsable text counts as
// zero. No ceiling is applied here.
func (c *Controller) SetFromText(raw string) error {
	s, err := c.open()
	if err != nil {
		return err
	}
	s.RawQuantity = raw

	q, perr := decimal.NewFromString(strings.TrimSpace(raw))
	if perr != nil || q.IsNegative() {
		q = decimal.Zero
	}
	s.Quantity = q
	s.Notional = q.Mul(s.Price)
	if q.LessThanOrEqual(s.Ceiling) {
		s.SliderValue = q
	} else {
		s.SliderValue = s.Ceiling
	}
	return nil
}

// SetCustomPrice sets a limit price. Anything but a positive decimal clears it.
func (c *Controller) SetCustomPrice(raw string) error {
	s, err := c.open()
	if err != nil {
		return err
	}
	s.RawCustomPrice = raw

	p, perr := decimal.NewFromString(strings.TrimSpace(raw))
	if perr != nil || !p.IsPositive() {
		s.CustomPrice = decimal.NullDecimal{}
		return nil
	}
	s.CustomPrice = decimal.NewNullDecimal(p)
	return nil
}

// Reprice follows a context change: price, ceiling and notional are
// recomputed while the quantity the user picked stays as it is. A missing
// price keeps the previous one.
func (c *Controller) Reprice(view MarketView) {
	s, err := c.open()
	if err != nil {
		return
	}
	if quote, ok := view.CurrentPrice(s.Symbol); ok && quote.Value.IsPositive() {
		s.Price = quote.Value
	}
	s.Ceiling = ceilingFor(s.Side, s.Base, s.Quote, s.Price, view)
	s.Notional = s.Quantity.Mul(s.Price)
	if s.SliderValue.GreaterThan(s.Ceiling) {
		s.SliderValue = s.Ceiling
	}
}

// Confirm validates the session and turns it into an order request. On
// success the session is gone and the controller waits in Submitting until
// Settle is called with the returned ClientOrderID.
func (c *Controller) Confirm(token string) (OrderRequest, error) {
	s, err := c.open()
	if err != nil {
		return OrderRequest{}, err
	}
	if !s.Quantity.IsPositive() {
		metrics.SizingSessions.WithLabelValues("rejected").Inc()
		return OrderRequest{}, ErrInvalidQuantity
	}
	if token == "" {
		c.log().Debug("confirm without token, closing session")
		c.close()
		metrics.SizingSessions.WithLabelValues("rejected").Inc()
		return OrderRequest{}, ErrUnauthenticated
	}

	// Slider amounts are already on the step grid. Typed amounts go out as
	// entered and the backend applies the exchange filters.
	q := s.Quantity
	req := OrderRequest{
		ClientOrderID: s.ID,
		Symbol:        s.Symbol,
		Side:          s.Side,
		Kind:          s.Kind(),
		Quantity:      q,
		LimitPrice:    s.CustomPrice,
	}

	c.log().WithField("quantity", q.String()).Debug("sizing session confirmed")
	c.state = StateSubmitting
	c.inflight = s.ID
	c.session = nil
	metrics.SizingSessions.WithLabelValues("confirmed").Inc()
	return req, nil
}

// Settle binds a submission result. It returns false when the result belongs
// to a request that was cancelled or already settled.
func (c *Controller) Settle(clientOrderID string, err error) bool {
	if c.state != StateSubmitting || c.inflight != clientOrderID || clientOrderID == "" {
		logger.Debugf("ignoring late result for order %s (err=%v)", clientOrderID, err)
		return false
	}
	c.state = StateClosed
	c.inflight = ""
	return true
}

// Cancel discards the open session. While submitting it detaches the request:
// the call keeps running but its result will not be bound.
func (c *Controller) Cancel() {
	switch c.state {
	case StateOpen:
		c.log().Debug("sizing session cancelled")
		metrics.SizingSessions.WithLabelValues("cancelled").Inc()
	case StateSubmitting:
		logger.Debugf("detaching in-flight order %s", c.inflight)
	}
	c.close()
}

func (c *Controller) close() {
	c.state = StateClosed
	c.session = nil
	c.inflight = ""
}

// Submit confirms and submits synchronously. Interactive callers run Confirm
// and Settle on their own loop and only the submitter call elsewhere.
func (c *Controller) Submit(ctx context.Context, sub Submitter, token string) (Ack, error) {
	req, err := c.Confirm(token)
	if err != nil {
		return Ack{}, err
	}
	ack, err := sub.Submit(ctx, req, token)
	c.Settle(req.ClientOrderID, err)
	return ack, err
}
