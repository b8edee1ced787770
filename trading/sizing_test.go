package trading

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeView struct {
	prices   map[string]decimal.Decimal
	balances map[string]decimal.Decimal
}

func newFakeView() *fakeView {
	return &fakeView{
		prices:   map[string]decimal.Decimal{},
		balances: map[string]decimal.Decimal{},
	}
}

func (v *fakeView) CurrentPrice(symbol string) (PriceQuote, bool) {
	p, ok := v.prices[symbol]
	return PriceQuote{Symbol: symbol, Value: p}, ok
}

func (v *fakeView) FreeBalance(asset string) decimal.Decimal {
	return v.balances[asset]
}

type fakeSubmitter struct {
	calls int
	last  OrderRequest
	err   error
}

func (f *fakeSubmitter) Submit(_ context.Context, req OrderRequest, _ string) (Ack, error) {
	f.calls++
	f.last = req
	if f.err != nil {
		return Ack{}, &SubmissionError{Symbol: req.Symbol, Side: req.Side, Err: f.err}
	}
	return Ack{OrderID: "42", Status: "FILLED"}, nil
}

func btcView() *fakeView {
	v := newFakeView()
	v.prices["BTCUSDT"] = d("50000")
	v.balances["USDT"] = d("1000")
	v.balances["BTC"] = d("0.5")
	return v
}

func TestOpenComputesCeilingAndSeed(t *testing.T) {
	c := NewController(NewStepSizeResolver(nil, decimal.Zero))

	s, err := c.Open("btcusdt", SideBuy, btcView())
	require.NoError(t, err)
	assert.Equal(t, StateOpen, c.State())
	assert.Equal(t, "BTCUSDT", s.Symbol)
	assert.Equal(t, "BTC", s.Base)
	assert.Equal(t, "USDT", s.Quote)
	assert.True(t, s.Ceiling.Equal(d("0.02")))
	assert.True(t, s.Quantity.Equal(d("0.005")))
	assert.Equal(t, "0.005000", s.RawQuantity)
	assert.True(t, s.Notional.Equal(d("250")))
	assert.True(t, s.SliderValue.Equal(s.Quantity))
	assert.NotEmpty(t, s.ID)
}

func TestOpenSellUsesBaseBalance(t *testing.T) {
	c := NewController(nil)

	s, err := c.Open("BTCUSDT", SideSell, btcView())
	require.NoError(t, err)
	assert.True(t, s.Ceiling.Equal(d("0.5")))
	assert.True(t, s.Quantity.Equal(d("0.125")))
}

func TestOpenRejectsWhileActive(t *testing.T) {
	c := NewController(nil)
	_, err := c.Open("BTCUSDT", SideBuy, btcView())
	require.NoError(t, err)

	_, err = c.Open("BTCUSDT", SideSell, btcView())
	assert.True(t, errors.Is(err, ErrSessionActive))
}

func TestOpenValidatesInput(t *testing.T) {
	c := NewController(nil)

	_, err := c.Open("  ", SideBuy, btcView())
	assert.True(t, errors.Is(err, ErrEmptySymbol))

	_, err = c.Open("BTCUSDT", Side("hold"), btcView())
	assert.True(t, errors.Is(err, ErrInvalidSide))
	assert.Equal(t, StateClosed, c.State())
}

// Scenario C
func TestOpenZeroPriceIsUnpriced(t *testing.T) {
	c := NewController(nil)
	v := btcView()
	v.prices["BTCUSDT"] = decimal.Zero

	_, err := c.Open("BTCUSDT", SideBuy, v)
	assert.True(t, errors.Is(err, ErrUnpricedSymbol))
	assert.Equal(t, StateClosed, c.State())
	_, ok := c.Session()
	assert.False(t, ok)

	_, err = c.Open("ETHUSDT", SideBuy, v)
	assert.True(t, errors.Is(err, ErrUnpricedSymbol))
}

// Scenario A
func TestCommitSliderBTC(t *testing.T) {
	c := NewController(nil)
	_, err := c.Open("BTCUSDT", SideBuy, btcView())
	require.NoError(t, err)

	require.NoError(t, c.CommitSlider(d("0.015")))
	s, _ := c.Session()
	assert.True(t, s.Quantity.Equal(d("0.015000")))
	assert.True(t, s.Notional.Equal(d("750.00")))
	assert.Equal(t, "0.015", s.RawQuantity)
}

// Scenario B
func TestCommitSliderDOGEFloors(t *testing.T) {
	c := NewController(nil)
	v := newFakeView()
	v.prices["DOGEUSDT"] = d("0.2")
	v.balances["USDT"] = d("100")

	s, err := c.Open("DOGEUSDT", SideBuy, v)
	require.NoError(t, err)
	require.True(t, s.Ceiling.Equal(d("500")))

	require.NoError(t, c.CommitSlider(d("247.6")))
	s, _ = c.Session()
	assert.True(t, s.Quantity.Equal(d("247")))
	assert.True(t, s.Notional.Equal(d("247").Mul(d("0.2"))))
	assert.Equal(t, "247.00", s.RawQuantity)
}

func TestCommitSliderProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	steps := NewStepSizeResolver(nil, decimal.Zero)

	for sym, step := range defaultStepSizes {
		v := newFakeView()
		price := decimal.NewFromInt(int64(rng.Intn(90000) + 1)).Div(decimal.NewFromInt(100))
		v.prices[sym] = price
		v.balances["USDT"] = decimal.NewFromInt(int64(rng.Intn(100000) + 1))

		c := NewController(steps)
		s, err := c.Open(sym, SideBuy, v)
		require.NoError(t, err, sym)

		for i := 0; i < 50; i++ {
			frac := decimal.NewFromInt(int64(rng.Intn(1001))).Div(decimal.NewFromInt(1000))
			slider := s.Ceiling.Mul(frac)

			require.NoError(t, c.CommitSlider(slider))
			first, _ := c.Session()

			assert.True(t, first.Quantity.Mod(step).IsZero(), "%s: %s not a multiple of %s", sym, first.Quantity, step)
			assert.True(t, first.Quantity.LessThanOrEqual(slider), "%s: %s > %s", sym, first.Quantity, slider)
			assert.True(t, first.Quantity.LessThanOrEqual(first.Ceiling))
			assert.True(t, first.Notional.Equal(first.Quantity.Mul(first.Price)))

			require.NoError(t, c.CommitSlider(slider))
			second, _ := c.Session()
			assert.True(t, first.Quantity.Equal(second.Quantity), "commit is not idempotent")
			assert.Equal(t, first.RawQuantity, second.RawQuantity)
		}
	}
}

func TestCommitSliderClampsToCeiling(t *testing.T) {
	c := NewController(nil)
	_, err := c.Open("BTCUSDT", SideBuy, btcView())
	require.NoError(t, err)

	require.NoError(t, c.CommitSlider(d("3")))
	s, _ := c.Session()
	assert.True(t, s.Quantity.Equal(d("0.02")))

	require.NoError(t, c.CommitSlider(d("-1")))
	s, _ = c.Session()
	assert.True(t, s.Quantity.IsZero())
}

func TestSetFromSliderDoesNotCommit(t *testing.T) {
	c := NewController(nil)
	opened, err := c.Open("BTCUSDT", SideBuy, btcView())
	require.NoError(t, err)

	require.NoError(t, c.SetFromSlider(d("0.0173")))
	s, _ := c.Session()
	assert.True(t, s.SliderValue.Equal(d("0.0173")))
	assert.True(t, s.Quantity.Equal(opened.Quantity))
	assert.Equal(t, opened.RawQuantity, s.RawQuantity)
}

// Scenario D
func TestSetFromTextUnparsable(t *testing.T) {
	c := NewController(nil)
	_, err := c.Open("BTCUSDT", SideBuy, btcView())
	require.NoError(t, err)

	require.NoError(t, c.SetFromText("abc"))
	s, _ := c.Session()
	assert.Equal(t, "abc", s.RawQuantity)
	assert.True(t, s.Quantity.IsZero())
	assert.True(t, s.Notional.IsZero())

	_, err = c.Confirm("token")
	assert.True(t, errors.Is(err, ErrInvalidQuantity))
	assert.Equal(t, StateOpen, c.State())
}

func TestSetFromTextIsNotClamped(t *testing.T) {
	c := NewController(nil)
	_, err := c.Open("BTCUSDT", SideBuy, btcView())
	require.NoError(t, err)

	require.NoError(t, c.SetFromText(" 0.5 "))
	s, _ := c.Session()
	assert.Equal(t, " 0.5 ", s.RawQuantity)
	assert.True(t, s.Quantity.Equal(d("0.5")))
	assert.True(t, s.Notional.Equal(d("25000")))
	assert.True(t, s.OverCeiling())
	assert.True(t, s.SliderValue.Equal(s.Ceiling))

	sub := &fakeSubmitter{}
	_, err = c.Submit(context.Background(), sub, "token")
	require.NoError(t, err)
	assert.True(t, sub.last.Quantity.Equal(d("0.5")))
}

func TestConfirmSendsTypedQuantityAsEntered(t *testing.T) {
	c := NewController(nil)
	_, err := c.Open("BTCUSDT", SideBuy, btcView())
	require.NoError(t, err)

	require.NoError(t, c.SetFromText("0.0123456789"))
	req, err := c.Confirm("token")
	require.NoError(t, err)
	assert.Equal(t, "0.0123456789", req.Quantity.String())
	assert.Equal(t, StateSubmitting, c.State())
}

func TestConfirmTypedQuantityBelowStep(t *testing.T) {
	c := NewController(nil)
	v := newFakeView()
	v.prices["DOGEUSDT"] = d("0.2")
	v.balances["USDT"] = d("100")
	_, err := c.Open("DOGEUSDT", SideBuy, v)
	require.NoError(t, err)

	require.NoError(t, c.SetFromText("0.5"))
	req, err := c.Confirm("token")
	require.NoError(t, err, "off-grid amounts are left to the backend")
	assert.True(t, req.Quantity.Equal(d("0.5")))
}

func TestConfirmZeroNeverSubmits(t *testing.T) {
	c := NewController(nil)
	_, err := c.Open("BTCUSDT", SideBuy, btcView())
	require.NoError(t, err)
	require.NoError(t, c.CommitSlider(decimal.Zero))

	sub := &fakeSubmitter{}
	_, err = c.Submit(context.Background(), sub, "token")
	assert.True(t, errors.Is(err, ErrInvalidQuantity))
	assert.Equal(t, 0, sub.calls)
	assert.Equal(t, StateOpen, c.State())
}

func TestConfirmWithoutTokenCloses(t *testing.T) {
	c := NewController(nil)
	_, err := c.Open("BTCUSDT", SideBuy, btcView())
	require.NoError(t, err)

	sub := &fakeSubmitter{}
	_, err = c.Submit(context.Background(), sub, "")
	assert.True(t, errors.Is(err, ErrUnauthenticated))
	assert.Equal(t, 0, sub.calls)
	assert.Equal(t, StateClosed, c.State())
}

func TestConfirmWithoutSession(t *testing.T) {
	c := NewController(nil)
	_, err := c.Confirm("token")
	assert.True(t, errors.Is(err, ErrNoSession))
	assert.True(t, errors.Is(c.CommitSlider(d("1")), ErrNoSession))
	assert.True(t, errors.Is(c.SetFromText("1"), ErrNoSession))
	assert.True(t, errors.Is(c.SetCustomPrice("1"), ErrNoSession))
}

func TestConfirmBuildsLimitOrder(t *testing.T) {
	c := NewController(nil)
	opened, err := c.Open("BTCUSDT", SideSell, btcView())
	require.NoError(t, err)

	require.NoError(t, c.SetCustomPrice("51000.5"))
	req, err := c.Confirm("token")
	require.NoError(t, err)

	assert.Equal(t, opened.ID, req.ClientOrderID)
	assert.Equal(t, KindLimit, req.Kind)
	assert.Equal(t, SideSell, req.Side)
	require.True(t, req.LimitPrice.Valid)
	assert.True(t, req.LimitPrice.Decimal.Equal(d("51000.5")))
	assert.Equal(t, StateSubmitting, c.State())

	_, err = c.Confirm("token")
	assert.True(t, errors.Is(err, ErrNoSession), "a second confirm must not submit twice")
}

func TestSetCustomPriceInvalidClears(t *testing.T) {
	c := NewController(nil)
	_, err := c.Open("BTCUSDT", SideBuy, btcView())
	require.NoError(t, err)

	require.NoError(t, c.SetCustomPrice("100"))
	require.NoError(t, c.SetCustomPrice("-5"))
	s, _ := c.Session()
	assert.Equal(t, "-5", s.RawCustomPrice)
	assert.False(t, s.CustomPrice.Valid)
	assert.Equal(t, KindMarket, s.Kind())
}

// Scenario E
func TestSubmissionFailureClosesSession(t *testing.T) {
	c := NewController(nil)
	_, err := c.Open("BTCUSDT", SideBuy, btcView())
	require.NoError(t, err)

	backendErr := errors.New("insufficient balance")
	sub := &fakeSubmitter{err: backendErr}
	_, err = c.Submit(context.Background(), sub, "token")

	var subErr *SubmissionError
	require.True(t, errors.As(err, &subErr))
	assert.True(t, errors.Is(err, backendErr))
	assert.Equal(t, 1, sub.calls)
	assert.Equal(t, StateClosed, c.State())
	_, ok := c.Session()
	assert.False(t, ok)
}

func TestSubmitSuccessCloses(t *testing.T) {
	c := NewController(nil)
	_, err := c.Open("BTCUSDT", SideBuy, btcView())
	require.NoError(t, err)

	ack, err := c.Submit(context.Background(), &fakeSubmitter{}, "token")
	require.NoError(t, err)
	assert.Equal(t, "42", ack.OrderID)
	assert.Equal(t, StateClosed, c.State())
}

func TestSettleIgnoresDetachedResult(t *testing.T) {
	c := NewController(nil)
	_, err := c.Open("BTCUSDT", SideBuy, btcView())
	require.NoError(t, err)

	req, err := c.Confirm("token")
	require.NoError(t, err)
	id, inFlight := c.InFlight()
	assert.True(t, inFlight)
	assert.Equal(t, req.ClientOrderID, id)

	c.Cancel()
	assert.Equal(t, StateClosed, c.State())

	_, err = c.Open("BTCUSDT", SideSell, btcView())
	require.NoError(t, err)

	assert.False(t, c.Settle(req.ClientOrderID, nil))
	assert.Equal(t, StateOpen, c.State(), "late result must not touch the new session")
}

func TestSettleBindsMatchingResult(t *testing.T) {
	c := NewController(nil)
	_, err := c.Open("BTCUSDT", SideBuy, btcView())
	require.NoError(t, err)
	req, err := c.Confirm("token")
	require.NoError(t, err)

	assert.False(t, c.Settle("other", nil))
	assert.Equal(t, StateSubmitting, c.State())
	assert.True(t, c.Settle(req.ClientOrderID, errors.New("boom")))
	assert.Equal(t, StateClosed, c.State())
}

func TestCancelDiscardsSession(t *testing.T) {
	c := NewController(nil)
	_, err := c.Open("BTCUSDT", SideBuy, btcView())
	require.NoError(t, err)

	c.Cancel()
	assert.Equal(t, StateClosed, c.State())
	_, ok := c.Session()
	assert.False(t, ok)
	c.Cancel()
	assert.Equal(t, StateClosed, c.State())
}

func TestRepriceBuyCeilingShrinksQuantityKept(t *testing.T) {
	c := NewController(nil)
	v := btcView()
	_, err := c.Open("BTCUSDT", SideBuy, v)
	require.NoError(t, err)
	require.NoError(t, c.CommitSlider(d("0.015")))
	before, _ := c.Session()

	v.prices["BTCUSDT"] = d("60000")
	c.Reprice(v)
	after, _ := c.Session()

	assert.True(t, after.Ceiling.LessThan(before.Ceiling))
	assert.True(t, after.Quantity.Equal(before.Quantity))
	assert.Equal(t, before.RawQuantity, after.RawQuantity)
	assert.True(t, after.Notional.Equal(d("900")))
	assert.True(t, after.Price.Equal(d("60000")))
}

func TestRepriceFollowsBalanceAndKeepsPriceWhenMissing(t *testing.T) {
	c := NewController(nil)
	v := btcView()
	_, err := c.Open("BTCUSDT", SideBuy, v)
	require.NoError(t, err)
	require.NoError(t, c.SetFromText("typed"))

	delete(v.prices, "BTCUSDT")
	v.balances["USDT"] = d("500")
	c.Reprice(v)

	s, _ := c.Session()
	assert.True(t, s.Price.Equal(d("50000")))
	assert.True(t, s.Ceiling.Equal(d("0.01")))
	assert.Equal(t, "typed", s.RawQuantity)
}

func TestSeedFractionOption(t *testing.T) {
	c := NewController(nil, WithSeedFraction(d("0.5")))
	s, err := c.Open("BTCUSDT", SideSell, btcView())
	require.NoError(t, err)
	assert.True(t, s.Quantity.Equal(d("0.25")))
	assert.True(t, s.SliderPercent().Equal(d("50")))
}

func TestOpenStampsClock(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c := NewController(nil, WithClock(func() time.Time { return at }))
	s, err := c.Open("BTCUSDT", SideBuy, btcView())
	require.NoError(t, err)
	assert.Equal(t, at, s.OpenedAt)
}

func TestSetStepSizesAppliesToNextSession(t *testing.T) {
	c := NewController(nil)
	s, err := c.Open("BTCUSDT", SideBuy, btcView())
	require.NoError(t, err)
	assert.True(t, s.StepSize.Equal(d("0.000001")))

	c.SetStepSizes(NewStepSizeResolver(nil, decimal.Zero).WithFilters(map[string]decimal.Decimal{"BTCUSDT": d("0.001")}))
	s, _ = c.Session()
	assert.True(t, s.StepSize.Equal(d("0.000001")), "open session keeps its step")

	c.Cancel()
	s, err = c.Open("BTCUSDT", SideBuy, btcView())
	require.NoError(t, err)
	assert.True(t, s.StepSize.Equal(d("0.001")))
}
