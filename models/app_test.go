package models

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeassist/api"
	"tradeassist/auth"
	"tradeassist/trading"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakeSource struct{}

func (fakeSource) FetchPrices(context.Context) ([]trading.Ticker, error) {
	return []trading.Ticker{
		{Symbol: "ETHUSDT", Price: d("3000"), PercentChange24h: d("-1.5")},
		{Symbol: "BTCUSDT", Price: d("50000"), PercentChange24h: d("2.5")},
	}, nil
}

func (fakeSource) FetchPortfolio(context.Context, string) ([]trading.HoldingSnapshot, error) {
	return []trading.HoldingSnapshot{
		{Asset: "USDT", Free: d("1000"), Total: d("1000"), CurrentPrice: d("1"), AvgBuyPrice: d("1")},
		{Asset: "BTC", Free: d("0.4"), Locked: d("0.1"), Total: d("0.5"), CurrentPrice: d("49000"), AvgBuyPrice: d("30000")},
		{Asset: "SOL", Free: d("10"), Total: d("10"), CurrentPrice: d("150"), AvgBuyPrice: d("100")},
	}, nil
}

type placed struct {
	side     trading.Side
	symbol   string
	quantity decimal.Decimal
	limit    decimal.NullDecimal
}

type fakeSink struct {
	mu     sync.Mutex
	orders []placed
	err    error
}

func (f *fakeSink) place(side trading.Side, symbol string, qty decimal.Decimal, limit decimal.NullDecimal) (trading.Ack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, placed{side: side, symbol: symbol, quantity: qty, limit: limit})
	if f.err != nil {
		return trading.Ack{}, f.err
	}
	return trading.Ack{OrderID: "42", Status: "FILLED"}, nil
}

func (f *fakeSink) PlaceBuy(_ context.Context, _, symbol string, qty decimal.Decimal, limit decimal.NullDecimal) (trading.Ack, error) {
	return f.place(trading.SideBuy, symbol, qty, limit)
}

func (f *fakeSink) PlaceSell(_ context.Context, _, symbol string, qty decimal.Decimal, limit decimal.NullDecimal) (trading.Ack, error) {
	return f.place(trading.SideSell, symbol, qty, limit)
}

type fakeBackend struct {
	inputs []string
}

func (f *fakeBackend) Chat(_ context.Context, _, input string) (string, error) {
	f.inputs = append(f.inputs, input)
	return "BTC is up 2.5% today", nil
}

func (f *fakeBackend) GetTransactions(context.Context, string) ([]api.Transaction, error) {
	return []api.Transaction{{ID: "1", Action: "Bought 0.1 BTC", Status: "FILLED"}}, nil
}

type fakeAuth struct{}

func (fakeAuth) Login(_ context.Context, email, _ string) (*api.User, error) {
	return &api.User{ID: "7", Name: "Ana", LastName: "Lee", Email: email, Token: "jwt"}, nil
}

func (fakeAuth) Register(context.Context, api.RegisterRequest) (string, error) {
	return "User registered", nil
}

type harness struct {
	m       *AppModel
	market  *trading.MarketContext
	sink    *fakeSink
	backend *fakeBackend
	store   *auth.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := auth.NewStore(filepath.Join(t.TempDir(), "session.json"))
	market := trading.NewMarketContext(fakeSource{})
	sink := &fakeSink{}
	backend := &fakeBackend{}

	m := NewAppModel(Options{
		Backend:    backend,
		Auth:       auth.NewService(fakeAuth{}, store, time.Hour),
		Market:     market,
		Gateway:    trading.NewGateway(sink),
		Sizing:     trading.NewController(trading.NewStepSizeResolver(nil, decimal.Zero)),
		QuoteAsset: "USDT",
	})
	t.Cleanup(m.Close)
	return &harness{m: m, market: market, sink: sink, backend: backend, store: store}
}

// loggedIn signs in and loads prices and holdings
func (h *harness) loggedIn(t *testing.T) {
	t.Helper()
	h.m.State = StateLogin
	typeText(h.m, "ana@example.com")
	press(h.m, tea.KeyTab)
	typeText(h.m, "secret")
	cmd := press(h.m, tea.KeyEnter)
	require.NotNil(t, cmd)
	h.m.Update(cmd())
	require.True(t, h.m.Authenticated)

	ctx := context.Background()
	_, err := h.market.RefreshPrices(ctx)
	require.NoError(t, err)
	_, err = h.market.Refresh(ctx, "jwt")
	require.NoError(t, err)
	h.m.Update(snapshotMsg{snapshot: h.market.Snapshot()})
}

func typeText(m *AppModel, s string) {
	for _, r := range s {
		m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

func press(m *AppModel, k tea.KeyType) tea.Cmd {
	_, cmd := m.Update(tea.KeyMsg{Type: k})
	return cmd
}

func TestLoginStoresSession(t *testing.T) {
	h := newHarness(t)
	h.loggedIn(t)

	assert.Equal(t, StateDashboard, h.m.State)
	assert.Equal(t, "Ana Lee", h.m.Username)
	assert.Empty(t, h.m.LoginForm.Value(0), "form is reset after login")

	saved, err := h.store.Load()
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "jwt", saved.Token)
}

func TestRestoredSessionSkipsLogin(t *testing.T) {
	store := auth.NewStore(filepath.Join(t.TempDir(), "session.json"))
	require.NoError(t, store.Save(auth.Session{Token: "jwt", Name: "Ana"}))

	m := NewAppModel(Options{
		Auth:    auth.NewService(fakeAuth{}, store, time.Hour),
		Market:  trading.NewMarketContext(fakeSource{}),
		Gateway: trading.NewGateway(&fakeSink{}),
	})
	t.Cleanup(m.Close)

	assert.True(t, m.Authenticated)
	assert.Equal(t, "jwt", m.token())
}

func TestMenuRequiresLogin(t *testing.T) {
	h := newHarness(t)

	h.m.Cursor = choiceTrade
	press(h.m, tea.KeyEnter)
	assert.Equal(t, StateMenu, h.m.State)
	assert.Equal(t, "Please login first", h.m.Error)

	typeText(h.m, "1")
	assert.Equal(t, StateDashboard, h.m.State)
}

func TestBuyFromTradeScreen(t *testing.T) {
	h := newHarness(t)
	h.loggedIn(t)
	h.m.State = StateTrade

	// tickers are listed by symbol, BTCUSDT first
	typeText(h.m, "b")
	require.Equal(t, trading.StateOpen, h.m.sizing.State())
	s, _ := h.m.sizing.Session()
	assert.Equal(t, "BTCUSDT", s.Symbol)
	assert.Equal(t, "0.005000", s.RawQuantity, "opens at a quarter of 1000/50000")
	assert.Contains(t, h.m.View(), "BUY BTC")

	press(h.m, tea.KeyCtrlA)
	typeText(h.m, "0.0123456")
	s, _ = h.m.sizing.Session()
	assert.Equal(t, "0.0123456", s.RawQuantity)

	cmd := press(h.m, tea.KeyEnter)
	require.NotNil(t, cmd)
	assert.Equal(t, trading.StateSubmitting, h.m.sizing.State())

	h.m.Update(cmd())
	assert.Equal(t, trading.StateClosed, h.m.sizing.State())
	assert.Empty(t, h.m.Error)
	assert.Contains(t, h.m.Notice, "FILLED")

	require.Len(t, h.sink.orders, 1)
	order := h.sink.orders[0]
	assert.Equal(t, trading.SideBuy, order.side)
	assert.True(t, order.quantity.Equal(d("0.0123456")), "typed amounts are sent as entered: %s", order.quantity)
	assert.False(t, order.limit.Valid)

	records := h.m.gateway.Recent(1)
	require.Len(t, records, 1)
	assert.Equal(t, "42", records[0].OrderID)
}

func TestSliderKeysAndLimitPrice(t *testing.T) {
	h := newHarness(t)
	h.loggedIn(t)
	h.m.State = StateTrade
	typeText(h.m, "s")

	s, ok := h.m.sizing.Session()
	require.True(t, ok)
	assert.True(t, s.Ceiling.Equal(d("0.4")))

	press(h.m, tea.KeyShiftTab)
	assert.Equal(t, focusSlider, h.m.DialogFocus)
	press(h.m, tea.KeyRight)
	s, _ = h.m.sizing.Session()
	assert.True(t, s.SliderValue.Equal(d("0.12")), "the slider moves")
	assert.Equal(t, "0.100000", s.RawQuantity, "the amount waits for the release")

	press(h.m, tea.KeySpace)
	s, _ = h.m.sizing.Session()
	assert.Equal(t, "0.120", s.RawQuantity)

	press(h.m, tea.KeyEnd)
	s, _ = h.m.sizing.Session()
	assert.True(t, s.Quantity.Equal(d("0.12")))

	press(h.m, tea.KeyShiftTab)
	s, _ = h.m.sizing.Session()
	assert.True(t, s.Quantity.Equal(d("0.4")), "leaving the slider releases it")
	assert.Equal(t, focusPrice, h.m.DialogFocus)
	typeText(h.m, "51000")
	s, _ = h.m.sizing.Session()
	assert.Equal(t, trading.KindLimit, s.Kind())

	cmd := press(h.m, tea.KeyEnter)
	require.NotNil(t, cmd)
	h.m.Update(cmd())
	require.Len(t, h.sink.orders, 1)
	assert.Equal(t, trading.SideSell, h.sink.orders[0].side)
	assert.True(t, h.sink.orders[0].limit.Decimal.Equal(d("51000")))
}

func TestEnterReleasesSliderBeforeConfirm(t *testing.T) {
	h := newHarness(t)
	h.loggedIn(t)
	h.m.State = StateTrade
	typeText(h.m, "s")

	press(h.m, tea.KeyShiftTab)
	require.Equal(t, focusSlider, h.m.DialogFocus)
	press(h.m, tea.KeyHome)
	press(h.m, tea.KeyRight)
	press(h.m, tea.KeyRight)

	cmd := press(h.m, tea.KeyEnter)
	require.NotNil(t, cmd)
	h.m.Update(cmd())
	require.Len(t, h.sink.orders, 1)
	assert.True(t, h.sink.orders[0].quantity.Equal(d("0.04")), h.sink.orders[0].quantity.String())
}

func TestEscCancelsDialog(t *testing.T) {
	h := newHarness(t)
	h.loggedIn(t)
	h.m.State = StateTrade
	typeText(h.m, "b")
	require.Equal(t, trading.StateOpen, h.m.sizing.State())

	press(h.m, tea.KeyEsc)
	assert.Equal(t, trading.StateClosed, h.m.sizing.State())
	assert.Equal(t, StateTrade, h.m.State, "esc closes the dialog, not the screen")
	assert.Empty(t, h.sink.orders)
}

func TestZeroQuantityKeepsDialogOpen(t *testing.T) {
	h := newHarness(t)
	h.loggedIn(t)
	h.m.State = StateTrade
	typeText(h.m, "b")

	press(h.m, tea.KeyCtrlA)
	typeText(h.m, "0.000")
	cmd := press(h.m, tea.KeyEnter)
	assert.Nil(t, cmd)
	assert.Equal(t, trading.StateOpen, h.m.sizing.State())
	assert.Contains(t, h.m.Error, "Cannot place order")
	assert.Empty(t, h.sink.orders)
}

func TestFailedOrderShowsError(t *testing.T) {
	h := newHarness(t)
	h.loggedIn(t)
	h.sink.err = &api.Error{StatusCode: 400, Message: "Insufficient balance"}
	h.m.State = StateTrade
	typeText(h.m, "b")

	cmd := press(h.m, tea.KeyEnter)
	require.NotNil(t, cmd)
	h.m.Update(cmd())

	assert.Equal(t, trading.StateClosed, h.m.sizing.State())
	assert.Contains(t, h.m.Error, "Insufficient balance")
	assert.Equal(t, 1, h.m.gateway.Stats().Failed)
}

func TestLateResultIsIgnored(t *testing.T) {
	h := newHarness(t)
	h.loggedIn(t)

	h.m.Update(orderPlacedMsg{clientOrderID: "stale", err: errors.New("boom")})
	assert.Empty(t, h.m.Error)
}

func TestAssetsTradeAgainstQuote(t *testing.T) {
	h := newHarness(t)
	h.loggedIn(t)
	h.m.State = StateAssets

	// by value: BTC 24500, SOL 1500, USDT 1000
	require.Len(t, h.m.holdings, 3)
	assert.Equal(t, "USDT", h.m.holdings[2].Asset)

	h.m.AssetCursor = 2
	typeText(h.m, "b")
	assert.Contains(t, h.m.Error, "quote asset")
	assert.Equal(t, trading.StateClosed, h.m.sizing.State())

	h.m.AssetCursor = 1
	typeText(h.m, "s")
	s, ok := h.m.sizing.Session()
	require.True(t, ok)
	assert.Equal(t, "SOLUSDT", s.Symbol)
	assert.True(t, s.Price.Equal(d("150")), "priced from the holding")
	assert.True(t, s.Ceiling.Equal(d("10")))
}

func TestSnapshotRepricesOpenDialog(t *testing.T) {
	h := newHarness(t)
	h.loggedIn(t)
	h.m.State = StateTrade
	typeText(h.m, "b")
	before, _ := h.m.sizing.Session()

	_, err := h.market.RefreshPrices(context.Background())
	require.NoError(t, err)
	h.m.Update(snapshotMsg{snapshot: h.market.Snapshot()})

	after, _ := h.m.sizing.Session()
	assert.Equal(t, before.ID, after.ID)
	assert.Equal(t, before.RawQuantity, after.RawQuantity)
}

func TestUnauthorizedLogsOut(t *testing.T) {
	h := newHarness(t)
	h.loggedIn(t)

	h.m.Update(refreshedMsg{err: errors.Wrap(&api.Error{StatusCode: 401}, "failed to refresh portfolio")})
	assert.False(t, h.m.Authenticated)
	assert.Equal(t, StateLogin, h.m.State)
	assert.Empty(t, h.market.Snapshot().Holdings)

	saved, err := h.store.Load()
	require.NoError(t, err)
	assert.Nil(t, saved)
}

func TestLogoutFromMenu(t *testing.T) {
	h := newHarness(t)
	h.loggedIn(t)
	h.m.State = StateMenu
	h.m.Cursor = choiceLogout

	cmd := press(h.m, tea.KeyEnter)
	assert.NotNil(t, cmd)
	assert.False(t, h.m.Authenticated)
	assert.Nil(t, h.m.Transactions)
	assert.Empty(t, h.market.Snapshot().Tickers)
}

func TestTransactionsLoaded(t *testing.T) {
	h := newHarness(t)
	h.loggedIn(t)

	cmd := h.m.loadTransactionsCmd()
	require.NotNil(t, cmd)
	h.m.Update(cmd())
	require.Len(t, h.m.Transactions, 1)
	assert.Contains(t, h.m.dashboardView(), "Bought 0.1 BTC")
}

func TestChatRoundTrip(t *testing.T) {
	h := newHarness(t)
	h.m.State = StateChat

	typeText(h.m, "how is btc?")
	assert.Equal(t, "how is btc?", h.m.ChatInput, "q and r are text here")

	cmd := press(h.m, tea.KeyEnter)
	require.NotNil(t, cmd)
	assert.True(t, h.m.ChatPending)
	assert.Nil(t, press(h.m, tea.KeyEnter), "one question at a time")

	h.m.Update(cmd())
	require.Len(t, h.m.ChatHistory, 2)
	assert.True(t, h.m.ChatHistory[0].FromUser)
	assert.Equal(t, "BTC is up 2.5% today", h.m.ChatHistory[1].Text)
	assert.Equal(t, []string{"how is btc?"}, h.backend.inputs)
}

func TestRegisterPrefillsLogin(t *testing.T) {
	h := newHarness(t)
	h.m.State = StateRegister

	for _, v := range []string{"Ana", "Lee", "ana@example.com", "pw"} {
		typeText(h.m, v)
		press(h.m, tea.KeyTab)
	}
	h.m.RegisterForm.Focus = 3
	cmd := press(h.m, tea.KeyEnter)
	require.NotNil(t, cmd)
	h.m.Update(cmd())

	assert.Equal(t, StateLogin, h.m.State)
	assert.Equal(t, "ana@example.com", h.m.LoginForm.Value(0))
	assert.Equal(t, "User registered", h.m.Notice)
}

func TestPublishKeepsNewestSnapshot(t *testing.T) {
	h := newHarness(t)
	first := h.market.Snapshot()
	second := &trading.Snapshot{}

	h.m.publish(first)
	h.m.publish(second)

	msg := waitForSnapshot(h.m.updates)()
	assert.Same(t, second, msg.(snapshotMsg).snapshot)
}

func TestViewsRender(t *testing.T) {
	h := newHarness(t)
	h.loggedIn(t)

	for state, want := range map[int]string{
		StateMenu:      "TRADE ASSIST",
		StateLogin:     "LOGIN",
		StateRegister:  "CREATE ACCOUNT",
		StateDashboard: "TOP GAINERS",
		StateTrade:     "BTCUSDT",
		StateAssets:    "SOL",
		StateOrders:    "No orders placed",
		StateChat:      "MARKET ASSISTANT",
		StateHelp:      "ORDER DIALOG",
	} {
		h.m.State = state
		assert.Contains(t, h.m.View(), want, "state %d", state)
	}
}

func TestLiveStepSizesApplyToNextDialog(t *testing.T) {
	h := newHarness(t)
	h.loggedIn(t)
	h.m.State = StateTrade

	live := trading.NewStepSizeResolver(nil, decimal.Zero).WithFilters(map[string]decimal.Decimal{"BTCUSDT": d("0.001")})
	h.m.Update(StepSizesLoadedMsg{Steps: live})

	typeText(h.m, "b")
	s, ok := h.m.sizing.Session()
	require.True(t, ok)
	assert.True(t, s.StepSize.Equal(d("0.001")))
}
