package models

import (
	"context"
	"fmt"
	"sort"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"

	"tradeassist/api"
	"tradeassist/auth"
	"tradeassist/logger"
	"tradeassist/metrics"
	"tradeassist/portfolio"
	"tradeassist/trading"
)

const (
	requestTimeout    = 30 * time.Second
	moversCount       = 6
	recentActivity    = 8
	journalRows       = 20
	defaultPriceEvery = 20 * time.Second
	defaultPortEvery  = 60 * time.Second
)

// Backend is the part of the REST client the screens call directly
type Backend interface {
	Chat(ctx context.Context, token, input string) (string, error)
	GetTransactions(ctx context.Context, token string) ([]api.Transaction, error)
}

// Options wires the screens to the trading core
type Options struct {
	Backend        Backend
	Auth           *auth.Service
	Market         *trading.MarketContext
	Gateway        *trading.Gateway
	Sizing         *trading.Controller
	QuoteAsset     string
	PriceEvery     time.Duration
	PortfolioEvery time.Duration
}

type AppModel struct {
	State         int
	Choices       []string
	Cursor        int
	Width         int
	Height        int
	Authenticated bool
	Username      string
	Error         string
	Notice        string
	Loading       bool

	session *auth.Session

	backend        Backend
	auth           *auth.Service
	market         *trading.MarketContext
	gateway        *trading.Gateway
	sizing         *trading.Controller
	quote          string
	priceEvery     time.Duration
	portfolioEvery time.Duration

	// Derived from the latest market snapshot
	snapshot *trading.Snapshot
	summary  portfolio.Summary
	holdings []trading.HoldingSnapshot
	tickers  []trading.Ticker
	gainers  []trading.Ticker
	losers   []trading.Ticker

	Transactions []api.Transaction

	updates     chan *trading.Snapshot
	unsubscribe func()
	feedCancel  context.CancelFunc

	LoginForm    Form
	RegisterForm Form

	TradeCursor int
	AssetCursor int
	OrderCursor int
	DialogFocus int
	sliderMoved bool

	ChatInput   string
	ChatHistory []ChatLine
	ChatPending bool
}

// ChatLine is one message of the assistant conversation
type ChatLine struct {
	FromUser bool
	Text     string
	At       time.Time
}

// App states
const (
	StateMenu = iota
	StateLogin
	StateRegister
	StateDashboard
	StateTrade
	StateAssets
	StateOrders
	StateChat
	StateHelp
)

// Sizing dialog fields
const (
	focusSlider = iota
	focusAmount
	focusPrice
	dialogFields
)

// Menu entries, in Choices order
const (
	choiceDashboard = iota
	choiceTrade
	choiceAssets
	choiceOrders
	choiceChat
	choiceLogin
	choiceRegister
	choiceHelp
	choiceLogout
	choiceExit
)

// NewAppModel builds the root model and restores a stored login
func NewAppModel(opts Options) *AppModel {
	m := &AppModel{
		State: StateMenu,
		Choices: []string{
			"📊 Dashboard",
			"📈 Trade",
			"💰 Assets",
			"📋 Orders",
			"💬 Assistant",
			"🔐 Login",
			"📝 Register",
			"❓ Help",
			"🔓 Logout",
			"🚪 Exit",
		},
		backend:        opts.Backend,
		auth:           opts.Auth,
		market:         opts.Market,
		gateway:        opts.Gateway,
		sizing:         opts.Sizing,
		quote:          opts.QuoteAsset,
		priceEvery:     opts.PriceEvery,
		portfolioEvery: opts.PortfolioEvery,
		updates:        make(chan *trading.Snapshot, 1),
		LoginForm:      newLoginForm(),
		RegisterForm:   newRegisterForm(),
	}
	if m.quote == "" {
		m.quote = trading.DefaultQuoteAsset
	}
	if m.priceEvery <= 0 {
		m.priceEvery = defaultPriceEvery
	}
	if m.portfolioEvery <= 0 {
		m.portfolioEvery = defaultPortEvery
	}
	if m.sizing == nil {
		m.sizing = trading.NewController(nil)
	}

	m.applySnapshot(m.market.Snapshot())
	m.unsubscribe = m.market.Subscribe(m.publish)

	session, err := m.auth.Restore()
	if err != nil {
		logger.Warnf("could not restore session: %v", err)
	} else if session != nil {
		m.setSession(session)
	}
	return m
}

// Close stops the refresh loop and detaches from the market context
func (m *AppModel) Close() {
	if m.feedCancel != nil {
		m.feedCancel()
	}
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
		close(m.updates)
	}
}

func (m *AppModel) token() string {
	if m.session == nil {
		return ""
	}
	return m.session.Token
}

func (m *AppModel) setSession(s *auth.Session) {
	m.session = s
	m.Authenticated = true
	m.Username = s.DisplayName()
}

// publish runs on the refreshing goroutine. Only the newest snapshot is kept
// for the UI loop.
func (m *AppModel) publish(s *trading.Snapshot) {
	select {
	case m.updates <- s:
		return
	default:
	}
	select {
	case <-m.updates:
	default:
	}
	select {
	case m.updates <- s:
	default:
	}
}

func (m *AppModel) applySnapshot(s *trading.Snapshot) {
	m.snapshot = s
	m.sizing.Reprice(s)

	m.summary = portfolio.Summarize(s.Holdings)
	m.holdings = portfolio.ByValue(s.Holdings)
	m.gainers, m.losers = trading.TopMovers(s.Tickers, moversCount)

	m.tickers = make([]trading.Ticker, 0, len(s.Tickers))
	m.tickers = append(m.tickers, s.Tickers...)
	sort.SliceStable(m.tickers, func(i, j int) bool {
		return m.tickers[i].Symbol < m.tickers[j].Symbol
	})

	value, _ := m.summary.TotalValue.Float64()
	metrics.PortfolioValue.Set(value)

	m.TradeCursor = clampCursor(m.TradeCursor, len(m.tickers))
	m.AssetCursor = clampCursor(m.AssetCursor, len(m.holdings))
}

func clampCursor(cursor, n int) int {
	if cursor >= n {
		cursor = n - 1
	}
	if cursor < 0 {
		cursor = 0
	}
	return cursor
}

// logout forgets the session and everything fetched with it
func (m *AppModel) logout() {
	if err := m.auth.Logout(); err != nil {
		logger.Warnf("failed to clear session: %v", err)
	}
	m.sizing.Cancel()
	m.session = nil
	m.Authenticated = false
	m.Username = ""
	m.Transactions = nil
	m.DialogFocus = focusSlider
	m.sliderMoved = false
	m.market.Reset()
}

// expire handles a 401 from any authorized call
func (m *AppModel) expire() tea.Cmd {
	logger.Infof("session for %s rejected by backend, logging out", m.Username)
	m.logout()
	m.State = StateLogin
	m.Error = "Session expired, please log in again"
	return m.startFeed()
}

func (m *AppModel) Init() tea.Cmd {
	return tea.Batch(
		waitForSnapshot(m.updates),
		m.startFeed(),
		m.loadTransactionsCmd(),
	)
}

func (m *AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height

	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case snapshotMsg:
		if msg.snapshot != nil {
			m.applySnapshot(msg.snapshot)
		}
		return m, waitForSnapshot(m.updates)

	case refreshedMsg:
		m.Loading = false
		if msg.err != nil {
			if api.IsUnauthorized(msg.err) {
				return m, m.expire()
			}
			m.Error = fmt.Sprintf("Refresh failed: %v", msg.err)
		}

	case transactionsLoadedMsg:
		if msg.err != nil {
			if api.IsUnauthorized(msg.err) {
				return m, m.expire()
			}
			logger.Warnf("transactions: %v", msg.err)
			return m, nil
		}
		m.Transactions = msg.transactions

	case loginCompletedMsg:
		m.Loading = false
		if msg.err != nil {
			m.Error = fmt.Sprintf("Login failed: %v", msg.err)
			return m, nil
		}
		m.setSession(msg.session)
		m.LoginForm = newLoginForm()
		m.State = StateDashboard
		m.Error = ""
		m.Notice = fmt.Sprintf("Welcome, %s", m.Username)
		return m, tea.Batch(m.startFeed(), m.loadTransactionsCmd())

	case registerCompletedMsg:
		m.Loading = false
		if msg.err != nil {
			m.Error = fmt.Sprintf("Registration failed: %v", msg.err)
			return m, nil
		}
		m.Error = ""
		m.Notice = msg.message
		if m.Notice == "" {
			m.Notice = "Account created, you can log in now"
		}
		m.LoginForm = newLoginForm()
		m.LoginForm.Fields[0].Value = msg.email
		m.LoginForm.Focus = 1
		m.RegisterForm = newRegisterForm()
		m.State = StateLogin

	case orderPlacedMsg:
		if m.sizing.Settle(msg.clientOrderID, msg.err) {
			if msg.err != nil {
				if api.IsUnauthorized(msg.err) {
					return m, m.expire()
				}
				m.Error = fmt.Sprintf("Order failed: %v", msg.err)
				m.Notice = ""
			} else {
				m.Error = ""
				m.Notice = orderNotice(msg)
			}
		}
		return m, tea.Batch(m.refreshCmd(), m.loadTransactionsCmd())

	case StepSizesLoadedMsg:
		m.sizing.SetStepSizes(msg.Steps)

	case chatRespondedMsg:
		m.ChatPending = false
		if msg.err != nil {
			m.Error = fmt.Sprintf("Assistant unavailable: %v", msg.err)
			return m, nil
		}
		m.Error = ""
		m.ChatHistory = append(m.ChatHistory, ChatLine{Text: msg.reply, At: time.Now()})
	}

	return m, nil
}

func (m *AppModel) View() string {
	switch m.State {
	case StateMenu:
		return m.menuView()
	case StateLogin:
		return m.loginView()
	case StateRegister:
		return m.registerView()
	case StateDashboard:
		return m.dashboardView()
	case StateTrade:
		return m.tradeView()
	case StateAssets:
		return m.assetsView()
	case StateOrders:
		return m.ordersView()
	case StateChat:
		return m.chatView()
	case StateHelp:
		return m.helpView()
	default:
		return m.menuView()
	}
}

func orderNotice(msg orderPlacedMsg) string {
	id := msg.ack.OrderID
	if id == "" {
		id = msg.clientOrderID
	}
	status := msg.ack.Status
	if status == "" {
		status = "submitted"
	}
	return fmt.Sprintf("✅ %s %s %s %s (order %s)", status, msg.side, msg.quantity, msg.symbol, id)
}

// StepSizesLoadedMsg swaps the step table once live exchange filters arrive
type StepSizesLoadedMsg struct{ Steps *trading.StepSizeResolver }

// Message types for Bubble Tea
type snapshotMsg struct{ snapshot *trading.Snapshot }
type refreshedMsg struct{ err error }
type transactionsLoadedMsg struct {
	transactions []api.Transaction
	err          error
}
type loginCompletedMsg struct {
	session *auth.Session
	err     error
}
type registerCompletedMsg struct {
	email   string
	message string
	err     error
}
type orderPlacedMsg struct {
	clientOrderID string
	symbol        string
	side          trading.Side
	quantity      string
	ack           trading.Ack
	err           error
}
type chatRespondedMsg struct {
	reply string
	err   error
}

func waitForSnapshot(ch <-chan *trading.Snapshot) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return nil
		}
		return snapshotMsg{snapshot: s}
	}
}

// startFeed restarts the background refresh loop with the current token
func (m *AppModel) startFeed() tea.Cmd {
	if m.feedCancel != nil {
		m.feedCancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.feedCancel = cancel

	market, token := m.market, m.token()
	priceEvery, portfolioEvery := m.priceEvery, m.portfolioEvery
	return func() tea.Msg {
		market.Run(ctx, token, priceEvery, portfolioEvery)
		return nil
	}
}

func (m *AppModel) refreshCmd() tea.Cmd {
	market, token := m.market, m.token()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		_, err := market.RefreshPrices(ctx)
		if token != "" {
			if _, perr := market.Refresh(ctx, token); perr != nil {
				err = perr
			}
		}
		return refreshedMsg{err: err}
	}
}

func (m *AppModel) loadTransactionsCmd() tea.Cmd {
	token := m.token()
	if token == "" || m.backend == nil {
		return nil
	}
	backend := m.backend
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		txs, err := backend.GetTransactions(ctx, token)
		return transactionsLoadedMsg{transactions: txs, err: err}
	}
}

func (m *AppModel) loginCmd(email, password string) tea.Cmd {
	svc := m.auth
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		session, err := svc.Login(ctx, email, password)
		return loginCompletedMsg{session: session, err: err}
	}
}

func (m *AppModel) registerCmd(req api.RegisterRequest) tea.Cmd {
	svc := m.auth
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		message, err := svc.Register(ctx, req)
		return registerCompletedMsg{email: req.Email, message: message, err: err}
	}
}

// submitOrderCmd performs the one network call of a confirmed session. The
// controller is settled back on the UI loop.
func (m *AppModel) submitOrderCmd(req trading.OrderRequest) tea.Cmd {
	gateway, token := m.gateway, m.token()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		ack, err := gateway.Submit(ctx, req, token)
		return orderPlacedMsg{
			clientOrderID: req.ClientOrderID,
			symbol:        req.Symbol,
			side:          req.Side,
			quantity:      req.Quantity.String(),
			ack:           ack,
			err:           err,
		}
	}
}

func (m *AppModel) chatCmd(input string) tea.Cmd {
	if m.backend == nil {
		return func() tea.Msg { return chatRespondedMsg{err: errors.New("no backend configured")} }
	}
	backend, token := m.backend, m.token()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		reply, err := backend.Chat(ctx, token, input)
		return chatRespondedMsg{reply: reply, err: err}
	}
}
