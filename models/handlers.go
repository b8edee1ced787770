package models

import (
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"tradeassist/api"
	"tradeassist/trading"
)

// sliderStep moves the slider by 5% of the ceiling per key press
var sliderStep = decimal.New(5, -2)

func (m *AppModel) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	// The sizing dialog owns the keyboard while it is open
	if m.sizing.State() == trading.StateOpen {
		return m.handleDialogKeys(msg)
	}

	switch msg.String() {
	case "esc":
		m.State = StateMenu
		m.Error = ""
		m.Notice = ""
		return m, nil

	case "f5":
		return m.refresh()

	case "q":
		if !m.typing() {
			if m.State == StateMenu {
				return m, tea.Quit
			}
			m.State = StateMenu
			m.Error = ""
			m.Notice = ""
			return m, nil
		}

	case "r":
		if !m.typing() {
			return m.refresh()
		}
	}

	switch m.State {
	case StateMenu:
		return m.handleMenuKeys(msg)
	case StateLogin:
		return m.handleLoginKeys(msg)
	case StateRegister:
		return m.handleRegisterKeys(msg)
	case StateTrade:
		return m.handleTradeKeys(msg)
	case StateAssets:
		return m.handleAssetsKeys(msg)
	case StateOrders:
		return m.handleOrdersKeys(msg)
	case StateChat:
		return m.handleChatKeys(msg)
	}

	return m, nil
}

// typing reports screens where letters go into a text field
func (m *AppModel) typing() bool {
	return m.State == StateLogin || m.State == StateRegister || m.State == StateChat
}

func (m *AppModel) refresh() (tea.Model, tea.Cmd) {
	switch m.State {
	case StateDashboard, StateTrade, StateAssets, StateOrders:
		if m.Loading {
			return m, nil
		}
		m.Error = ""
		m.Loading = true
		return m, tea.Batch(m.refreshCmd(), m.loadTransactionsCmd())
	}
	return m, nil
}

// needsAuth marks menu entries that require a login
func needsAuth(choice int) bool {
	switch choice {
	case choiceTrade, choiceAssets, choiceOrders:
		return true
	}
	return false
}

func (m *AppModel) handleMenuKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key := msg.String(); key {
	case "up", "k":
		if m.Cursor > 0 {
			m.Cursor--
		}
	case "down", "j":
		if m.Cursor < len(m.Choices)-1 {
			m.Cursor++
		}
	case "enter", " ":
		return m.handleMenuSelection()
	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		m.Cursor = int(key[0]-'1')
		return m.handleMenuSelection()
	}
	return m, nil
}

func (m *AppModel) handleMenuSelection() (tea.Model, tea.Cmd) {
	if needsAuth(m.Cursor) && !m.Authenticated {
		m.Error = "Please login first"
		return m, nil
	}
	m.Error = ""
	m.Notice = ""

	switch m.Cursor {
	case choiceDashboard:
		m.State = StateDashboard
		return m, m.loadTransactionsCmd()
	case choiceTrade:
		m.State = StateTrade
	case choiceAssets:
		m.State = StateAssets
	case choiceOrders:
		m.State = StateOrders
		m.OrderCursor = 0
	case choiceChat:
		m.State = StateChat
	case choiceLogin:
		if m.Authenticated {
			m.Notice = fmt.Sprintf("Already logged in as %s", m.Username)
			return m, nil
		}
		m.State = StateLogin
	case choiceRegister:
		m.State = StateRegister
	case choiceHelp:
		m.State = StateHelp
	case choiceLogout:
		if !m.Authenticated {
			m.Error = "Not logged in"
			return m, nil
		}
		m.logout()
		m.Notice = "Logged out"
		return m, m.startFeed()
	case choiceExit:
		return m, tea.Quit
	}
	return m, nil
}

// handleFormKeys edits f and reports whether enter was pressed on the last field
func handleFormKeys(f *Form, msg tea.KeyMsg) (submit bool) {
	switch key := msg.String(); key {
	case "enter":
		if f.Last() {
			return true
		}
		f.Next()
	case "tab", "down":
		f.Next()
	case "shift+tab", "up":
		f.Prev()
	case "ctrl+r":
		f.Reveal = !f.Reveal
	case "ctrl+v":
		f.Paste()
	case "ctrl+a":
		f.Clear()
	case "backspace":
		f.Backspace()
	default:
		if printable(key) {
			f.Append(key)
		}
	}
	return false
}

func (m *AppModel) handleLoginKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.Loading {
		return m, nil
	}
	if !handleFormKeys(&m.LoginForm, msg) {
		return m, nil
	}
	m.Error = ""
	m.Notice = ""
	m.Loading = true
	return m, m.loginCmd(m.LoginForm.Value(0), m.LoginForm.Value(1))
}

func (m *AppModel) handleRegisterKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.Loading {
		return m, nil
	}
	if !handleFormKeys(&m.RegisterForm, msg) {
		return m, nil
	}
	m.Error = ""
	m.Notice = ""
	m.Loading = true
	return m, m.registerCmd(api.RegisterRequest{
		Name:     m.RegisterForm.Value(0),
		LastName: m.RegisterForm.Value(1),
		Email:    strings.TrimSpace(m.RegisterForm.Value(2)),
		Password: m.RegisterForm.Value(3),
	})
}

func (m *AppModel) handleTradeKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.TradeCursor > 0 {
			m.TradeCursor--
		}
	case "down", "j":
		if m.TradeCursor < len(m.tickers)-1 {
			m.TradeCursor++
		}
	case "b", "enter":
		if t, ok := m.selectedTicker(); ok {
			return m.openDialog(t.Symbol, trading.SideBuy)
		}
	case "s":
		if t, ok := m.selectedTicker(); ok {
			return m.openDialog(t.Symbol, trading.SideSell)
		}
	}
	return m, nil
}

func (m *AppModel) selectedTicker() (trading.Ticker, bool) {
	if m.TradeCursor < 0 || m.TradeCursor >= len(m.tickers) {
		return trading.Ticker{}, false
	}
	return m.tickers[m.TradeCursor], true
}

func (m *AppModel) handleAssetsKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key := msg.String(); key {
	case "up", "k":
		if m.AssetCursor > 0 {
			m.AssetCursor--
		}
	case "down", "j":
		if m.AssetCursor < len(m.holdings)-1 {
			m.AssetCursor++
		}
	case "b", "s":
		if m.AssetCursor >= len(m.holdings) {
			return m, nil
		}
		asset := strings.ToUpper(m.holdings[m.AssetCursor].Asset)
		if asset == m.quote {
			m.Error = fmt.Sprintf("%s is the quote asset, pick a coin to trade", asset)
			return m, nil
		}
		side := trading.SideBuy
		if key == "s" {
			side = trading.SideSell
		}
		return m.openDialog(asset+m.quote, side)
	}
	return m, nil
}

func (m *AppModel) handleOrdersKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	records := m.gateway.Recent(journalRows)
	switch msg.String() {
	case "up", "k":
		if m.OrderCursor > 0 {
			m.OrderCursor--
		}
	case "down", "j":
		if m.OrderCursor < len(records)-1 {
			m.OrderCursor++
		}
	case "c":
		if m.OrderCursor >= len(records) {
			return m, nil
		}
		r := records[m.OrderCursor]
		id := r.OrderID
		if id == "" {
			id = r.ClientOrderID
		}
		if err := clipboard.WriteAll(id); err != nil {
			m.Error = fmt.Sprintf("Copy failed: %v", err)
			return m, nil
		}
		m.Notice = fmt.Sprintf("Copied %s", id)
	}
	return m, nil
}

func (m *AppModel) handleChatKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key := msg.String(); key {
	case "enter":
		input := strings.TrimSpace(m.ChatInput)
		if input == "" || m.ChatPending {
			return m, nil
		}
		m.ChatHistory = append(m.ChatHistory, ChatLine{FromUser: true, Text: input})
		m.ChatInput = ""
		m.ChatPending = true
		m.Error = ""
		return m, m.chatCmd(input)
	case "backspace":
		m.ChatInput = trimLast(m.ChatInput)
	case "ctrl+v":
		if text, ok := readClipboard(); ok {
			m.ChatInput += text
		}
	case "ctrl+a":
		m.ChatInput = ""
	case "ctrl+l":
		m.ChatHistory = nil
	default:
		if printable(key) {
			m.ChatInput += key
		}
	}
	return m, nil
}

func (m *AppModel) openDialog(symbol string, side trading.Side) (tea.Model, tea.Cmd) {
	if !m.Authenticated {
		m.Error = "Please login first"
		return m, nil
	}
	if _, err := m.sizing.Open(symbol, side, m.market.Snapshot()); err != nil {
		switch {
		case errors.Is(err, trading.ErrSessionActive):
			m.Error = "An order is still being submitted"
		case errors.Is(err, trading.ErrUnpricedSymbol):
			m.Error = fmt.Sprintf("No price for %s yet, try again after the next refresh", trading.NormalizeSymbol(symbol))
		default:
			m.Error = fmt.Sprintf("Cannot open %s %s: %v", side, symbol, err)
		}
		return m, nil
	}
	m.Error = ""
	m.Notice = ""
	m.DialogFocus = focusAmount
	return m, nil
}

func (m *AppModel) handleDialogKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	session, ok := m.sizing.Session()
	if !ok {
		return m, nil
	}

	switch key := msg.String(); key {
	case "esc":
		m.sizing.Cancel()
		m.DialogFocus = focusSlider
		m.sliderMoved = false
		m.Error = ""
		return m, nil

	case "enter":
		m.releaseSlider()
		return m.confirmOrder()

	case "tab":
		m.releaseSlider()
		m.DialogFocus = (m.DialogFocus + 1) % dialogFields
	case "shift+tab":
		m.releaseSlider()
		m.DialogFocus = (m.DialogFocus + dialogFields - 1) % dialogFields

	case " ":
		m.releaseSlider()

	case "left", "right", "home", "end":
		if m.DialogFocus != focusSlider {
			return m, nil
		}
		delta := session.Ceiling.Mul(sliderStep)
		var v decimal.Decimal
		switch key {
		case "left":
			v = session.SliderValue.Sub(delta)
		case "right":
			v = session.SliderValue.Add(delta)
		case "home":
			v = decimal.Zero
		case "end":
			v = session.Ceiling
		}
		if err := m.sizing.SetFromSlider(v); err != nil {
			m.report(err)
			return m, nil
		}
		m.sliderMoved = true

	case "ctrl+v":
		if text, ok := readClipboard(); ok {
			m.editDialogField(session, func(string) string { return text })
		}
	case "ctrl+a":
		m.editDialogField(session, func(string) string { return "" })
	case "backspace":
		m.editDialogField(session, trimLast)
	default:
		if numeric(key) {
			m.editDialogField(session, func(s string) string { return s + key })
		}
	}
	return m, nil
}

// releaseSlider commits a moved slider. Space, leaving the slider and
// confirming all count as letting go of it.
func (m *AppModel) releaseSlider() {
	if !m.sliderMoved {
		return
	}
	m.sliderMoved = false
	if s, ok := m.sizing.Session(); ok {
		m.report(m.sizing.CommitSlider(s.SliderValue))
	}
}

// editDialogField rewrites the focused text field of the dialog
func (m *AppModel) editDialogField(session trading.Session, edit func(string) string) {
	m.sliderMoved = false
	switch m.DialogFocus {
	case focusAmount:
		m.report(m.sizing.SetFromText(edit(session.RawQuantity)))
	case focusPrice:
		m.report(m.sizing.SetCustomPrice(edit(session.RawCustomPrice)))
	}
}

func (m *AppModel) report(err error) {
	if err != nil {
		m.Error = err.Error()
	}
}

func (m *AppModel) confirmOrder() (tea.Model, tea.Cmd) {
	req, err := m.sizing.Confirm(m.token())
	if err != nil {
		switch {
		case errors.Is(err, trading.ErrUnauthenticated):
			m.Error = "Please login again before placing orders"
			m.State = StateLogin
		default:
			m.Error = fmt.Sprintf("Cannot place order: %v", err)
		}
		return m, nil
	}

	m.Error = ""
	m.Notice = fmt.Sprintf("⏳ Submitting %s %s %s...", req.Side, req.Quantity, req.Symbol)
	m.DialogFocus = focusSlider
	return m, m.submitOrderCmd(req)
}
