package models

import (
	"fmt"
	"strings"

	"tradeassist/portfolio"
	"tradeassist/trading"
	"tradeassist/ui"
)

const sliderWidth = 30

func (m *AppModel) statusLines(content *strings.Builder) {
	if m.Error != "" {
		content.WriteString(ui.NegativeStyle.Render("❌ "+m.Error) + "\n\n")
	}
	if m.Notice != "" {
		content.WriteString(ui.SuccessStyle.Render(m.Notice) + "\n\n")
	}
}

func (m *AppModel) menuView() string {
	title := ui.TitleStyle.Render("🚀 TRADE ASSIST 🚀\nCrypto Terminal Assistant")

	var menu strings.Builder
	menu.WriteString("Choose an option:\n\n")

	for i, choice := range m.Choices {
		cursor := " "
		if m.Cursor == i {
			cursor = ">"
			choice = ui.SelectedStyle.Render(choice)
		} else {
			choice = ui.UnselectedStyle.Render(choice)
		}

		if needsAuth(i) && !m.Authenticated {
			choice = ui.DisabledStyle.Render(m.Choices[i] + " (Login Required)")
		} else if i == choiceLogout && !m.Authenticated {
			choice = ui.DisabledStyle.Render(m.Choices[i] + " (Not Logged In)")
		}

		menu.WriteString(fmt.Sprintf("%s %s\n", cursor, choice))
	}

	var status strings.Builder
	m.statusLines(&status)

	authStatus := "🔴 Not Authenticated"
	if m.Authenticated {
		authStatus = fmt.Sprintf("🟢 Authenticated as %s", m.Username)
	}

	footer := ui.InfoStyle.Render(fmt.Sprintf("\nStatus: %s\nPress 'q' to quit • Use ↑↓ to navigate • Enter to select • 1-9 shortcuts", authStatus))

	return fmt.Sprintf("%s\n\n%s%s\n%s", title, status.String(), ui.MenuStyle.Render(menu.String()), footer)
}

func (m *AppModel) formView(heading, intro string, form *Form, busy string) string {
	title := ui.HeaderStyle.Render(heading)

	var content strings.Builder
	m.statusLines(&content)

	if m.Loading {
		content.WriteString(ui.LoadingStyle.Render("🔄 "+busy) + "\n\n")
	} else {
		content.WriteString(ui.PositiveStyle.Render(intro) + "\n\n")
	}

	for i, field := range form.Fields {
		value := form.Display(i)
		style := ui.InputStyle
		if i == form.Focus {
			style = ui.FocusedInputStyle
			value += "│"
		}
		content.WriteString(fmt.Sprintf("%-11s %s\n", field.Label+":", style.Render(value)))
	}

	footer := ui.InfoStyle.Render("Tab/↑↓ move between fields • Enter to submit • Ctrl+V paste • Ctrl+R show password • Esc to cancel")
	return fmt.Sprintf("%s\n%s\n%s", title, ui.MenuStyle.Render(content.String()), footer)
}

func (m *AppModel) loginView() string {
	return m.formView("🔐 LOGIN", "Sign in with your assistant account:", &m.LoginForm, "Signing in...")
}

func (m *AppModel) registerView() string {
	return m.formView("📝 CREATE ACCOUNT", "Register a new assistant account:", &m.RegisterForm, "Creating account...")
}

func (m *AppModel) moversTable(content *strings.Builder, heading string, tickers []trading.Ticker) {
	content.WriteString(heading + "\n")
	content.WriteString(ui.TableHeaderStyle.Render(fmt.Sprintf("%-12s %-16s %s", "Symbol", "Price", "24h")) + "\n")
	for _, t := range tickers {
		content.WriteString(fmt.Sprintf("%-12s %-16s %s\n",
			t.Symbol,
			ui.Price(t.Price),
			ui.FormatPercentage(t.PercentChange24h),
		))
	}
	content.WriteString("\n")
}

func (m *AppModel) dashboardView() string {
	title := ui.HeaderStyle.Render("📊 MARKET DASHBOARD")

	var content strings.Builder
	m.statusLines(&content)

	if m.Loading {
		content.WriteString(ui.LoadingStyle.Render("🔄 Refreshing...") + "\n\n")
	}

	if m.Authenticated {
		icon := "📈"
		if !m.summary.InProfit() {
			icon = "📉"
		}
		content.WriteString(icon + " PORTFOLIO\n")
		content.WriteString("════════════\n")
		content.WriteString(fmt.Sprintf("Total Value:     %s\n", ui.FormatValue(m.summary.TotalValue)))
		content.WriteString(fmt.Sprintf("Profit/Loss:     %s (%s)\n\n",
			ui.FormatProfit(m.summary.TotalProfit),
			ui.FormatPercentage(m.summary.ProfitPercent)))
	}

	if len(m.snapshot.Tickers) == 0 {
		content.WriteString("📊 Loading prices...\n\n")
	} else {
		m.moversTable(&content, "🚀 TOP GAINERS (24H)", m.gainers)
		m.moversTable(&content, "📉 TOP LOSERS (24H)", m.losers)
	}

	if m.Authenticated {
		content.WriteString("📋 RECENT ACTIVITY\n")
		content.WriteString("══════════════════\n")
		if len(m.Transactions) == 0 {
			content.WriteString("No transactions yet.\n")
		}
		for i, tx := range m.Transactions {
			if i == recentActivity {
				break
			}
			when := ""
			if ts, ok := tx.When(); ok {
				when = ts.Local().Format("Jan 02 15:04")
			}
			content.WriteString(fmt.Sprintf("%-13s %-30s %s\n", when, tx.Label(), tx.Status))
		}
		content.WriteString("\n")
	}

	if !m.snapshot.PricesAt.IsZero() {
		content.WriteString(fmt.Sprintf("Prices updated: %s\n", m.snapshot.PricesAt.Local().Format("3:04:05 PM")))
	}

	footer := ui.InfoStyle.Render(fmt.Sprintf("Press 'R' or 'F5' to refresh • 'Esc' to return to menu • Auto-refresh every %s", m.priceEvery))
	return fmt.Sprintf("%s\n%s\n%s", title, ui.MenuStyle.Render(content.String()), footer)
}

func (m *AppModel) submittingLine(content *strings.Builder) {
	if id, ok := m.sizing.InFlight(); ok {
		content.WriteString(ui.LoadingStyle.Render("⏳ Waiting for order "+shortID(id)) + "\n\n")
	}
}

func (m *AppModel) tradeView() string {
	title := ui.HeaderStyle.Render("📈 TRADE")

	if m.sizing.State() == trading.StateOpen {
		return fmt.Sprintf("%s\n%s", title, m.dialogView())
	}

	var content strings.Builder
	m.statusLines(&content)
	m.submittingLine(&content)

	if len(m.tickers) == 0 {
		content.WriteString("📊 Loading prices...\n")
	} else {
		content.WriteString(ui.TableHeaderStyle.Render(fmt.Sprintf("  %-12s %-16s %-10s %s", "Symbol", "Price", "24h", "Free")) + "\n")
		for i, t := range m.tickers {
			cursor := " "
			symbol := t.Symbol
			if i == m.TradeCursor {
				cursor = ">"
				symbol = ui.SelectedStyle.Render(fmt.Sprintf("%-12s", t.Symbol))
			} else {
				symbol = fmt.Sprintf("%-12s", symbol)
			}
			base, _ := trading.SplitSymbol(t.Symbol)
			freeStr := ""
			if h, ok := m.snapshot.Holding(base); ok && h.Free.IsPositive() {
				freeStr = ui.Quantity(h.Free) + " " + base
			}
			content.WriteString(fmt.Sprintf("%s %s %-16s %-10s %s\n",
				cursor, symbol, ui.Price(t.Price), ui.FormatPercentage(t.PercentChange24h), freeStr))
		}
	}

	content.WriteString(fmt.Sprintf("\nAvailable: %s %s\n", ui.Quantity(m.snapshot.FreeBalance(m.quote)), m.quote))

	footer := ui.InfoStyle.Render("↑↓ select • 'B'/Enter buy • 'S' sell • 'R' refresh • 'Esc' menu")
	return fmt.Sprintf("%s\n%s\n%s", title, ui.MenuStyle.Render(content.String()), footer)
}

func (m *AppModel) assetsView() string {
	title := ui.HeaderStyle.Render("💰 ASSETS")

	if m.sizing.State() == trading.StateOpen {
		return fmt.Sprintf("%s\n%s", title, m.dialogView())
	}

	var content strings.Builder
	m.statusLines(&content)
	m.submittingLine(&content)

	content.WriteString(fmt.Sprintf("Total Value:     %s\n", ui.FormatValue(m.summary.TotalValue)))
	content.WriteString(fmt.Sprintf("Total Cost:      %s\n", ui.Money(m.summary.TotalCost)))
	content.WriteString(fmt.Sprintf("Profit/Loss:     %s (%s)\n\n",
		ui.FormatProfit(m.summary.TotalProfit),
		ui.FormatPercentage(m.summary.ProfitPercent)))

	if len(m.holdings) == 0 {
		content.WriteString("No holdings found.\n")
	} else {
		content.WriteString(ui.TableHeaderStyle.Render(fmt.Sprintf("  %-8s %-14s %-14s %-14s %-14s %s", "Asset", "Free", "Locked", "Price", "Value", "PnL")) + "\n")
		for i, h := range m.holdings {
			cursor := " "
			asset := fmt.Sprintf("%-8s", h.Asset)
			if i == m.AssetCursor {
				cursor = ">"
				asset = ui.SelectedStyle.Render(asset)
			}
			content.WriteString(fmt.Sprintf("%s %s %-14s %-14s %-14s %-14s %s %s\n",
				cursor,
				asset,
				ui.Quantity(h.Free),
				ui.Quantity(h.Locked),
				ui.Price(h.CurrentPrice),
				ui.Money(portfolio.Value(h)),
				ui.FormatProfit(h.PnL),
				ui.FormatPercentage(h.PnLPercent),
			))
		}
	}

	if !m.snapshot.PortfolioAt.IsZero() {
		content.WriteString(fmt.Sprintf("\nLast updated: %s\n", m.snapshot.PortfolioAt.Local().Format("3:04:05 PM")))
	}

	footer := ui.InfoStyle.Render(fmt.Sprintf("↑↓ select • 'B' buy / 'S' sell against %s • 'R' refresh • 'Esc' menu", m.quote))
	return fmt.Sprintf("%s\n%s\n%s", title, ui.MenuStyle.Render(content.String()), footer)
}

func (m *AppModel) dialogView() string {
	s, ok := m.sizing.Session()
	if !ok {
		return ""
	}

	var content strings.Builder

	heading := ui.PositiveStyle.Render(fmt.Sprintf("BUY %s", s.Base))
	available := fmt.Sprintf("%s %s", ui.Quantity(m.snapshot.FreeBalance(s.Quote)), s.Quote)
	if s.Side == trading.SideSell {
		heading = ui.NegativeStyle.Render(fmt.Sprintf("SELL %s", s.Base))
		available = fmt.Sprintf("%s %s", ui.Quantity(s.Ceiling), s.Base)
	}
	content.WriteString(fmt.Sprintf("%s  %s\n\n", heading, ui.DisabledStyle.Render(s.Symbol)))

	content.WriteString(fmt.Sprintf("Price:       %s\n", ui.FormatPrice(s.Price)))
	content.WriteString(fmt.Sprintf("Available:   %s\n", available))
	content.WriteString(fmt.Sprintf("Max:         %s %s\n\n", s.Ceiling.StringFixed(trading.DisplayPlaces(s.StepSize)), s.Base))

	field := func(focus int, label, value, placeholder string) {
		style := ui.InputStyle
		if m.DialogFocus == focus {
			style = ui.FocusedInputStyle
			value += "│"
		} else if value == "" {
			value = placeholder
		}
		content.WriteString(fmt.Sprintf("%-12s %s\n", label, style.Render(value)))
	}

	slider := ui.Slider(s.SliderPercent(), sliderWidth)
	marker := " "
	if m.DialogFocus == focusSlider {
		marker = ">"
	}
	content.WriteString(fmt.Sprintf("%-12s%s%s %s\n", "Amount %:", marker, slider, s.SliderPercent().StringFixed(0)+"%"))
	field(focusAmount, "Amount:", s.RawQuantity, "0")
	field(focusPrice, "Limit price:", s.RawCustomPrice, "market")
	content.WriteString("\n")

	content.WriteString(fmt.Sprintf("Order type:  %s\n", s.Kind()))
	content.WriteString(fmt.Sprintf("Total:       %s\n", ui.FormatValue(s.Notional)))
	if s.CustomPrice.Valid {
		content.WriteString(fmt.Sprintf("At limit:    %s\n", ui.Money(s.Quantity.Mul(s.CustomPrice.Decimal))))
	}
	content.WriteString(fmt.Sprintf("Step size:   %s\n", s.StepSize))

	if s.OverCeiling() {
		content.WriteString("\n" + ui.WarningStyle.Render("⚠️  Amount exceeds available balance") + "\n")
	}
	if q := trading.FloorToStep(s.Quantity, s.StepSize); s.Quantity.IsPositive() && !q.Equal(s.Quantity) {
		content.WriteString(ui.WarningStyle.Render(fmt.Sprintf("Will be sent as %s", q)) + "\n")
	}
	if m.Error != "" {
		content.WriteString("\n" + ui.NegativeStyle.Render("❌ "+m.Error) + "\n")
	}

	footer := ui.InfoStyle.Render("Tab switch field • ←/→ slider ±5% • Home/End 0/max • Space set • Enter confirm • Esc cancel • Ctrl+V paste")
	return fmt.Sprintf("%s\n%s", ui.DialogStyle.Render(content.String()), footer)
}

func (m *AppModel) ordersView() string {
	title := ui.HeaderStyle.Render("📋 ORDERS")

	var content strings.Builder
	m.statusLines(&content)
	m.submittingLine(&content)

	stats := m.gateway.Stats()
	content.WriteString(fmt.Sprintf("Submitted: %d   Succeeded: %s   Failed: %s\n\n",
		stats.Submitted,
		ui.PositiveStyle.Render(fmt.Sprint(stats.Succeeded)),
		ui.NegativeStyle.Render(fmt.Sprint(stats.Failed))))

	records := m.gateway.Recent(journalRows)
	if len(records) == 0 {
		content.WriteString("No orders placed in this session.\n")
	} else {
		content.WriteString(ui.TableHeaderStyle.Render(fmt.Sprintf("  %-9s %-11s %-5s %-7s %-14s %-12s %s", "Time", "Symbol", "Side", "Type", "Quantity", "Limit", "Result")) + "\n")
		for i, r := range records {
			cursor := " "
			if i == m.OrderCursor {
				cursor = ">"
			}
			limit := "-"
			if r.LimitPrice.Valid {
				limit = ui.Price(r.LimitPrice.Decimal)
			}
			result := ui.SuccessStyle.Render(r.Status)
			if r.Failed() {
				result = ui.ErrorStyle.Render(r.ErrorMsg)
			}
			content.WriteString(fmt.Sprintf("%s %-9s %-11s %-5s %-7s %-14s %-12s %s\n",
				cursor,
				r.SubmitTime.Local().Format("15:04:05"),
				r.Symbol,
				strings.ToUpper(r.Side.String()),
				r.Kind,
				ui.Quantity(r.Quantity),
				limit,
				result,
			))
		}
	}

	footer := ui.InfoStyle.Render("↑↓ select • 'C' copy order id • 'Esc' to return to menu")
	return fmt.Sprintf("%s\n%s\n%s", title, ui.MenuStyle.Render(content.String()), footer)
}

func (m *AppModel) chatView() string {
	title := ui.HeaderStyle.Render("💬 MARKET ASSISTANT")

	var content strings.Builder
	if m.Error != "" {
		content.WriteString(ui.NegativeStyle.Render("❌ "+m.Error) + "\n\n")
	}

	if len(m.ChatHistory) == 0 {
		content.WriteString(ui.DisabledStyle.Render("Ask about prices, trends or your portfolio.") + "\n\n")
	}

	history := m.ChatHistory
	if m.Height > 0 {
		// leave room for the frame, input and footer
		if keep := m.Height - 14; keep > 0 && len(history) > keep {
			history = history[len(history)-keep:]
		}
	}
	for _, line := range history {
		if line.FromUser {
			content.WriteString(ui.UserMessageStyle.Render("You: ") + line.Text + "\n")
		} else {
			content.WriteString(ui.BotMessageStyle.Render("Assistant: "+line.Text) + "\n")
		}
	}
	if m.ChatPending {
		content.WriteString(ui.LoadingStyle.Render("Assistant is typing...") + "\n")
	}

	content.WriteString("\n" + ui.FocusedInputStyle.Render("> "+m.ChatInput+"│") + "\n")

	footer := ui.InfoStyle.Render("Enter to send • Ctrl+V paste • Ctrl+L clear • 'Esc' to return to menu")
	return fmt.Sprintf("%s\n%s\n%s", title, ui.MenuStyle.Render(content.String()), footer)
}

func (m *AppModel) helpView() string {
	title := ui.HeaderStyle.Render("❓ HELP")

	var content strings.Builder
	content.WriteString("📊 Dashboard   top 6 gainers and losers, portfolio totals, recent activity\n")
	content.WriteString("📈 Trade       pick a pair and press B to buy or S to sell\n")
	content.WriteString("💰 Assets      your holdings; B/S trades the selected coin against " + m.quote + "\n")
	content.WriteString("📋 Orders      orders placed from this terminal and their results\n")
	content.WriteString("💬 Assistant   ask the market assistant\n\n")

	content.WriteString("ORDER DIALOG\n")
	content.WriteString("════════════\n")
	content.WriteString("Opens at a share (25% by default) of what you can afford (buy) or hold (sell).\n")
	content.WriteString("←/→ move the slider by 5%. Space, Tab or Enter sets the amount, snapped down to the coin's step size.\n")
	content.WriteString("Typing an amount keeps exactly what you type; it is rounded down to the\n")
	content.WriteString("step size only when the order is sent.\n")
	content.WriteString("A limit price turns the order into a LIMIT order; leave it empty for MARKET.\n\n")

	content.WriteString(fmt.Sprintf("Prices refresh every %s, balances every %s.\n", m.priceEvery, m.portfolioEvery))
	content.WriteString(fmt.Sprintf("Values are shown in %s.\n", m.quote))

	footer := ui.InfoStyle.Render("Press 'Esc' to return to menu • 'q' quits from the menu • Ctrl+C quits anywhere")
	return fmt.Sprintf("%s\n%s\n%s", title, ui.MenuStyle.Render(content.String()), footer)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
