package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

var (
	accent     = lipgloss.Color("#7D56F4")
	border     = lipgloss.Color("#874BFD")
	text       = lipgloss.Color("#FAFAFA")
	muted      = lipgloss.Color("#666666")
	green      = lipgloss.Color("#04B575")
	red        = lipgloss.Color("#FF5F87")
	orange     = lipgloss.Color("#FFA500")
	cyan       = lipgloss.Color("#00CED1")
	highlight  = lipgloss.Color("#EE6FF8")
	background = lipgloss.Color("#000000")

	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accent).
			Background(background).
			Padding(1, 2).
			Align(lipgloss.Center)

	MenuStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(border).
			Padding(1, 2).
			MarginTop(1)

	// DialogStyle frames the buy/sell sizing dialog
	DialogStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(highlight).
			Padding(1, 2).
			MarginTop(1)

	SelectedStyle   = lipgloss.NewStyle().Foreground(highlight).Bold(true)
	UnselectedStyle = lipgloss.NewStyle().Foreground(text)
	DisabledStyle   = lipgloss.NewStyle().Foreground(muted)

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(text).
			Background(accent).
			Padding(0, 1)

	InfoStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderTop(true).
			BorderForeground(border)

	ValueStyle    = lipgloss.NewStyle().Bold(true).Foreground(text)
	PositiveStyle = lipgloss.NewStyle().Foreground(green).Bold(true)
	NegativeStyle = lipgloss.NewStyle().Foreground(red).Bold(true)
	ErrorStyle    = lipgloss.NewStyle().Foreground(red)
	WarningStyle  = lipgloss.NewStyle().Foreground(orange)
	SuccessStyle  = lipgloss.NewStyle().Foreground(green)

	TableHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(accent)
	TableRowStyle    = lipgloss.NewStyle().Foreground(text)

	LoadingStyle = lipgloss.NewStyle().Foreground(orange).Bold(true)

	InputStyle = lipgloss.NewStyle().
			Foreground(text).
			Background(border).
			Padding(0, 1)

	FocusedInputStyle = InputStyle.Copy().
				Background(highlight).
				Bold(true)

	PriceStyle       = lipgloss.NewStyle().Foreground(orange).Bold(true)
	MarketValueStyle = lipgloss.NewStyle().Foreground(cyan).Bold(true)

	// Chat bubbles
	UserMessageStyle = lipgloss.NewStyle().Foreground(highlight).Bold(true)
	BotMessageStyle  = lipgloss.NewStyle().Foreground(cyan)

	sliderFilled = lipgloss.NewStyle().Foreground(highlight)
	sliderEmpty  = lipgloss.NewStyle().Foreground(muted)
)

var (
	one      = decimal.NewFromInt(1)
	ten      = decimal.NewFromInt(10)
	thousand = decimal.NewFromInt(1_000)
	million  = decimal.NewFromInt(1_000_000)
	billion  = decimal.NewFromInt(1_000_000_000)
)

// Money prints a quote amount with two decimals
func Money(v decimal.Decimal) string {
	if v.IsNegative() {
		return "-$" + v.Neg().StringFixed(2)
	}
	return "$" + v.StringFixed(2)
}

// Price scales precision to the magnitude of the price
func Price(v decimal.Decimal) string {
	abs := v.Abs()
	switch {
	case abs.IsZero():
		return "$0.00"
	case abs.LessThan(one):
		return "$" + v.StringFixed(8)
	case abs.LessThan(ten):
		return "$" + v.StringFixed(4)
	default:
		return "$" + v.StringFixed(2)
	}
}

// Quantity trims trailing zeros from an asset amount
func Quantity(v decimal.Decimal) string {
	return v.String()
}

// Percent prints a signed percentage
func Percent(v decimal.Decimal) string {
	if v.IsNegative() {
		return v.StringFixed(2) + "%"
	}
	return "+" + v.StringFixed(2) + "%"
}

// Compact prints large amounts as K/M/B
func Compact(v decimal.Decimal) string {
	abs := v.Abs()
	switch {
	case abs.GreaterThanOrEqual(billion):
		return "$" + v.Div(billion).StringFixed(1) + "B"
	case abs.GreaterThanOrEqual(million):
		return "$" + v.Div(million).StringFixed(1) + "M"
	case abs.GreaterThanOrEqual(thousand):
		return "$" + v.Div(thousand).StringFixed(1) + "K"
	}
	return "$" + v.StringFixed(2)
}

// FormatPrice renders a price in the price color
func FormatPrice(v decimal.Decimal) string {
	return PriceStyle.Render(Price(v))
}

// FormatValue renders a holding value
func FormatValue(v decimal.Decimal) string {
	return MarketValueStyle.Render(Money(v))
}

// FormatProfit renders a signed P&L amount in green or red
func FormatProfit(v decimal.Decimal) string {
	if v.IsNegative() {
		return NegativeStyle.Render(Money(v))
	}
	return PositiveStyle.Render("+" + Money(v))
}

// FormatPercentage renders a signed percentage in green or red
func FormatPercentage(v decimal.Decimal) string {
	if v.IsNegative() {
		return NegativeStyle.Render(Percent(v))
	}
	return PositiveStyle.Render(Percent(v))
}

// Slider draws a bar of width cells filled to percent (0..100)
func Slider(percent decimal.Decimal, width int) string {
	if width <= 0 {
		return ""
	}
	filled := int(percent.Mul(decimal.NewFromInt(int64(width))).Div(decimal.NewFromInt(100)).IntPart())
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}
	return sliderFilled.Render(strings.Repeat("█", filled)) +
		sliderEmpty.Render(strings.Repeat("░", width-filled))
}
