package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"tradeassist/api"
	"tradeassist/auth"
	"tradeassist/config"
	"tradeassist/logger"
	"tradeassist/metrics"
	"tradeassist/models"
	"tradeassist/trading"
)

func main() {
	configPath := flag.String("config", "", "Config file (default ~/.tradeassist/config.yaml)")
	flag.Parse()

	config.LoadEnv()
	cfg, err := config.NewManager(*configPath).Load()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// The TUI owns the terminal, so logs only go to the file.
	if err := logger.Init(cfg.Logger(false)); err != nil {
		fmt.Printf("Error initializing logger: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := metrics.Serve(ctx, cfg.MetricsAddr); err != nil {
			logger.Errorf("metrics: %v", err)
		}
	}()

	client := api.NewClient(cfg.Client())
	steps, err := stepSizes(cfg)
	if err != nil {
		fmt.Printf("Error loading step sizes: %v\n", err)
		os.Exit(1)
	}
	seed, _ := cfg.SeedFraction()

	model := models.NewAppModel(models.Options{
		Backend:        client,
		Auth:           auth.NewService(client, auth.NewStore(cfg.Session.File), cfg.SessionTTL()),
		Market:         trading.NewMarketContext(client),
		Gateway:        trading.NewGateway(client),
		Sizing:         trading.NewController(steps, trading.WithSeedFraction(seed)),
		QuoteAsset:     cfg.QuoteAsset(),
		PriceEvery:     cfg.PriceInterval(),
		PortfolioEvery: cfg.PortfolioInterval(),
	})
	defer model.Close()

	p := tea.NewProgram(model, tea.WithAltScreen())

	if cfg.Exchange.LiveFilters {
		go func() {
			if live, ok := liveStepSizes(ctx, cfg, steps); ok {
				p.Send(models.StepSizesLoadedMsg{Steps: live})
			}
		}()
	}

	logger.Infof("tradeassist starting against %s", client.BaseURL())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Error running program: %v", err)
		os.Exit(1)
	}
}

// listedBases are the coins whose filters are fetched at startup
var listedBases = []string{"BTC", "ETH", "BNB", "SOL", "XRP", "ADA", "AVAX", "DOGE", "DOT", "LINK"}

// stepSizes builds the resolver from the built-in table and config overrides
func stepSizes(cfg *config.Config) (*trading.StepSizeResolver, error) {
	fallback, err := cfg.DefaultStep()
	if err != nil {
		return nil, err
	}
	overrides, err := cfg.StepSizeOverrides()
	if err != nil {
		return nil, err
	}
	return trading.NewStepSizeResolver(overrides, fallback), nil
}

// liveStepSizes layers exchange LOT_SIZE filters over steps. On failure the
// configured table stays in use.
func liveStepSizes(ctx context.Context, cfg *config.Config, steps *trading.StepSizeResolver) (*trading.StepSizeResolver, bool) {
	seen := make(map[string]bool)
	var symbols []string
	add := func(sym string) {
		if !seen[sym] {
			seen[sym] = true
			symbols = append(symbols, sym)
		}
	}
	for _, base := range listedBases {
		add(base + cfg.QuoteAsset())
	}
	for sym := range cfg.Trading.StepSizes {
		add(trading.NormalizeSymbol(sym))
	}

	fetchCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	filters, err := api.NewExchangeInfoClient(cfg.Exchange.BaseURL, cfg.APITimeout()).StepSizes(fetchCtx, symbols)
	if err != nil {
		logger.Warnf("live exchange filters unavailable, using configured step sizes: %v", err)
		return nil, false
	}
	logger.Infof("loaded %d live step sizes", len(filters))
	return steps.WithFilters(filters), true
}
