package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"tradeassist/api"
	"tradeassist/config"
	"tradeassist/logger"
	"tradeassist/trading"
)

type stepFlags map[string]string

func (s stepFlags) String() string { return fmt.Sprint(map[string]string(s)) }

func (s stepFlags) Set(v string) error {
	sym, step, ok := strings.Cut(v, "=")
	if !ok {
		return fmt.Errorf("expected SYMBOL=STEP, got %q", v)
	}
	s[strings.ToUpper(strings.TrimSpace(sym))] = strings.TrimSpace(step)
	return nil
}

func main() {
	steps := stepFlags{}
	var (
		configPath = flag.String("config", "", "Config file (default ~/.tradeassist/config.yaml)")
		show       = flag.Bool("show", false, "Show current configuration")
		reset      = flag.Bool("reset", false, "Overwrite the file with defaults")
		apiURL     = flag.String("api", "", "Backend base URL")
		quote      = flag.String("quote", "", "Quote asset used by the assets screen")
		seed       = flag.String("seed", "", "Share of the maximum a new order opens at (0..1)")
		live       = flag.String("live-filters", "", "Fetch exchange step sizes at startup (true/false)")
		resolve    = flag.String("resolve", "", "Comma separated symbols to print the resolved step size for")
		fetch      = flag.Bool("fetch", false, "With -resolve, include live exchange filters")
	)
	flag.Var(steps, "step", "Step size override SYMBOL=STEP (repeatable)")
	flag.Parse()

	if err := logger.InitDefault(); err != nil {
		log.Fatalf("❌ Error initializing logger: %v", err)
	}
	config.LoadEnv()
	manager := config.NewManager(*configPath)

	if *reset {
		if err := manager.Save(config.Default()); err != nil {
			log.Fatalf("❌ Failed to reset config: %v", err)
		}
		fmt.Printf("✅ Defaults written to %s\n", manager.Path())
		return
	}

	cfg, err := manager.LoadFile()
	if err != nil {
		log.Fatalf("❌ Error loading config: %v", err)
	}

	if *resolve != "" {
		resolveSteps(cfg, strings.Split(*resolve, ","), *fetch)
		return
	}

	changed := false
	if *apiURL != "" {
		cfg.API.BaseURL = *apiURL
		changed = true
	}
	if *quote != "" {
		cfg.Trading.QuoteAsset = strings.ToUpper(*quote)
		changed = true
	}
	if *seed != "" {
		cfg.Trading.SeedFraction = *seed
		changed = true
	}
	if *live != "" {
		cfg.Exchange.LiveFilters = *live == "true" || *live == "1"
		changed = true
	}
	for sym, step := range steps {
		cfg.Trading.StepSizes[sym] = step
		changed = true
	}

	if changed {
		if err := cfg.Validate(); err != nil {
			log.Fatalf("❌ Invalid configuration: %v", err)
		}
		if err := manager.Save(cfg); err != nil {
			log.Fatalf("❌ Failed to save config: %v", err)
		}
		fmt.Printf("✅ Configuration saved to %s\n\n", manager.Path())
	}

	if *show || changed {
		showConfig(manager.Path(), cfg)
		return
	}

	flag.Usage()
}

func showConfig(path string, cfg *config.Config) {
	fmt.Println("⚙️  Trade Assist Configuration")
	fmt.Println("═══════════════════════════════")
	fmt.Printf("📁 File:              %s\n", path)
	fmt.Printf("🌐 Backend:           %s (timeout %s, %d retries)\n", cfg.API.BaseURL, cfg.APITimeout(), cfg.API.RetryCount)
	fmt.Printf("🏦 Exchange filters:  %s (live: %v)\n", cfg.Exchange.BaseURL, cfg.Exchange.LiveFilters)
	fmt.Printf("💱 Quote asset:       %s\n", cfg.QuoteAsset())
	fmt.Printf("🎚️  Seed fraction:     %s\n", cfg.Trading.SeedFraction)
	fmt.Printf("📏 Default step:      %s\n", cfg.Trading.DefaultStepSize)
	fmt.Printf("🔄 Refresh:           prices %s, portfolio %s\n", cfg.PriceInterval(), cfg.PortfolioInterval())
	fmt.Printf("📝 Log:               %s (%s)\n", cfg.Log.File, cfg.Log.Level)
	fmt.Printf("🔐 Session:           %s (ttl %s)\n", cfg.Session.File, cfg.SessionTTL())
	if cfg.MetricsAddr != "" {
		fmt.Printf("📈 Metrics:           %s/metrics\n", cfg.MetricsAddr)
	}

	if len(cfg.Trading.StepSizes) > 0 {
		fmt.Println("\n📏 Step size overrides:")
		symbols := make([]string, 0, len(cfg.Trading.StepSizes))
		for sym := range cfg.Trading.StepSizes {
			symbols = append(symbols, sym)
		}
		sort.Strings(symbols)
		for _, sym := range symbols {
			fmt.Printf("   %-12s %s\n", sym, cfg.Trading.StepSizes[sym])
		}
	}
}

func resolveSteps(cfg *config.Config, symbols []string, fetch bool) {
	fallback, err := cfg.DefaultStep()
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	overrides, err := cfg.StepSizeOverrides()
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	resolver := trading.NewStepSizeResolver(overrides, fallback)

	if fetch {
		client := api.NewExchangeInfoClient(cfg.Exchange.BaseURL, cfg.APITimeout())
		filters, err := client.StepSizes(context.Background(), symbols)
		if err != nil {
			fmt.Printf("⚠️  Live filters unavailable: %v\n\n", err)
		} else {
			resolver = resolver.WithFilters(filters)
		}
	}

	fmt.Printf("%-12s %-12s %-8s %s\n", "Symbol", "Step", "Source", "Display")
	for _, sym := range symbols {
		sym = trading.NormalizeSymbol(sym)
		if sym == "" {
			continue
		}
		step := resolver.Resolve(sym)
		source := "default"
		if resolver.Known(sym) {
			source = "table"
		}
		fmt.Printf("%-12s %-12s %-8s %s\n", sym, step, source, example(step))
	}
}

// example shows how a slider-committed quantity is printed for step
func example(step decimal.Decimal) string {
	return trading.FloorToStep(decimal.RequireFromString("1.23456789"), step).StringFixed(trading.DisplayPlaces(step))
}
