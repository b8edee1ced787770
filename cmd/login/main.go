package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"tradeassist/api"
	"tradeassist/auth"
	"tradeassist/config"
	"tradeassist/logger"
)

func main() {
	var (
		configPath = flag.String("config", "", "Config file (default ~/.tradeassist/config.yaml)")
		email      = flag.String("email", "", "Account email (prompted if empty)")
		logout     = flag.Bool("logout", false, "Forget the stored session")
		status     = flag.Bool("status", false, "Show the stored session")
	)
	flag.Parse()

	config.LoadEnv()
	cfg, err := config.NewManager(*configPath).Load()
	if err != nil {
		fmt.Printf("❌ Error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Logger(false)); err != nil {
		fmt.Printf("❌ Error initializing logger: %v\n", err)
		os.Exit(1)
	}

	client := api.NewClient(cfg.Client())
	store := auth.NewStore(cfg.Session.File)
	svc := auth.NewService(client, store, cfg.SessionTTL())

	switch {
	case *logout:
		if err := svc.Logout(); err != nil {
			fmt.Printf("❌ Logout failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("🔓 Session cleared")
		return
	case *status:
		showStatus(svc, store)
		return
	}

	fmt.Printf("=== TRADE ASSIST LOGIN (%s) ===\n\n", client.BaseURL())

	reader := bufio.NewReader(os.Stdin)
	if *email == "" {
		fmt.Print("Email: ")
		line, _ := reader.ReadString('\n')
		*email = strings.TrimSpace(line)
	}

	fmt.Print("Password: ")
	passwordBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		fmt.Printf("❌ Could not read password: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.APITimeout())
	defer cancel()

	session, err := svc.Login(ctx, *email, string(passwordBytes))
	if err != nil {
		fmt.Printf("❌ LOGIN FAILED: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✅ Logged in as %s\n", session.DisplayName())
	fmt.Printf("   Session stored in %s\n", store.Path())
	if session.ExpiresAt > 0 {
		fmt.Printf("   Valid until %s\n", time.Unix(session.ExpiresAt, 0).Format(time.RFC1123))
	}
}

func showStatus(svc *auth.Service, store *auth.Store) {
	session, err := svc.Restore()
	if err != nil {
		fmt.Printf("❌ Could not read %s: %v\n", store.Path(), err)
		os.Exit(1)
	}
	if session == nil {
		fmt.Println("🔴 Not logged in")
		return
	}
	fmt.Printf("🟢 Logged in as %s\n", session.DisplayName())
	if session.ExpiresAt > 0 {
		fmt.Printf("   Valid until %s\n", time.Unix(session.ExpiresAt, 0).Format(time.RFC1123))
	}
}
