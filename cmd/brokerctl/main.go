// brokerctl is a small command-line client for the brokerage auth service.
// It drives the same session cache the dashboard uses, including the offline
// fallback mode, against an on-disk store.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lmittmann/tint"

	"github.com/quantleap/brokerage/internal/session"
)

func main() {
	serverURL := flag.String("server", "http://localhost:3002", "auth service base URL")
	dataDir := flag.String("data", defaultDataDir(), "directory for the local session store")
	email := flag.String("email", "", "account email")
	username := flag.String("username", "", "account username (signup only)")
	password := flag.String("password", "", "account password")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: brokerctl [flags] <signup|login|whoami|logout>")
		flag.PrintDefaults()
		os.Exit(2)
	}
	command := flag.Arg(0)

	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: slog.LevelWarn}))
	ctx := context.Background()

	if err := os.MkdirAll(*dataDir, 0o700); err != nil {
		fatal(logger, "failed to create data directory", err)
	}
	store, err := session.OpenStore(ctx, filepath.Join(*dataDir, "session.db"))
	if err != nil {
		fatal(logger, "failed to open session store", err)
	}
	defer store.Close()

	client := session.NewHTTPClient(*serverURL)
	fallback := session.NewFallbackStore(store)
	cache := session.NewCache(client, store, fallback, logger)

	switch command {
	case "signup":
		requireFlags(map[string]string{"email": *email, "username": *username, "password": *password})
		creds, err := cache.Signup(ctx, *email, *username, *password, *password)
		if err != nil {
			fatal(logger, "signup failed", err)
		}
		printSession(creds)

	case "login":
		requireFlags(map[string]string{"email": *email, "password": *password})
		creds, err := cache.Login(ctx, *email, *password)
		if err != nil {
			fatal(logger, "login failed", err)
		}
		printSession(creds)

	case "whoami":
		if err := cache.Init(ctx); err != nil {
			fatal(logger, "session verification failed", err)
		}
		user := cache.User()
		if user == nil {
			fmt.Println("not logged in")
			os.Exit(1)
		}
		fmt.Printf("%s <%s> (id %s)\n", user.Username, user.Email, user.ID)
		if session.IsLocalToken(cache.Token()) {
			fmt.Println("(offline session, not confirmed by the server)")
		}

	case "logout":
		cache.Logout(ctx)
		fmt.Println("logged out")

	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", command)
		os.Exit(2)
	}
}

func printSession(creds *session.Credentials) {
	fmt.Printf("logged in as %s <%s>\n", creds.User.Username, creds.User.Email)
	if session.IsLocalToken(creds.Token) {
		fmt.Println("(offline session, stored locally only)")
	}
}

func requireFlags(flags map[string]string) {
	for name, value := range flags {
		if value == "" {
			fmt.Fprintf(os.Stderr, "missing required flag -%s\n", name)
			os.Exit(2)
		}
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".brokerage"
	}
	return filepath.Join(home, ".brokerage")
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, slog.Any("error", err))
	os.Exit(1)
}
