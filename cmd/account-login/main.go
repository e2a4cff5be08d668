// Command account-login performs the PKCE login flow against a running
// account-service from the terminal: it opens a login attempt, waits for the
// authorization redirect on a local callback listener, completes the
// exchange through the broker and persists the session to disk. A second
// run reuses (and if needed refreshes) the stored session.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"accountgw/pkg/backend"
	"accountgw/pkg/config"
	"accountgw/pkg/login"
	"accountgw/pkg/logger"
	"accountgw/pkg/session"
)

const (
	callbackAddr = "127.0.0.1:8976"
	callbackPath = "/callback"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)

	backendURL := os.Getenv("ACCOUNT_BACKEND_URL")
	if backendURL == "" {
		backendURL = "http://localhost:3601"
	}

	store := session.NewStore(session.NewFileStorage(sessionPath()))
	client := backend.New(backend.Config{
		BaseURL:    backendURL,
		ShopDomain: cfg.ShopDomain,
		APIVersion: cfg.APIVersion,
	}, store, backend.WithLogger(log))

	engine := login.NewEngine(login.Config{
		ShopDomain:  cfg.ShopDomain,
		ClientID:    cfg.ClientID,
		RedirectURI: fmt.Sprintf("http://%s%s", callbackAddr, callbackPath),
	}, session.NewMemoryStorage(), client)
	auth := login.NewAuthenticator(engine, client)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if auth.IsAuthenticated(ctx) {
		whoami(ctx, client)
		return
	}

	authURL, err := auth.BeginLogin(ctx)
	if err != nil {
		log.Fatalw("begin login", "err", err)
	}
	fmt.Println("Open this URL in your browser to log in:")
	fmt.Println()
	fmt.Println("  " + authURL)
	fmt.Println()

	cb := <-login.WaitForCallback(callbackAddr, callbackPath, 5*time.Minute)
	if cb.Err != nil {
		log.Fatalw("callback", "err", cb.Err)
	}
	if err := auth.CompleteLogin(ctx, cb.Code, cb.State); err != nil {
		log.Fatalw("complete login", "err", err)
	}
	fmt.Println("Login successful.")
	whoami(ctx, client)
}

func whoami(ctx context.Context, client *backend.Client) {
	res, err := client.Verify(ctx)
	if err != nil {
		fmt.Printf("Session stored, but verify failed: %v\n", err)
		return
	}
	fmt.Printf("Logged in as %s (%s)\n", res.Email, res.CustomerID)
}

func sessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "accountgw", "session.json")
}
