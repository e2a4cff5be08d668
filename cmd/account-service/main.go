package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"accountgw/internal/accountapi"
	"accountgw/internal/shopify"
	"accountgw/pkg/config"
	"accountgw/pkg/logger"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)

	shop := shopify.New(shopify.FromService(cfg), log)
	app := accountapi.New(log, cfg, shop)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: app.Handler()}
	go func() {
		log.Infow("account-service listening", "addr", cfg.HTTPAddr, "shop", cfg.ShopDomain)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("ListenAndServe", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	fmt.Println("account-service stopped")
}
