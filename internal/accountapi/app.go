package accountapi

import (
	"time"

	"go.uber.org/zap"

	"accountgw/internal/shopify"
	"accountgw/pkg/config"
)

// App is the account-service application container.
//
// Keep it lean: shared deps and config only. Request-scoped work goes
// through context.
type App struct {
	log       *zap.SugaredLogger
	cfg       config.Config
	shop      *shopify.Client
	startTime time.Time
}

func New(log *zap.SugaredLogger, cfg config.Config, shop *shopify.Client) *App {
	return &App{
		log:       log,
		cfg:       cfg,
		shop:      shop,
		startTime: time.Now(),
	}
}
