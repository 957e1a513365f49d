package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/mailgun/holster/v4/syncutil"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/ssgreg/repeat"

	"github.com/umi-digital/umi-farmd/internal/lib/farm"
	"github.com/umi-digital/umi-farmd/internal/lib/misc"
)

// Daemon serves the ledger API over HTTP and keeps the sqlite snapshot and
// prometheus gauges fresh in the background.
type Daemon struct {
	logger *slog.Logger
	engine *Engine
	cfg    *FarmConfig
	echo   *echo.Echo
}

func newDaemon(engine *Engine, cfg *FarmConfig) *Daemon {
	d := &Daemon{
		logger: engine.logger,
		engine: engine,
		cfg:    cfg,
	}
	d.echo = d.buildRoutes()
	return d
}

func (d *Daemon) start(ctx context.Context, wg *sync.WaitGroup, errc chan<- error) {
	d.logger.Info("Starting umi-farmd daemon", "listen", d.cfg.Listen)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := d.echo.Start(d.cfg.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		d.snapshotLoop(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		d.metricsLoop(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = d.echo.Shutdown(shutdownCtx)
	}()
}

// snapshotLoop periodically persists both ledgers. A failed save is retried
// with jittered backoff before waiting for the next tick.
func (d *Daemon) snapshotLoop(ctx context.Context) {
	defer d.logger.Info("Exiting snapshotLoop")
	interval := time.Duration(d.cfg.SnapshotInterval) * time.Second
	if d.engine.store == nil || interval <= 0 {
		d.logger.Info("snapshot persistence disabled")
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
			err := repeat.Repeat(
				repeat.Fn(func() error {
					if err := d.engine.persist(ctx); err != nil {
						return repeat.HintTemporary(err)
					}
					return nil
				}),
				repeat.StopOnSuccess(),
				repeat.LimitMaxTries(5),
				repeat.FnOnError(func(err error) error {
					misc.Warnf(d.logger, "retrying snapshot save, error:%v", err)
					return err
				}),
				repeat.WithDelay(
					repeat.SetContextHintStop(),
					(&repeat.FullJitterBackoffBuilder{
						BaseDelay: 1 * time.Second,
						MaxDelay:  5 * time.Second,
					}).Set(),
				),
			)
			if err != nil {
				misc.Errorf(d.logger, "snapshot save failed: %v", err)
			}
		}
	}
}

// metricsLoop refreshes the per-token gauges once a minute, fanning the
// token list out so one slow token doesn't delay the rest.
func (d *Daemon) metricsLoop(ctx context.Context) {
	defer d.logger.Info("Exiting metricsLoop")
	d.refreshMetrics()
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(1 * time.Minute):
			d.refreshMetrics()
		}
	}
}

func (d *Daemon) refreshMetrics() {
	fanOut := syncutil.NewFanOut(8)
	for _, token := range d.engine.farm.Tokens() {
		fanOut.Run(func(val any) error {
			d.engine.farm.ReportMetrics(val.(string))
			return nil
		}, token)
	}
	fanOut.Wait()
	d.engine.boosted.ReportMetrics()
}

func (d *Daemon) buildRoutes() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	g := e.Group("/v1/")

	g.GET("status", d.getStatus)
	g.GET("tokens", d.getTokens)

	g.POST("tokens/:token/funding", d.postFund)
	g.GET("tokens/:token/apy", d.getAPY)
	g.PUT("tokens/:token/apy", d.putAPY)
	g.POST("tokens/:token/stakes", d.postStake)
	g.POST("tokens/:token/unstakes", d.postUnstake)
	g.POST("tokens/:token/claims", d.postClaim)
	g.GET("tokens/:token/accounts/:account", d.getAccount)
	g.POST("tokens/pause", d.postPause)
	g.POST("tokens/unpause", d.postUnpause)

	g.POST("boosted/funding", d.postBoostedFund)
	g.GET("boosted/apy", d.getBoostedAPY)
	g.PUT("boosted/apy", d.putBoostedAPY)
	g.PUT("boosted/bonuses/:category", d.putBonus)
	g.GET("boosted/bonuses/:category", d.getBonus)
	g.POST("boosted/stakes", d.postBoostedStake)
	g.POST("boosted/unstakes", d.postBoostedUnstake)
	g.POST("boosted/claims", d.postBoostedClaim)
	g.POST("boosted/nfts/stakes", d.postNFTStake)
	g.POST("boosted/nfts/unstakes", d.postNFTUnstake)
	g.GET("boosted/accounts/:account", d.getBoostedAccount)
	g.POST("boosted/pause", d.postBoostedPause)
	g.POST("boosted/unpause", d.postBoostedUnpause)

	g.POST("minter/mints", d.postMint)
	g.GET("minter/nfts/:id", d.getMintedNFT)
	g.GET("minter/fee", d.getMintingFee)
	g.PUT("minter/fee", d.putMintingFee)
	g.PUT("minter/uri-prefix", d.putURIPrefix)
	g.POST("minter/pause", d.postMinterPause)
	g.POST("minter/unpause", d.postMinterUnpause)

	g.GET("convert/:amount", d.getConvert)

	return e
}

// apiError maps ledger errors onto HTTP statuses.
func apiError(c echo.Context, err error) error {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, farm.ErrUnknownToken),
		errors.Is(err, farm.ErrWrongStakeID),
		errors.Is(err, farm.ErrEmptyPosition),
		errors.Is(err, farm.ErrEmptyBalance):
		status = http.StatusNotFound
	case errors.Is(err, farm.ErrNotOwner),
		errors.Is(err, farm.ErrPaused):
		status = http.StatusForbidden
	case errors.Is(err, farm.ErrReserveTooLow),
		errors.Is(err, farm.ErrInsufficientStake):
		status = http.StatusConflict
	}
	return c.JSON(status, map[string]string{"error": err.Error()})
}

func parseAmount(raw string) (decimal.Decimal, error) {
	return decimal.NewFromString(raw)
}
