package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/samcharles93/pointernet/internal/api"
	"github.com/samcharles93/pointernet/internal/checkpoint"
	"github.com/samcharles93/pointernet/internal/logger"
	"github.com/samcharles93/pointernet/internal/pointer"
	"github.com/samcharles93/pointernet/internal/webui"
	"github.com/urfave/cli/v3"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		readTimeout time.Duration
		limit       float64
		burst       int
		maxBatch    int
		storeSize   int
		noUI        bool
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve predictions over a REST API",
		Flags: []cli.Flag{
			modelFlag(),
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8080",
				Destination: &addr,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "maximum time to read a request, headers and body",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
			&cli.Float64Flag{
				Name:        "rate",
				Usage:       "sustained requests per second (0 = unlimited)",
				Destination: &limit,
			},
			&cli.IntFlag{
				Name:        "burst",
				Usage:       "rate limiter burst size",
				Destination: &burst,
			},
			&cli.IntFlag{
				Name:        "max-batch",
				Usage:       "maximum sequences per request",
				Value:       256,
				Destination: &maxBatch,
			},
			&cli.IntFlag{
				Name:        "store-size",
				Usage:       "number of predictions kept for GET /v1/predictions/:id",
				Value:       1024,
				Destination: &storeSize,
			},
			&cli.BoolFlag{
				Name:        "no-ui",
				Usage:       "do not serve the browser playground at /",
				Destination: &noUI,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			applyServeConfig(cmd, fileConfig, &addr, &limit, &burst)

			path, err := resolveModelPath(modelPath, stdinReader, os.Stderr)
			if err != nil {
				return exitf("resolve model: %v", err)
			}
			net, ck, err := checkpoint.Load(path, pointer.WithLogger(log))
			if err != nil {
				return exitf("load checkpoint: %v", err)
			}

			service := api.NewPredictionService(net, api.ModelInfo{CheckpointID: ck.ID, Version: ck.Version})
			service.SetMaxBatch(maxBatch)
			server := api.NewServer(api.NewPredictionStore(storeSize), service)
			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			e.Use(api.RateLimit(limit, burst))
			server.Register(e)
			if !noUI {
				api.RegisterUI(e, webui.StaticFS())
			}
			log.Info("starting server", "address", addr, "checkpoint", ck.ID, "rate", limit, "burst", burst)
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					setReadTimeout(srv, readTimeout)
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}

// setReadTimeout bounds reading the whole request. The header deadline
// shares the same limit.
func setReadTimeout(srv *http.Server, d time.Duration) {
	srv.ReadTimeout = d
	srv.ReadHeaderTimeout = d
}
