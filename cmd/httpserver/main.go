package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/lap-market/marketplace-backend/api/files"
	"github.com/lap-market/marketplace-backend/cmd/flags"
	"github.com/lap-market/marketplace-backend/common"
	"github.com/lap-market/marketplace-backend/httpserver"
	"github.com/lap-market/marketplace-backend/interfaces"
	"github.com/lap-market/marketplace-backend/metrics"
	"github.com/lap-market/marketplace-backend/storage"
	"github.com/urfave/cli/v2"
)

func main() {
	// Env-backed flags may come from .env; a missing file is not an error.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "marketplace-server",
		Usage: "Serve the marketplace file API with remote storage and local fallback",
		Flags: append(append(append([]cli.Flag{}, flags.CommonFlags...), flags.ServerFlags...), flags.StorageFlags...),
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)
			cfg := flags.ConfigureServer(cCtx, logger)

			metricsSrv, err := metrics.New(common.PackageName, cfg.MetricsAddr)
			if err != nil {
				logger.Error("Failed to create metrics server", "err", err)
				return err
			}

			creds, err := flags.StorageCredentials(cCtx, logger)
			if err != nil {
				// The server still starts on local storage.
				logger.Error("Failed to load remote storage credentials", "err", err)
			}

			factory := storage.NewStorageBackendFactory(logger, creds)
			remoteURI, localURI := flags.StorageLocations(cCtx)

			local, err := factory.ParseAndCreate(localURI)
			if err != nil {
				logger.Error("Failed to create local storage", "err", err, "uri", localURI)
				return err
			}

			var remote interfaces.ObjectBackend
			if remoteURI != "" {
				remote, err = factory.ParseAndCreate(remoteURI)
				if err != nil {
					logger.Error("Failed to create remote storage", "err", err)
					return err
				}
				logger.Info("Remote storage configured", "location", remote.LocationURI())
			}

			facade := storage.NewFacade(cCtx.Context, remote, local, metricsSrv.Storage, logger)
			logger.Info("Storage initialized", "currentStorage", facade.CurrentBackendLabel(), "info", facade.StorageInfo(cCtx.Context))

			server, err := httpserver.New(cfg, files.NewHandler(facade, cfg.Upload, logger), metricsSrv)
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}
			server.RunInBackground()

			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

			logger.Info("Server is running, press Ctrl+C to stop")
			<-exit
			logger.Info("Shutdown signal received")

			server.Shutdown()
			logger.Info("Server shutdown complete")
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
