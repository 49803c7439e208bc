package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // register the /debug/pprof handlers

	"golang.org/x/sync/errgroup"

	dig_container "github.com/trezcool/masomo-admin/apps/web/di/dig"
	echoweb "github.com/trezcool/masomo-admin/apps/web/echo"
	"github.com/trezcool/masomo-admin/core"
	"github.com/trezcool/masomo-admin/services/notifier"
)

func main() {
	c := dig_container.New()

	must(c.Invoke(func(
		conf *core.Config,
		logger core.Logger,
		toasts *dig_container.Toasts,
		ntf *notifier.Notifier,
		server *echoweb.Server,
	) {
		// =========================================================================
		// Initialize App

		logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
		defer logger.Info("Application stopped")
		defer func() {
			if err := toasts.Close(); err != nil {
				logger.Error("closing toasts broker", err)
			}
		}()

		// =========================================================================
		// Start Debug Service
		//
		// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
		// /debug/vars - Added to the default mux by importing the expvar package.

		// Expose important info under /debug/vars.
		expvar.NewString("build").Set(conf.Build)
		expvar.NewString("env").Set(conf.Env)

		go func() {
			if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
				logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
			}
		}()

		// =========================================================================
		// Start background workers

		ctx, stopWorkers := context.WithCancel(context.Background())
		workers, ctx := errgroup.WithContext(ctx)
		if conf.Notifier.Enabled {
			workers.Go(func() error { return ntf.Run(ctx) })
		}
		if toasts.Relay != nil {
			workers.Go(func() error { return toasts.Relay(ctx) })
		}
		defer func() {
			stopWorkers()
			if err := workers.Wait(); err != nil && err != context.Canceled {
				logger.Error(fmt.Sprintf("background worker failed: %v", err), err)
			}
		}()

		// =========================================================================
		// Start Web Service

		go func() {
			server.Start()
		}()

		// =========================================================================
		// Shutdown

		select {
		case err := <-server.Errors():
			logger.Fatal(fmt.Sprintf("server error: %v", err), err)

		case sig := <-server.ShutdownSignal():
			logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

			// give outstanding requests a deadline for completion
			ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
			defer cancel()

			// asking listener to shut down and shed load
			if err := server.Shutdown(ctx); err != nil {
				logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

				if err = server.Close(); err != nil {
					logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
				}
			}
		}
	}))
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
