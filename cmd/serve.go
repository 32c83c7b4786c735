package main

import (
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/ir-radar/internal/monitoring"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long:  "Serves the pain summary, signals, outreach, and pipeline control over HTTP. Starts the background health checker when an alert webhook is configured.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if cfg.Monitoring.WebhookURL != "" {
			checker := monitoring.NewChecker(
				monitoring.NewCollector(env.Store),
				monitoring.NewAlerter(cfg.Monitoring),
				cfg.Monitoring,
			)
			go checker.Run(ctx)
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(env),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func newRouter(env *appEnv) http.Handler {
	api := newAPI(env)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", api.health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/pipeline/run", api.runPipeline)
		r.Post("/pipeline/retry", api.retryDeadLetters)
		r.Post("/pipeline/financials", api.refreshFinancials)
		r.Delete("/pipeline/signals", api.clearSignals)

		r.Get("/summary", api.summary)
		r.Get("/signals", api.signals)
		r.Get("/hot", api.hotSignals)
		r.Get("/status", api.status)

		r.Get("/companies", api.listCompanies)
		r.Post("/companies", api.addCompany)
		r.Delete("/companies/{id}", api.removeCompany)
		r.Post("/companies/{id}/active", api.setCompanyActive)

		r.Post("/outreach", api.recordOutreach)
		r.Get("/outreach/hidden", api.hiddenCompanies)
		r.Get("/outreach/{companyID}", api.listOutreach)
	})

	return r
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
