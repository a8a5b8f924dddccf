package main

import (
	"context"
	"encoding/json"
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

	"github.com/greenward/greenward/internal/pipeline"
	"github.com/greenward/greenward/internal/resilience"
	"github.com/greenward/greenward/pkg/anthropic"
)

var servePort int

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the ward table, scored parcels and ward Q&A over HTTP",
	Long: `Runs the pipeline once at startup and serves its results.

Routes:
  GET  /health
  GET  /v1/tables/wards/
  GET  /v1/tables/highest_priority/
  GET  /v1/parcels/scored
  GET  /v1/pipeline
  POST /v1/query/ask`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		res, err := runPipeline(ctx, cfg, "serve")
		if err != nil {
			return eris.Wrap(err, "serve")
		}

		asker := &wardAsker{
			model:     cfg.Anthropic.Model,
			maxTokens: cfg.Anthropic.MaxTokens,
			table:     res.Districts,
		}
		if cfg.Anthropic.Key != "" {
			asker.client = anthropic.NewClient(cfg.Anthropic.Key)
			asker.breaker = resilience.NewBreaker(resilience.BreakerConfig{
				FailureThreshold: cfg.Anthropic.FailureThreshold,
				Cooldown:         time.Duration(cfg.Anthropic.CooldownSecs) * time.Second,
				OnStateChange: func(from, to resilience.State) {
					zap.L().Warn("ask: assistant circuit changed state",
						zap.Stringer("from", from), zap.Stringer("to", to))
				},
			})
		} else {
			zap.L().Info("anthropic.key not set, ward Q&A answers from the ward summary only")
		}

		return startServer(ctx, buildRouter(res, asker), resolvePort(servePort, cfg.Server.Port))
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// resolvePort prefers the flag value over the configured port.
func resolvePort(flagPort, cfgPort int) int {
	if flagPort != 0 {
		return flagPort
	}
	return cfgPort
}

// buildRouter serves a completed pipeline result. The result is read-only
// once built, so handlers share it without locking.
func buildRouter(res *pipeline.Result, asker *wardAsker) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/tables/wards", func(w http.ResponseWriter, r *http.Request) {
			writeJSONResponse(w, http.StatusOK, wardRows(res.Districts))
		})

		r.Get("/tables/highest_priority", func(w http.ResponseWriter, r *http.Request) {
			top, ok := res.Districts.HighestPriority()
			if !ok {
				writeJSONResponse(w, http.StatusOK, struct{}{})
				return
			}
			writeJSONResponse(w, http.StatusOK, toWardRow(top))
		})

		r.Get("/parcels/scored", func(w http.ResponseWriter, r *http.Request) {
			writeJSONResponse(w, http.StatusOK, scoredFeatureCollection(res.Scored))
		})

		r.Get("/pipeline", func(w http.ResponseWriter, r *http.Request) {
			writeJSONResponse(w, http.StatusOK, map[string]any{
				"phases":     res.Phases,
				"wards":      res.Districts.Len(),
				"joined":     res.Joined,
				"unjoined":   res.Unjoined,
				"facilities": res.Facilities,
				"scored":     len(res.Scored.Parcels),
				"skipped":    res.Scored.Skipped,
			})
		})

		r.Post("/query/ask", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Query    string `json:"query"`
				Question string `json:"question"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeJSONResponse(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
				return
			}

			question := req.Query
			if question == "" {
				question = req.Question
			}
			writeJSONResponse(w, http.StatusOK, map[string]string{"result": asker.Ask(r.Context(), question)})
		})
	})

	return r
}

func writeJSONResponse(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("serve: encode response", zap.Error(err))
	}
}

// startServer listens on port until ctx is cancelled, then shuts down
// gracefully.
func startServer(ctx context.Context, handler http.Handler, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zap.L().Warn("server shutdown", zap.Error(err))
		}
	}()

	zap.L().Info("starting server", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server listen")
	}
	<-done
	return nil
}
