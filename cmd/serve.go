package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/metrowaste/zoneplanner/internal/export"
	"github.com/metrowaste/zoneplanner/internal/zone"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the zone analysis HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(env),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// newRouter builds the API routes over a shared environment.
func newRouter(env *appEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/zones", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, env.Registry.Zones())
		})

		r.Post("/", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				Name   string       `json:"name"`
				Parent string       `json:"parent"`
				Ring   [][2]float64 `json:"ring"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeError(w, http.StatusBadRequest, eris.New("invalid request body"))
				return
			}
			z, err := env.Registry.Create(req.Context(), body.Name, body.Ring, body.Parent)
			if err != nil {
				writeError(w, zoneErrStatus(err), err)
				return
			}
			writeJSON(w, http.StatusCreated, z)
		})

		r.Get("/{name}", func(w http.ResponseWriter, req *http.Request) {
			z := env.Registry.Get(chi.URLParam(req, "name"))
			if z == nil {
				writeError(w, http.StatusNotFound, zone.ErrNotFound)
				return
			}
			writeJSON(w, http.StatusOK, z)
		})

		r.Put("/{name}", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				Ring [][2]float64 `json:"ring"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeError(w, http.StatusBadRequest, eris.New("invalid request body"))
				return
			}
			name := chi.URLParam(req, "name")
			if err := env.Registry.SetGeometry(req.Context(), name, body.Ring); err != nil {
				writeError(w, zoneErrStatus(err), err)
				return
			}
			writeJSON(w, http.StatusOK, env.Registry.Get(name))
		})

		r.Delete("/{name}", func(w http.ResponseWriter, req *http.Request) {
			if err := env.Registry.Delete(req.Context(), chi.URLParam(req, "name")); err != nil {
				writeError(w, zoneErrStatus(err), err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})

		r.Post("/{name}/rename", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				NewName string `json:"new_name"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeError(w, http.StatusBadRequest, eris.New("invalid request body"))
				return
			}
			if err := env.Registry.Rename(req.Context(), chi.URLParam(req, "name"), body.NewName); err != nil {
				writeError(w, zoneErrStatus(err), err)
				return
			}
			writeJSON(w, http.StatusOK, env.Registry.Get(body.NewName))
		})

		r.Get("/{name}/analysis", func(w http.ResponseWriter, req *http.Request) {
			res, err := env.Analyzer.AnalyzeZone(req.Context(), chi.URLParam(req, "name"))
			if err != nil {
				writeError(w, zoneErrStatus(err), err)
				return
			}
			writeJSON(w, http.StatusOK, res)
		})
	})

	r.Get("/analysis", func(w http.ResponseWriter, req *http.Request) {
		results, err := env.Analyzer.AnalyzeAll(req.Context(), cfg.Analysis.MaxConcurrent)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, results)
	})

	r.Get("/export", func(w http.ResponseWriter, req *http.Request) {
		format := req.URL.Query().Get("format")
		if format == "" {
			format = "csv"
		}

		results, err := env.Analyzer.AnalyzeAll(req.Context(), cfg.Analysis.MaxConcurrent)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		entries := make([]export.Entry, 0, len(results))
		for _, res := range results {
			if z := env.Registry.Get(res.ZoneName); z != nil {
				entries = append(entries, export.Entry{Zone: z, Result: res})
			}
		}

		switch format {
		case "csv":
			w.Header().Set("Content-Type", "text/csv")
			w.Header().Set("Content-Disposition", `attachment; filename="zones.csv"`)
			err = export.WriteCSV(w, entries)
		case "xlsx":
			w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
			w.Header().Set("Content-Disposition", `attachment; filename="zones.xlsx"`)
			err = export.WriteXLSX(w, entries)
		case "geojson":
			w.Header().Set("Content-Type", "application/geo+json")
			err = export.WriteGeoJSON(w, entries)
		default:
			writeError(w, http.StatusBadRequest, eris.Errorf("unsupported format %q", format))
			return
		}
		if err != nil {
			zap.L().Error("export failed", zap.String("format", format), zap.Error(err))
		}
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// zoneErrStatus maps registry errors to HTTP status codes.
func zoneErrStatus(err error) int {
	switch {
	case eris.Is(err, zone.ErrNotFound):
		return http.StatusNotFound
	case eris.Is(err, zone.ErrDuplicateName), eris.Is(err, zone.ErrHasChildren):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
