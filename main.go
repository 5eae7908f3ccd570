// main.go
// Build/run:
//
//	go run . serve --data ./data            # web UI on http://127.0.0.1:8080
//	go run . tui --data ./data              # terminal UI
//	go run . export --section slug/id --format xlsx
//	go run . validate --data ./data
//
// Notes:
//   - Data is static: analyses.yaml lists the sections and their JSON/CSV files,
//     chunked datasets or SQLite tables. Everything is loaded once at start.
//   - The optional SQLite database is opened read-only (PRAGMA query_only=ON).
//   - Charts: Chart.js on the web, an ASCII histogram in the TUI.
package main

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"embuild.be/statbord/dataset"
	"embuild.be/statbord/geo"
)

var version = "0.3.0"

//go:embed webstatic/*
var webFS embed.FS

//go:embed templates/*.gohtml templates/partials/*.gohtml
var tplFS embed.FS

// appData is everything read from disk at start.
type appData struct {
	store *dataset.Store
	dir   *geo.Directory
	layer *geo.Layer
	db    *sql.DB
}

func (d *appData) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

const (
	municipalitiesFile = "municipalities.json"
	boundariesFile     = "municipalities.geojson"
	municipalityTable  = "municipalities"
)

// openData loads the registry, every section and the municipality data.
func openData(ctx context.Context, cfg config, log *slog.Logger) (*appData, error) {
	fsys := os.DirFS(cfg.DataDir)
	reg, err := dataset.LoadRegistry(fsys, cfg.Registry)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	if err := reg.Validate(); err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}

	d := &appData{}
	opts := dataset.StoreOptions{
		Logger: log,
		Chunks: dataset.ChunkOptions{
			Concurrency: cfg.ChunkConcurrency,
			Progress: func(done, total int) {
				log.Debug("chunk loaded", "done", done, "total", total)
			},
		},
	}
	if cfg.DBPath != "" {
		if d.db, err = openSQLite(cfg.DBPath); err != nil {
			return nil, err
		}
		opts.Tables = sqliteTables{db: d.db}
	}

	if d.store, err = dataset.Open(ctx, fsys, reg, opts); err != nil {
		d.Close()
		return nil, err
	}
	if d.layer, err = readLayer(fsys); err != nil {
		d.Close()
		return nil, err
	}
	if d.dir, err = readDirectory(ctx, fsys, d.db, d.layer); err != nil {
		d.Close()
		return nil, err
	}
	log.Info("data ready", "sections", len(reg.Sections()), "municipalities", d.dir.Len(), "map", d.layer != nil)
	return d, nil
}

func readLayer(fsys fs.FS) (*geo.Layer, error) {
	f, err := fsys.Open(boundariesFile)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return geo.ReadLayer(f)
}

// readDirectory takes the municipality list from municipalities.json, then the
// SQLite table, then the map features, whichever exists first.
func readDirectory(ctx context.Context, fsys fs.FS, db *sql.DB, layer *geo.Layer) (*geo.Directory, error) {
	b, err := fs.ReadFile(fsys, municipalitiesFile)
	switch {
	case err == nil:
		var ms []geo.Municipality
		if err := json.Unmarshal(b, &ms); err != nil {
			return nil, fmt.Errorf("%s: %w", municipalitiesFile, err)
		}
		return geo.NewDirectory(ms), nil
	case !errors.Is(err, fs.ErrNotExist):
		return nil, err
	}
	if db != nil && tableExists(ctx, db, municipalityTable) {
		ms, err := readMunicipalityTable(ctx, db, municipalityTable)
		if err != nil {
			return nil, err
		}
		return geo.NewDirectory(ms), nil
	}
	if layer != nil {
		return geo.NewDirectory(layer.Municipalities()), nil
	}
	return geo.NewDirectory(nil), nil
}

type server struct {
	data    *appData
	tpl     *template.Template
	perPage int
	cache   responseCache
	metrics *metrics
	log     *slog.Logger
}

func newServer(data *appData, cache responseCache, perPage int, log *slog.Logger) (*server, error) {
	tpl, err := template.New("").
		Funcs(template.FuncMap{
			"regionName": geo.RegionName,
		}).
		ParseFS(tplFS, "templates/*.gohtml", "templates/partials/*.gohtml")
	if err != nil {
		return nil, err
	}
	if perPage <= 0 {
		perPage = 25
	}
	if cache == nil {
		cache = noCache{}
	}
	s := &server{data: data, tpl: tpl, perPage: perPage, cache: cache, metrics: newMetrics(), log: log}
	for _, sec := range data.store.Registry().Sections() {
		s.metrics.Rows.WithLabelValues(sec.Key()).Set(float64(len(data.store.Rows(sec))))
	}
	return s, nil
}

func (s *server) routes(debug bool) (http.Handler, error) {
	assets, err := fs.Sub(webFS, "webstatic")
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.instrument)
	r.Use(withLogging(s.log, debug))

	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(assets))))
	r.Get("/", s.handleIndex)
	r.Get("/analyses/{slug}", s.handleAnalysis)
	r.Get("/embed/{slug}/{section}", s.handleEmbed)
	r.Get("/export/csv/{slug}/{section}", s.handleExportCSV)
	r.Get("/export/xlsx/{slug}/{section}", s.handleExportXLSX)

	r.Route("/api", func(r chi.Router) {
		r.Get("/analyses", s.handleAPIAnalyses)
		r.Get("/geo", s.handleAPIGeo)
		r.Get("/municipalities", s.handleAPIMunicipalities)
		r.Get("/municipalities/{slug}/{section}", s.handleAPISectionMunicipalities)
		r.Get("/series/{slug}/{section}", s.handleAPISeries)
		r.Get("/table/{slug}/{section}", s.handleAPITable)
		r.Get("/map/{slug}/{section}", s.handleAPIMap)
		r.Get("/narrative/{slug}/{section}", s.handleAPINarrative)
	})

	r.Handle("/metrics", s.metrics.handler())
	r.Get("/healthz", s.handleHealth)
	return r, nil
}

type requestIDKey struct{}

// withLogging tags each request with an id and, in debug mode, logs it on the
// way in and out.
func withLogging(log *slog.Logger, debug bool) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-Id")
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set("X-Request-Id", id)
			r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id))
			if debug {
				start := time.Now()
				log.Info("→ "+r.Method+" "+r.URL.Path, "query", r.URL.RawQuery, "request_id", id)
				defer func() {
					log.Info("← "+r.Method+" "+r.URL.Path, "took", time.Since(start), "request_id", id)
				}()
			}
			h.ServeHTTP(w, r)
		})
	}
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// httpServer builds the server with a header timeout.
func httpServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// ==== CLI ====

func main() {
	if err := loadDotEnv(".env"); err != nil {
		fmt.Fprintln(os.Stderr, "warning: .env:", err)
	}
	if err := rootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cfg := configFromEnv()
	root := &cobra.Command{
		Use:           "statbord",
		Short:         "Belgian statistics dashboard",
		Long:          "statbord serves pre-computed Belgian statistics as chart series, tables,\nmap layers and CSV/XLSX exports, filtered by region, province or municipality.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cfg)
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&cfg.DataDir, "data", cfg.DataDir, "data directory")
	pf.StringVar(&cfg.Registry, "registry", cfg.Registry, "analyses registry, relative to the data directory")
	pf.StringVar(&cfg.DBPath, "db", cfg.DBPath, "optional SQLite database for table sections")
	pf.IntVar(&cfg.ChunkConcurrency, "chunk-concurrency", cfg.ChunkConcurrency, "chunk files read at once")
	pf.BoolVar(&cfg.Debug, "debug", cfg.Debug, "enable debug logging")

	root.AddCommand(serveCmd(&cfg), tuiCmd(&cfg), exportCmd(&cfg), validateCmd(&cfg))
	return root
}

func serveCmd(cfg *config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web UI and JSON API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *cfg)
		},
	}
	cmd.Flags().StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	cmd.Flags().StringVar(&cfg.RedisURL, "redis", cfg.RedisURL, "redis URL for the response cache (memory cache when empty)")
	cmd.Flags().DurationVar(&cfg.CacheTTL, "cache-ttl", cfg.CacheTTL, "response cache TTL, 0 disables caching")
	cmd.Flags().IntVar(&cfg.PerPage, "per-page", cfg.PerPage, "table rows per page")
	return cmd
}

func runServe(ctx context.Context, cfg config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := newLogger(cfg.Debug)
	data, err := openData(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer data.Close()

	cache, closeCache, err := openCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCache()

	srv, err := newServer(data, cache, cfg.PerPage, log)
	if err != nil {
		return err
	}
	h, err := srv.routes(cfg.Debug)
	if err != nil {
		return err
	}
	hs := httpServer(cfg.Addr, h)

	errc := make(chan error, 1)
	go func() {
		log.Info("web UI listening", "url", "http://"+cfg.Addr)
		errc <- hs.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	log.Info("server stopped")
	return nil
}

func tuiCmd(cfg *config) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Browse sections in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			// keep log lines out of the terminal UI
			log := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))
			data, err := openData(cmd.Context(), *cfg, log)
			if err != nil {
				return err
			}
			defer data.Close()
			p := tea.NewProgram(initialTUI(data))
			_, err = p.Run()
			return err
		},
	}
}

func exportCmd(cfg *config) *cobra.Command {
	var (
		section, format, out      string
		region, province, munic   string
		breakdown, shares, rawRow bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a section's series (or filtered rows) to CSV or XLSX",
		Example: `  statbord export --section vergunningen-goedkeuringen/renovatie --format xlsx
  statbord export --section faillissementen/sectoren --province 10000 --breakdown --out antwerpen.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			slug, id, ok := strings.Cut(section, "/")
			if !ok {
				return fmt.Errorf("--section must be slug/section, got %q", section)
			}
			if format != "csv" && format != "xlsx" {
				return fmt.Errorf("unknown format %q (csv|xlsx)", format)
			}
			scope, err := geo.ParseScope(region, province, munic)
			if err != nil {
				return err
			}
			data, err := openData(cmd.Context(), *cfg, newLogger(cfg.Debug))
			if err != nil {
				return err
			}
			defer data.Close()

			sec, rows, err := data.store.Section(slug, id)
			if err != nil {
				return err
			}
			q := dataset.Query{Scope: scope, Breakdown: breakdown, Shares: shares}
			var head []string
			var cells [][]any
			if rawRow {
				head, cells = recordSheet(dataset.Filter(sec, rows, q))
			} else {
				head, cells = seriesSheet(sec, dataset.Series(sec, rows, q))
			}

			if out == "" {
				out = safeFile(sec.Key()) + "." + format
			} else if !strings.HasSuffix(out, "."+format) {
				out = stripExt(out) + "." + format
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			defer f.Close()
			if format == "csv" {
				err = writeCSV(f, head, cells)
			} else {
				err = writeXLSX(f, sheetName(sec.ID), head, cells)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d rows)\n", out, len(cells))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&section, "section", "", "section as slug/section")
	f.StringVar(&format, "format", "csv", "csv|xlsx")
	f.StringVar(&out, "out", "", "output file (default <slug>_<section>.<format>)")
	f.StringVar(&region, "region", "", "region code (2000, 3000, 4000)")
	f.StringVar(&province, "province", "", "province code")
	f.StringVar(&munic, "municipality", "", "municipality NIS code")
	f.BoolVar(&breakdown, "breakdown", false, "split by the section's breakdown field")
	f.BoolVar(&shares, "shares", false, "percentages of the period total (with --breakdown)")
	f.BoolVar(&rawRow, "rows", false, "export the filtered rows instead of the series")
	_ = cmd.MarkFlagRequired("section")
	return cmd
}

func validateCmd(cfg *config) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the registry paths and the standard m/y/q datasets",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.Context(), *cfg, cmd.OutOrStdout())
		},
	}
}
