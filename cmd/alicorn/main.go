package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/alicorn/internal/catalog"
	"github.com/pavelanni/alicorn/internal/handler"
	appI18n "github.com/pavelanni/alicorn/internal/i18n"
	"github.com/pavelanni/alicorn/internal/leaderboard"
	"github.com/pavelanni/alicorn/internal/merit"
	"github.com/pavelanni/alicorn/internal/model"
	"github.com/pavelanni/alicorn/internal/store"
)

const defaultTiers = "0,100,300,600,1000,1500,2100,2800,3600"

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "alicorn",
		Short: "Gamified venture self-assessment service",
	}

	serve := serveCmd()
	root.AddCommand(serve, exportCmd(), catalogCmd(), meritCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `alicorn --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP quest server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "alicorn.db", "SQLite database path")
	f.StringP("catalog", "c", "", "Question catalog JSON file (default: embedded catalog)")
	f.StringP("lang", "l", "en", "Default language (en, es)")
	f.String("tiers", defaultTiers, "Merit tier thresholds, comma-separated, starting at 0")
	f.String("leaderboard", leaderboard.BackendSQLite, "Leaderboard backend (sqlite, redis)")
	f.String("redis-addr", "localhost:6379", "Redis address for the redis leaderboard")
	f.String("redis-password", "", "Redis password")
	f.Int("redis-db", 0, "Redis database number")
	f.String("admin-password", "", "Admin password for /admin routes (or set ALICORN_ADMIN_PASSWORD)")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /quest)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export assessment results as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "alicorn.db", "SQLite database path")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.Bool("include-partial", false, "Include results of exited quests")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Validate and print the question catalog",
		RunE:  runCatalog,
	}
	f := cmd.Flags()
	f.StringP("catalog", "c", "", "Question catalog JSON file (default: embedded catalog)")
	f.StringP("stakeholder", "s", string(model.StakeholderFounder), "Stakeholder perspective for question text")
	f.String("log-level", "warn", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func meritCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merit",
		Short: "Resolve an execution score to a merit tier",
		RunE:  runMerit,
	}
	f := cmd.Flags()
	f.Int("score", 0, "Lifetime execution score")
	f.String("tiers", defaultTiers, "Merit tier thresholds, comma-separated, starting at 0")
	f.String("log-level", "warn", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("ALICORN")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("alicorn")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/alicorn")
	v.AddConfigPath("/etc/alicorn")
	v.AddConfigPath("/data")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := seedAdmin(db, v.GetString("admin-password")); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	cat, err := loadCatalog(v.GetString("catalog"))
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	if err := recordCatalogVersion(db, cat); err != nil {
		return fmt.Errorf("record catalog version: %w", err)
	}

	if n, err := db.CleanupStaleSnapshots(); err != nil {
		slog.Warn("failed to clean up stale quests", "error", err)
	} else if n > 0 {
		slog.Info("removed stale quests", "count", n)
	}

	thresholds, err := merit.ParseThresholds(v.GetString("tiers"))
	if err != nil {
		return fmt.Errorf("parse tiers: %w", err)
	}
	tiers, err := merit.NewTable(thresholds...)
	if err != nil {
		return fmt.Errorf("merit tiers: %w", err)
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	backend := strings.ToLower(v.GetString("leaderboard"))
	board, closeBoard, err := openLeaderboard(cmd.Context(), v, backend, db)
	if err != nil {
		return fmt.Errorf("open leaderboard: %w", err)
	}
	defer closeBoard()

	// Normalize base path.
	basePath := strings.TrimRight(v.GetString("base-path"), "/")
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	cfg := model.ServerConfig{
		Lang:        lang,
		BasePath:    basePath,
		Leaderboard: backend,
	}

	h, err := handler.New(db, cat, tiers, board, cfg)
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))

	if basePath != "" {
		r.Route(basePath, func(sub chi.Router) {
			sub.Use(h.BasePathMiddleware)
			h.Routes(sub)
		})
	} else {
		r.Use(h.BasePathMiddleware)
		h.Routes(r)
	}

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"lang", lang,
		"catalog_version", cat.Version(),
		"levels", cat.Len(),
		"tiers", len(tiers.Tiers()),
		"leaderboard", backend,
		"base_path", basePath,
	)
	return http.ListenAndServe(addr, r)
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default()
	}
	return catalog.LoadFile(path)
}

// recordCatalogVersion stores the catalog hash. Quests saved against another
// version can no longer be resumed, so a change is logged loudly.
func recordCatalogVersion(db *store.Store, cat *catalog.Catalog) error {
	stored, err := db.GetMetadata(store.MetaCatalogVersion)
	if err != nil {
		return err
	}
	if stored == cat.Version() {
		slog.Info("catalog unchanged", "version", cat.Version())
		return nil
	}
	if stored != "" {
		slog.Warn("catalog changed since last start, open quests cannot be resumed",
			"previous", stored, "current", cat.Version())
	}
	return db.SetMetadata(store.MetaCatalogVersion, cat.Version())
}

func openLeaderboard(ctx context.Context, v *viper.Viper, backend string, db *store.Store) (leaderboard.Board, func(), error) {
	if err := leaderboard.ValidateBackend(backend); err != nil {
		return nil, nil, err
	}
	if backend == leaderboard.BackendSQLite {
		return leaderboard.NewSQLite(db), func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     v.GetString("redis-addr"),
		Password: v.GetString("redis-password"),
		DB:       v.GetInt("redis-db"),
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := rdb.Ping(pingCtx).Result(); err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("ping redis at %s: %w", v.GetString("redis-addr"), err)
	}
	slog.Info("connected to redis", "addr", v.GetString("redis-addr"))

	board := leaderboard.NewRedis(rdb, leaderboard.DefaultRedisKey)
	if err := syncLeaderboard(ctx, db, board); err != nil {
		rdb.Close()
		return nil, nil, err
	}
	return board, func() { rdb.Close() }, nil
}

// syncLeaderboard copies every account's lifetime score into the board so a
// fresh Redis instance starts consistent with the database.
func syncLeaderboard(ctx context.Context, db *store.Store, board leaderboard.Board) error {
	count, err := db.AccountCount()
	if err != nil {
		return err
	}
	accounts, err := db.ListAccountsByScore(count)
	if err != nil {
		return err
	}
	for _, a := range accounts {
		if err := board.Record(ctx, a.ID, a.ExecutionScore); err != nil {
			return fmt.Errorf("record account %d: %w", a.ID, err)
		}
	}
	slog.Info("synced leaderboard", "accounts", len(accounts))
	return nil
}

func seedAdmin(db *store.Store, password string) error {
	existing, err := db.GetMetadata(store.MetaAdminPasswordHash)
	if err != nil {
		return err
	}
	if existing != "" {
		return nil
	}

	if password == "" {
		slog.Warn("no admin password set, /admin routes are disabled: set --admin-password or ALICORN_ADMIN_PASSWORD")
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	if err := db.SetMetadata(store.MetaAdminPasswordHash, string(hash)); err != nil {
		return fmt.Errorf("store admin password: %w", err)
	}

	slog.Info("seeded admin credentials", "username", handler.AdminUsername)
	return nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	export, err := db.ExportResults(v.GetBool("include-partial"))
	if err != nil {
		return fmt.Errorf("export results: %w", err)
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	_, err = w.Write(data)
	if err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)

	slog.Info("exported results", "count", export.NumResults, "output", outPath)
	return nil
}

func runCatalog(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	cat, err := loadCatalog(v.GetString("catalog"))
	if err != nil {
		return err
	}
	s := model.Stakeholder(v.GetString("stakeholder"))
	if !s.Valid() {
		return fmt.Errorf("unknown stakeholder %q", s)
	}
	return printCatalog(cmd.OutOrStdout(), cat, s)
}

func printCatalog(w io.Writer, cat *catalog.Catalog, s model.Stakeholder) error {
	if _, err := fmt.Fprintf(w, "catalog %s: %d levels, stakeholder %s\n", cat.Version(), cat.Len(), s); err != nil {
		return err
	}
	for _, lvl := range cat.Levels() {
		fmt.Fprintf(w, "\n%s %s (%s)\n", lvl.ID, lvl.Name, lvl.Focus)
		for i, q := range lvl.Questions {
			text, _ := cat.QuestionText(lvl.ID, i, s)
			fmt.Fprintf(w, "  %-8s %-22s %6.1f gleams %5.2f alicorns  %s\n",
				q.Code, q.Category, q.Gleams, q.Alicorns, text)
		}
	}
	return nil
}

func runMerit(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	thresholds, err := merit.ParseThresholds(v.GetString("tiers"))
	if err != nil {
		return err
	}
	tiers, err := merit.NewTable(thresholds...)
	if err != nil {
		return err
	}
	status := tiers.Status(model.Account{ExecutionScore: v.GetInt("score")})

	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}
