package main

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"gopkg.in/natefinch/lumberjack.v2"

	"invoicescan/internal/extraction"
	"invoicescan/internal/invoice"
	"invoicescan/internal/report"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// A .env file is optional; flags and real env vars win over it
	_ = godotenv.Load()

	fs := ff.NewFlagSet("invoicescan")
	var (
		port          = fs.IntLong("port", 8080, "HTTP server port")
		databaseURL   = fs.StringLong("database-url", "invoicescan.db", "SQLite file path or postgres:// URL")
		uploadDir     = fs.StringLong("upload-dir", "./uploads", "Directory for uploaded invoice files")
		reportDir     = fs.StringLong("report-dir", "./reports", "Directory for generated report PDFs")
		extractorType = fs.StringLong("extractor", "gemini", "Extractor type: 'gemini' or 'ollama'")
		geminiKey     = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel   = fs.StringLong("gemini-model", "gemini-2.0-flash", "Google Gemini model name")
		ollamaURL     = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel   = fs.StringLong("ollama-model", "llava", "Ollama vision model name")
		enhance       = fs.BoolLong("enhance", "Enhance images (grayscale/contrast/sharpen) before extraction")
		authUser      = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass      = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		logFile       = fs.StringLong("log-file", "", "Write JSON logs to this rotating file instead of stderr")
		showVersion   = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("INVOICESCAN"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if *logFile != "" {
		rotator := &lumberjack.Logger{
			Filename:   *logFile,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
		}
		slog.SetDefault(slog.New(slog.NewJSONHandler(rotator, nil)))
	}

	slog.Info("Initializing database...", "url", *databaseURL)
	db, err := invoice.NewGormDB(*databaseURL)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	var extractor extraction.Extractor
	switch *extractorType {
	case "gemini":
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini extractor...", "model", *geminiModel)
		extractor, err = extraction.NewGemini(apiKey, *geminiModel)
		if err != nil {
			slog.Error("Failed to initialize Gemini", "error", err)
			os.Exit(1)
		}
	case "ollama":
		slog.Info("Initializing Ollama extractor...", "url", *ollamaURL, "model", *ollamaModel)
		extractor, err = extraction.NewOllama(*ollamaURL, *ollamaModel)
		if err != nil {
			slog.Error("Failed to initialize Ollama", "error", err)
			os.Exit(1)
		}
	default:
		slog.Error("Invalid extractor type", "type", *extractorType, "valid", "gemini or ollama")
		os.Exit(1)
	}
	defer extractor.Close()

	slog.Info("Initializing storage...", "uploads", *uploadDir, "reports", *reportDir)
	uploads, err := invoice.NewLocalStorage(*uploadDir)
	if err != nil {
		slog.Error("Failed to initialize upload storage", "error", err)
		os.Exit(1)
	}
	reports, err := invoice.NewLocalStorage(*reportDir)
	if err != nil {
		slog.Error("Failed to initialize report storage", "error", err)
		os.Exit(1)
	}

	service := invoice.NewService(db, extractor, uploads, report.PDFRenderer{}, reports.Dir(), *enhance)

	basicAuth := invoice.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	server := invoice.NewServer(service, basicAuth)

	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "version", version)
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
}
