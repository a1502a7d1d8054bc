// ABOUTME: Entry point for the charla webhook bridge
// ABOUTME: Wires config, store, provider clients, and the webhook server together

package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"

	"github.com/charlabs/charla/internal/assistant"
	"github.com/charlabs/charla/internal/audio"
	"github.com/charlabs/charla/internal/config"
	"github.com/charlabs/charla/internal/dispatch"
	"github.com/charlabs/charla/internal/orchestrator"
	"github.com/charlabs/charla/internal/server"
	"github.com/charlabs/charla/internal/store"
	"github.com/charlabs/charla/internal/transcribe"
	"github.com/charlabs/charla/internal/whatsapp"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
      _                _
  ___| |__   __ _ _ __| | __ _
 / __| '_ \ / _' | '__| |/ _' |
| (__| | | | (_| | |  | | (_| |
 \___|_| |_|\__,_|_|  |_|\__,_|
`

// getConfigPath returns the path to the charla config file.
// Priority: CHARLA_CONFIG env var > XDG_CONFIG_HOME/charla/charla.yaml > ~/.config/charla/charla.yaml
func getConfigPath() string {
	if envPath := os.Getenv("CHARLA_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "charla.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "charla", "charla.yaml")
}

// getDataPath returns the path to the charla data directory.
// Priority: XDG_DATA_HOME/charla > ~/.local/share/charla
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "charla")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: charla <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve     Start the webhook bridge")
		fmt.Println("  init      Create a new config file interactively")
		fmt.Println("  health    Check bridge health")
		fmt.Println("  sessions  List known conversation sessions")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "health":
		err = runHealth(ctx)
	case "sessions":
		err = runSessions(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s\n", cfg.Database.Path)
	fmt.Println()

	logger.Info("starting charla",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
	)

	// Session store
	sessions, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer sessions.Close()

	// Provider and backend clients
	media := whatsapp.NewMediaClient(nil, cfg.WhatsApp.GraphBaseURL, cfg.WhatsApp.APIVersion, cfg.WhatsApp.AccessToken)
	sender := whatsapp.NewSender(nil, cfg.WhatsApp.GraphBaseURL, cfg.WhatsApp.APIVersion, cfg.WhatsApp.AccessToken, cfg.WhatsApp.PhoneNumberID, logger)
	backend := assistant.New(nil, cfg.Assistant.BaseURL, cfg.Assistant.APIKey)
	recognizer := transcribe.New(nil, cfg.Transcribe.BaseURL, cfg.Transcribe.APIKey, cfg.Transcribe.Language)

	// Audio pipeline, with an optional debug tap
	processor := audio.NewProcessor(media, recognizer, logger)
	if cfg.Audio.DebugPath != "" {
		tap, err := os.OpenFile(cfg.Audio.DebugPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("opening audio debug tap: %w", err)
		}
		defer tap.Close()
		processor.Tap = tap
		logger.Warn("audio debug tap enabled", "path", cfg.Audio.DebugPath)
	}

	dispatcher := dispatch.New(processor)
	responder := orchestrator.New(backend, sessions, cfg.Assistant.AssistantID,
		cfg.Assistant.PollInterval, cfg.Assistant.RunTimeout, logger)

	srv := server.New(cfg.Server.HTTPAddr, cfg.WhatsApp.VerifyToken, cfg.WhatsApp.AppSecret,
		dispatcher, responder, sender, logger)

	return srv.Run(ctx)
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	// Format timestamp
	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	// Colorize level
	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	// Print message
	buf.WriteString(r.Message)

	// Print handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	// Print record attrs
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}

func runHealth(ctx context.Context) error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Make HTTP request to health endpoint with context
	url := fmt.Sprintf("http://%s/health", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

func runSessions(ctx context.Context) error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	sessions, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer sessions.Close()

	list, err := sessions.ListSessions(ctx, 100)
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}

	if len(list) == 0 {
		fmt.Println("no sessions")
		return nil
	}

	for _, s := range list {
		fmt.Printf("%-20s %-30s %s\n", s.WaID, s.ThreadID, s.CreatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("charla configuration setup")
	fmt.Println("==========================")
	fmt.Println()

	// Default paths
	defaultConfigPath := getConfigPath()
	defaultDataPath := getDataPath()
	defaultDbPath := filepath.Join(defaultDataPath, "charla.db")

	// Output filename
	outputFile := prompt(reader, "Config file path", defaultConfigPath)

	// Check if file exists
	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	// Server configuration
	fmt.Println("\n--- Server Configuration ---")
	httpAddr := prompt(reader, "HTTP address", "localhost:8080")

	// WhatsApp
	fmt.Println("\n--- WhatsApp Configuration ---")
	phoneNumberID := prompt(reader, "Business phone number ID", "")
	apiVersion := prompt(reader, "Graph API version", config.DefaultAPIVersion)
	verifyToken := prompt(reader, "Webhook verify token", "")

	// Assistant
	fmt.Println("\n--- Assistant Configuration ---")
	assistantID := prompt(reader, "Assistant ID", "")

	// Transcription
	fmt.Println("\n--- Transcription Configuration ---")
	language := prompt(reader, "Recognition language", config.DefaultLanguage)

	// Database
	fmt.Println("\n--- Database Configuration ---")
	dbPath := prompt(reader, "SQLite database path", defaultDbPath)

	// Logging
	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	// Generate config
	var cfg strings.Builder
	cfg.WriteString("# charla configuration\n")
	cfg.WriteString("# Generated by charla init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  http_addr: \"%s\"\n", httpAddr))
	cfg.WriteString("\n")

	cfg.WriteString("whatsapp:\n")
	cfg.WriteString("  access_token: \"${WHATSAPP_ACCESS_TOKEN}\"\n")
	cfg.WriteString("  app_secret: \"${WHATSAPP_APP_SECRET}\"\n")
	cfg.WriteString(fmt.Sprintf("  verify_token: \"%s\"\n", verifyToken))
	cfg.WriteString(fmt.Sprintf("  phone_number_id: \"%s\"\n", phoneNumberID))
	cfg.WriteString(fmt.Sprintf("  api_version: \"%s\"\n", apiVersion))
	cfg.WriteString("\n")

	cfg.WriteString("assistant:\n")
	cfg.WriteString("  api_key: \"${OPENAI_API_KEY}\"\n")
	cfg.WriteString(fmt.Sprintf("  assistant_id: \"%s\"\n", assistantID))
	cfg.WriteString("  poll_interval: \"500ms\"\n")
	cfg.WriteString("  run_timeout: \"2m\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("transcribe:\n")
	cfg.WriteString("  api_key: \"${GOOGLE_CLOUD_API_KEY}\"\n")
	cfg.WriteString(fmt.Sprintf("  language: \"%s\"\n", language))
	cfg.WriteString("\n")

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  path: \"%s\"\n", dbPath))
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: \"%s\"\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: \"%s\"\n", logFormat))

	// Ensure config directory exists
	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// Write config file
	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	// Ensure data directory exists
	dataDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Printf("Data directory: %s\n", dataDir)
	fmt.Println("\nTo start the bridge:")
	fmt.Printf("  charla serve\n")

	return nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
