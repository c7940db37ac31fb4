package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/sqlgate/sqlgate"
)

func runServe() error {
	// 1. Load .env, then the process environment wins.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load .env file: %w", err)
	}

	// 2. Setup logger before anything that wants to warn.
	logger := setupLogger()

	// 3. Build gateway config from the environment.
	config, warnings, err := sqlgate.FromEnv()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	for _, w := range warnings {
		logger.Warn().Msg(w)
	}

	// 4. Prompt for a password when none is configured and stdin is a
	// terminal; headless deployments must configure DB_PASSWORDS.
	promptForMissingPasswords(&config)

	logger.Info().
		Bool("read_only", config.ReadOnly).
		Int("targets", len(config.Targets)).
		Int("max_pool_size", config.MaxPoolSize).
		Int("max_results", config.MaxResults).
		Msg("starting sqlgate")

	// 5. Create the gateway and warm the pools.
	gw := sqlgate.New(config, logger)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer gw.Close(context.Background())

	if err := gw.InitializePool(ctx); err != nil {
		return fmt.Errorf("no configured target is reachable: %w", err)
	}

	// 6. Create MCP server with initialize lifecycle logging.
	hooks := &server.Hooks{}
	hooks.AddAfterInitialize(func(ctx context.Context, id any, req *mcp.InitializeRequest, result *mcp.InitializeResult) {
		logger.Info().
			Str("client_name", req.Params.ClientInfo.Name).
			Str("client_version", req.Params.ClientInfo.Version).
			Msg("client connected (MCP initialize)")
	})

	mcpServer := server.NewMCPServer("sqlgate", "1.0.0",
		server.WithToolCapabilities(true),
		server.WithHooks(hooks),
	)
	sqlgate.RegisterMCPTools(mcpServer, gw)

	// 7. HTTP transport with optional health endpoint. The health
	// check reports process liveness only, not database connectivity.
	port := envIntOr("SQLGATE_PORT", 8080)
	healthPath := envOr("SQLGATE_HEALTH_PATH", "/healthz")

	addr := fmt.Sprintf(":%d", port)
	mux := http.NewServeMux()
	if healthPath != "" {
		mux.HandleFunc(healthPath, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})
	}

	httpSrv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	streamableServer := server.NewStreamableHTTPServer(mcpServer,
		server.WithEndpointPath("/mcp"),
		server.WithStateLess(true),
		server.WithStreamableHTTPServer(httpSrv),
	)
	// Start() does not register the MCP handler when a custom
	// *http.Server is provided.
	mux.Handle("/mcp", streamableServer)

	go func() {
		<-ctx.Done()
		logger.Info().Msg("shutting down")
		httpSrv.Close()
	}()

	logger.Info().Int("port", port).Msg("sqlgate server listening")
	if err := streamableServer.Start(addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// promptForMissingPasswords fills in an interactively-entered password
// for targets configured without one.
func promptForMissingPasswords(config *sqlgate.Config) {
	missing := false
	for _, t := range config.Targets {
		if t.User != "" && t.Password == "" {
			missing = true
			break
		}
	}
	if !missing || !term.IsTerminal(int(os.Stdin.Fd())) {
		return
	}

	fmt.Fprint(os.Stderr, "Database password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return
	}
	for i := range config.Targets {
		if config.Targets[i].Password == "" {
			config.Targets[i].Password = string(password)
		}
	}
}

func setupLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		level = zerolog.DebugLevel
	case "warn", "warning":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	var output io.Writer = os.Stderr
	if path := os.Getenv("LOG_FILE"); path != "" {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err == nil {
			output = f
		}
	}

	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "text") {
		output = zerolog.ConsoleWriter{Out: output}
	}

	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}

func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func envIntOr(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
