// Command geminikey stores the Gemini API key in the integration_tokens
// table, where the worker picks it up when GEMINI_API_KEY is unset.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"genstudio/internal/infra"
	"genstudio/internal/infra/credentials"
	"genstudio/internal/sqlinline"
)

func main() {
	_ = godotenv.Load()

	key := pflag.StringP("key", "k", "", "Gemini API key (falls back to GEMINI_API_KEY)")
	dbURL := pflag.String("database-url", os.Getenv("DATABASE_URL"), "Postgres connection string")
	pflag.Parse()

	apiKey := strings.TrimSpace(*key)
	if apiKey == "" {
		apiKey = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	}
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "Gemini API key is required via --key or GEMINI_API_KEY")
		os.Exit(1)
	}
	if strings.TrimSpace(*dbURL) == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, *dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create pool: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger := infra.NewLogger("cli", os.Getenv("LOG_LEVEL")).With().Str("cmd", "geminikey").Logger()
	runner := infra.NewSQLRunner(pool, logger)
	if _, err := runner.Exec(ctx, sqlinline.QCreateSchema); err != nil {
		fmt.Fprintf(os.Stderr, "failed to prepare schema: %v\n", err)
		os.Exit(1)
	}
	if err := credentials.NewStore(runner).SetGeminiAPIKey(ctx, apiKey, "geminikey"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to persist gemini api key: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("gemini api key stored (fingerprint %s)\n", credentials.Fingerprint(apiKey))
}
