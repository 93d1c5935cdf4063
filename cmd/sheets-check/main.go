// Command sheets-check reports whether the Google Sheets settings in the
// environment are complete and, with -probe, reads the configured range.
package main

import (
	"context"
	"encoding/pem"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"tablero/internal/backend"
	"tablero/internal/cli"
	"tablero/internal/config"
	"tablero/internal/core"
	"tablero/internal/log"
	gsheet "tablero/internal/sheets/google"
)

func main() {
	envFile := flag.String("env", ".env", "dotenv file to load before reading the environment")
	probe := flag.Bool("probe", false, "read the configured range and report the row count")
	timeout := flag.Duration("timeout", 30*time.Second, "probe timeout")
	flag.Parse()

	if err := cli.LoadEnvFile(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "load %s: %v\n", *envFile, err)
		os.Exit(1)
	}

	cfg := config.Load()
	cfg.DataBackend = config.BackendSheets
	logger := cli.SetupLogger(cfg)

	ok := report(cfg)
	if !*probe {
		exit(ok)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	exit(runProbe(ctx, logger, cfg) && ok)
}

func exit(ok bool) {
	if !ok {
		os.Exit(1)
	}
	os.Exit(0)
}

// report prints every Sheets setting with secrets masked and returns false
// when the backend could not authenticate.
func report(cfg *config.Config) bool {
	ok := true
	fmt.Println("Google Sheets configuration")
	line("GOOGLE_SPREADSHEET_ID", cfg.GoogleSpreadsheetID)
	line("GOOGLE_SHEET_NAME", cfg.GoogleSheetName)
	line("GOOGLE_DATA_RANGE", cfg.GoogleDataRange)
	line(gsheet.EnvServiceAccountEmail, cfg.GoogleServiceAccountEmail)
	line(gsheet.EnvPrivateKey, mask(cfg.GooglePrivateKey))
	line(gsheet.EnvAPIKey, mask(cfg.GoogleAPIKey))

	if cfg.GooglePrivateKey != "" {
		if err := checkPrivateKey(cfg.GooglePrivateKey); err != nil {
			fmt.Printf("\nprivate key: %v\n", err)
			ok = false
		} else {
			fmt.Println("\nprivate key: PEM block decoded")
		}
	}

	auth, err := gsheet.ResolveAuth(cfg.GoogleServiceAccountEmail, cfg.GooglePrivateKey, cfg.GoogleAPIKey)
	if err != nil {
		fmt.Printf("auth: %v\n", err)
		ok = false
	} else {
		fmt.Printf("auth: %s\n", auth.Mode())
		if auth.Mode() == gsheet.AuthAPIKey {
			fmt.Println("note: API key access is read-only; appends need a service account")
		}
	}

	if missing := cfg.MissingSheetsSettings(); len(missing) > 0 {
		fmt.Printf("missing: %s\n", strings.Join(missing, ", "))
		ok = false
	}
	return ok
}

func line(name, value string) {
	if value == "" {
		value = "(unset)"
	}
	fmt.Printf("  %-30s %s\n", name, value)
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "…" + secret[len(secret)-4:] + fmt.Sprintf(" (%d chars)", len(secret))
}

// checkPrivateKey verifies the sanitized key is a single PEM block with
// matching BEGIN and END lines.
func checkPrivateKey(raw string) error {
	key := gsheet.SanitizePrivateKey(raw)
	if !strings.Contains(key, "-----BEGIN") || !strings.Contains(key, "-----END") {
		return fmt.Errorf("missing BEGIN/END markers; check quoting and \\n escapes")
	}
	block, rest := pem.Decode([]byte(key))
	if block == nil {
		return fmt.Errorf("not a valid PEM block")
	}
	if len(strings.TrimSpace(string(rest))) > 0 {
		return fmt.Errorf("unexpected data after the PEM block")
	}
	return nil
}

func runProbe(ctx context.Context, logger *log.Logger, cfg *config.Config) bool {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		fmt.Printf("probe: %v\n", err)
		return false
	}
	result, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		fmt.Printf("probe: %v\n", err)
		return false
	}

	start := time.Now()
	rows, err := result.Repository.FetchAll(ctx)
	if err != nil {
		fmt.Printf("probe: read %s failed: %v\n", result.Repository.Target().ReadRange(), err)
		return false
	}
	data := core.DataRows(rows)
	txs, stats := core.TransformRows(data, time.Now())
	fmt.Printf("probe: read %s in %v: %d rows, %d transactions",
		result.Repository.Target().ReadRange(), time.Since(start).Round(time.Millisecond), len(rows), len(txs))
	if stats.Short > 0 || stats.InvalidAmount > 0 || stats.DefaultedDates > 0 {
		fmt.Printf(" (%d short, %d invalid amounts, %d defaulted dates)",
			stats.Short, stats.InvalidAmount, stats.DefaultedDates)
	}
	fmt.Println()
	return true
}
