//go:build integration

package google

import (
	"context"
	"os"
	"testing"
	"time"

	"findash/internal/log"
	"findash/internal/validate"
)

// Integration tests require real Google Sheets credentials
// Run with: go test -tags=integration ./internal/sheets/google

func TestIntegration_FetchAndValidate(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	spreadsheetID := os.Getenv("GOOGLE_SPREADSHEET_ID")
	if spreadsheetID == "" {
		t.Skip("GOOGLE_SPREADSHEET_ID not set, skipping integration test")
	}
	cfg := Config{
		SpreadsheetID:      spreadsheetID,
		ServiceAccountJSON: os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"),
		ServiceAccountFile: os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"),
	}
	if cfg.ServiceAccountJSON == "" && cfg.ServiceAccountFile == "" && os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
		t.Skip("service account credentials not configured, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	src, err := New(ctx, cfg, log.Discard())
	if err != nil {
		t.Fatalf("Failed to create source: %v", err)
	}
	wb, err := src.Fetch(ctx)
	if err != nil {
		t.Fatalf("Failed to fetch spreadsheet: %v", err)
	}
	t.Logf("Fetched tabs: %v", wb.Names())

	snap, err := validate.Validate(wb)
	if err != nil {
		t.Logf("Spreadsheet rejected: %v", err)
		return
	}
	t.Logf("Spreadsheet accepted: %+v", snap.Counts())
}
