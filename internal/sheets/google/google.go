// Package google reads the finance workbook from a Google Spreadsheet.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"findash/internal/core"
	"findash/internal/log"
	ports "findash/internal/sheets"
	"findash/internal/workbook"
)

var ErrNotConfigured = errors.New("google spreadsheet import is not configured")

// Config selects the spreadsheet and the service account used to read it.
type Config struct {
	SpreadsheetID      string
	ServiceAccountJSON string
	ServiceAccountFile string
}

// Source fetches the four finance tabs of one spreadsheet.
type Source struct {
	svc           *gsheet.Service
	spreadsheetID string
	logger        *log.Logger
}

var _ ports.WorkbookSource = (*Source)(nil)

// New creates a Sheets-backed source using service account credentials.
func New(ctx context.Context, cfg Config, logger *log.Logger) (*Source, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, ErrNotConfigured
	}
	svc, err := newSheetsService(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, cfg.SpreadsheetID, logger), nil
}

// NewWithService wraps an existing Sheets service.
func NewWithService(svc *gsheet.Service, spreadsheetID string, logger *log.Logger) *Source {
	return &Source{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		logger:        logger.WithComponent(log.ComponentSheets),
	}
}

// newSheetsService initializes a read-only Sheets service from inline JSON
// or a credentials file, falling back to GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context, cfg Config, logger *log.Logger) (*gsheet.Service, error) {
	credentialsFile := strings.TrimSpace(cfg.ServiceAccountFile)
	if cfg.ServiceAccountJSON == "" && credentialsFile == "" {
		credentialsFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case cfg.ServiceAccountJSON != "":
		credentialsJSON = []byte(cfg.ServiceAccountJSON)
	case credentialsFile != "":
		b, err := os.ReadFile(credentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	logger.Debug("Creating Google Sheets service", "credentials_size", len(credentialsJSON))
	return gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
}

func (s *Source) Name() string {
	return "sheets:" + s.spreadsheetID
}

// Fetch lists the spreadsheet tabs and reads every required tab that exists
// concurrently. Missing tabs are left out so validation can report them.
func (s *Source) Fetch(ctx context.Context) (workbook.Workbook, error) {
	meta, err := s.svc.Spreadsheets.Get(s.spreadsheetID).
		Fields("sheets.properties.title").
		Context(ctx).Do()
	if err != nil {
		return workbook.Workbook{}, fmt.Errorf("read spreadsheet %s: %w", s.spreadsheetID, err)
	}
	present := make(map[string]bool, len(meta.Sheets))
	for _, sh := range meta.Sheets {
		if sh.Properties != nil {
			present[sh.Properties.Title] = true
		}
	}

	var names []string
	for _, name := range core.SheetNames {
		if present[name] {
			names = append(names, name)
		}
	}

	sheets := make([]workbook.Sheet, len(names))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		g.Go(func() error {
			resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, quoteSheet(name)).
				ValueRenderOption("UNFORMATTED_VALUE").
				DateTimeRenderOption("SERIAL_NUMBER").
				Context(gctx).Do()
			if err != nil {
				return fmt.Errorf("read tab %q: %w", name, err)
			}
			sheets[i] = workbook.Sheet{Name: name, Rows: toRows(resp.Values)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return workbook.Workbook{}, err
	}

	s.logger.InfoContext(ctx, "Spreadsheet fetched", log.FieldSpreadsheet, s.spreadsheetID, "tabs", len(sheets))
	return workbook.Workbook{Sheets: sheets}, nil
}

// quoteSheet renders a sheet name as an A1 range covering the whole tab.
func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// toRows converts API values (float64, string, bool) to workbook cells;
// empty strings become blank cells.
func toRows(values [][]interface{}) [][]any {
	rows := make([][]any, len(values))
	for i, row := range values {
		cells := make([]any, len(row))
		for j, v := range row {
			if s, ok := v.(string); ok && s == "" {
				continue
			}
			cells[j] = v
		}
		rows[i] = cells
	}
	return rows
}
