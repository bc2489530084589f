// Package sheets declares the ports between the upload flow and its
// outbound adapters: where workbooks come from and where upload
// metadata is recorded.
package sheets

import (
	"context"

	"findash/internal/core"
	"findash/internal/workbook"
)

// Ports for outbound adapters.
type (
	// WorkbookSource fetches a raw workbook from a remote spreadsheet.
	WorkbookSource interface {
		Fetch(ctx context.Context) (workbook.Workbook, error)
		// Name identifies the source in upload records.
		Name() string
	}

	// UploadJournal records the outcome of every upload attempt.
	UploadJournal interface {
		Record(ctx context.Context, rec core.UploadRecord) error
	}

	// JournalLister returns the most recent upload records, newest first.
	JournalLister interface {
		Recent(ctx context.Context, limit int) ([]core.UploadRecord, error)
	}
)
