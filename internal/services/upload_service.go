// Package services orchestrates the upload flow: read a workbook, validate
// it, replace the session snapshot and journal the outcome.
package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"findash/internal/core"
	"findash/internal/log"
	"findash/internal/session"
	"findash/internal/sheets"
	"findash/internal/validate"
	"findash/internal/workbook"
)

// SourceUpload is the source name of browser and CLI uploads.
const SourceUpload = "upload"

// DefaultMaxBytes bounds an upload when no limit is configured.
const DefaultMaxBytes = 10 << 20

// Rejection reasons that are not validation diagnostics.
const (
	ReasonTooLarge          = "too_large"
	ReasonUnreadable        = "unreadable"
	ReasonSourceUnavailable = "source_unavailable"
)

var (
	ErrTooLarge          = errors.New("workbook exceeds the upload size limit")
	ErrSourceUnavailable = errors.New("workbook source unavailable")
)

// Options tune an UploadService. Zero values pick defaults.
type Options struct {
	MaxBytes int64
	Now      func() time.Time
	NewID    func() string
}

// UploadService turns raw workbooks into session snapshots.
type UploadService struct {
	store      *session.Store
	journal    sheets.UploadJournal
	logger     *log.Logger
	structured *log.StructuredLogger
	maxBytes   int64
	now        func() time.Time
	newID      func() string
}

func NewUploadService(store *session.Store, journal sheets.UploadJournal, logger *log.Logger, opts Options) *UploadService {
	logger = logger.WithComponent(log.ComponentUpload)
	s := &UploadService{
		store:      store,
		journal:    journal,
		logger:     logger,
		structured: log.NewStructuredLogger(logger),
		maxBytes:   opts.MaxBytes,
		now:        opts.Now,
		newID:      opts.NewID,
	}
	if s.maxBytes <= 0 {
		s.maxBytes = DefaultMaxBytes
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

// MaxBytes is the upload size limit in bytes.
func (s *UploadService) MaxBytes() int64 { return s.maxBytes }

// Upload reads an .xlsx stream for sessionID. On success the session's
// snapshot is replaced; on any failure the previous snapshot stays and the
// returned error explains the rejection. The record is returned either way.
func (s *UploadService) Upload(ctx context.Context, sessionID, filename string, r io.Reader) (core.UploadRecord, error) {
	rec := s.newRecord(sessionID, SourceUpload, filename)

	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return s.reject(ctx, rec, fmt.Errorf("%w: %v", workbook.ErrUnreadable, err))
	}
	if int64(len(data)) > s.maxBytes {
		return s.reject(ctx, rec, ErrTooLarge)
	}
	sum := sha256.Sum256(data)
	rec.Fingerprint = hex.EncodeToString(sum[:])

	wb, err := workbook.ReadXLSX(bytes.NewReader(data))
	if err != nil {
		return s.reject(ctx, rec, err)
	}
	return s.accept(ctx, rec, wb)
}

// ImportSheets fetches a workbook from src and treats it like an upload.
func (s *UploadService) ImportSheets(ctx context.Context, sessionID string, src sheets.WorkbookSource) (core.UploadRecord, error) {
	rec := s.newRecord(sessionID, src.Name(), "")

	wb, err := src.Fetch(ctx)
	if err != nil {
		return s.reject(ctx, rec, fmt.Errorf("%w: %v", ErrSourceUnavailable, err))
	}
	return s.accept(ctx, rec, wb)
}

func (s *UploadService) newRecord(sessionID, source, filename string) core.UploadRecord {
	return core.UploadRecord{
		ID:        s.newID(),
		SessionID: sessionID,
		Source:    source,
		Filename:  filename,
		CreatedAt: s.now().UTC(),
	}
}

func (s *UploadService) accept(ctx context.Context, rec core.UploadRecord, wb workbook.Workbook) (core.UploadRecord, error) {
	snap, err := validate.Validate(wb)
	if err != nil {
		return s.reject(ctx, rec, err)
	}
	s.store.Put(rec.SessionID, snap)

	rec.Outcome = core.OutcomeAccepted
	rec.Counts = snap.Counts()
	s.finish(ctx, rec)
	return rec, nil
}

func (s *UploadService) reject(ctx context.Context, rec core.UploadRecord, cause error) (core.UploadRecord, error) {
	rec.Outcome = core.OutcomeRejected
	rec.Reason = Reason(cause)
	rec.Message = cause.Error()
	s.finish(ctx, rec)
	return rec, cause
}

// finish logs and journals rec. Journal failures never fail the upload.
func (s *UploadService) finish(ctx context.Context, rec core.UploadRecord) {
	s.structured.LogUpload(ctx, rec.SessionID, rec.ID, rec.Filename, rec.Fingerprint, rec.Outcome, rec.Reason)
	if s.journal == nil {
		return
	}
	if err := s.journal.Record(ctx, rec); err != nil {
		fields := log.NewFields().WithUpload(rec.SessionID, rec.ID, rec.Filename, rec.Fingerprint)
		s.structured.LogError(ctx, "Failed to journal upload", err, log.OpRecord, fields)
	}
}

// Reason classifies a rejection error into a stable machine-readable code.
func Reason(err error) string {
	if diags := validate.Diagnostics(err); len(diags) > 0 {
		return diags[0].Reason()
	}
	switch {
	case errors.Is(err, ErrTooLarge):
		return ReasonTooLarge
	case errors.Is(err, ErrSourceUnavailable):
		return ReasonSourceUnavailable
	case errors.Is(err, workbook.ErrUnreadable):
		return ReasonUnreadable
	default:
		return "error"
	}
}
