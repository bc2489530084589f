package memory

import (
	"context"
	"fmt"
	"testing"

	"findash/internal/core"
)

func TestJournalRecentNewestFirst(t *testing.T) {
	j := New(3)
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		if err := j.Record(ctx, core.UploadRecord{ID: fmt.Sprint(i)}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	got, err := j.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 3 || got[0].ID != "5" || got[2].ID != "3" {
		t.Fatalf("unexpected records %+v", got)
	}
	got, _ = j.Recent(ctx, 1)
	if len(got) != 1 || got[0].ID != "5" {
		t.Fatalf("limit not applied: %+v", got)
	}
}

func TestJournalPartiallyFilled(t *testing.T) {
	j := New(0)
	ctx := context.Background()
	_ = j.Record(ctx, core.UploadRecord{ID: "a"})
	_ = j.Record(ctx, core.UploadRecord{ID: "b"})
	got, _ := j.Recent(ctx, 10)
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "a" {
		t.Fatalf("unexpected records %+v", got)
	}
}
