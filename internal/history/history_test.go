// SPDX-License-Identifier: MIT

package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s, path
}

func TestRecordAndRecent(t *testing.T) {
	s, path := openTemp(t)
	base := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)

	in := []Entry{
		{At: base, Platform: "twitter", ContentType: "video", Outcome: "success", DurationMS: 420, Items: 1},
		{At: base.Add(time.Minute), Platform: "instagram", ContentType: "gallery", Outcome: "success", DurationMS: 910, Items: 4},
		{At: base.Add(2 * time.Minute), Platform: "tiktok", ContentType: "video", Outcome: "PRIVATE_CONTENT", DurationMS: 120, Items: 0},
	}
	for _, e := range in {
		s.Record(e)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reopen to prove the rows hit disk, not just the queue.
	s2, err := Open(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	got, err := s2.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != len(in) {
		t.Fatalf("Recent returned %d entries, want %d", len(got), len(in))
	}
	// Newest first.
	for i, e := range got {
		want := in[len(in)-1-i]
		if e.Platform != want.Platform {
			t.Errorf("entry %d platform = %q, want %q", i, e.Platform, want.Platform)
		}
		if e.ContentType != want.ContentType {
			t.Errorf("entry %d contentType = %q, want %q", i, e.ContentType, want.ContentType)
		}
		if e.Outcome != want.Outcome {
			t.Errorf("entry %d outcome = %q, want %q", i, e.Outcome, want.Outcome)
		}
		if e.DurationMS != want.DurationMS {
			t.Errorf("entry %d durationMs = %d, want %d", i, e.DurationMS, want.DurationMS)
		}
		if e.Items != want.Items {
			t.Errorf("entry %d items = %d, want %d", i, e.Items, want.Items)
		}
		if !e.At.Equal(want.At) {
			t.Errorf("entry %d at = %v, want %v", i, e.At, want.At)
		}
	}
}

func TestRecentLimit(t *testing.T) {
	s, _ := openTemp(t)
	defer s.Close()

	for i := 0; i < 5; i++ {
		s.Record(Entry{Platform: "pixiv", ContentType: "image", Outcome: "success", Items: i})
	}
	waitForRows(t, s, 5)

	got, err := s.Recent(context.Background(), 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Recent returned %d entries, want 2", len(got))
	}
	if got[0].Items != 4 || got[1].Items != 3 {
		t.Errorf("Recent order = [%d %d], want [4 3]", got[0].Items, got[1].Items)
	}
}

func TestRecentDefaultLimit(t *testing.T) {
	s, _ := openTemp(t)
	defer s.Close()

	s.Record(Entry{Platform: "facebook", ContentType: "video", Outcome: "success", Items: 1})
	waitForRows(t, s, 1)

	got, err := s.Recent(context.Background(), 0)
	if err != nil {
		t.Fatalf("Recent with zero limit: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Recent returned %d entries, want 1", len(got))
	}
}

func TestDurationConversion(t *testing.T) {
	s, _ := openTemp(t)
	defer s.Close()

	s.Record(Entry{Platform: "twitter", ContentType: "video", Outcome: "success", Duration: 1500 * time.Millisecond})
	waitForRows(t, s, 1)

	got, err := s.Recent(context.Background(), 1)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if got[0].DurationMS != 1500 {
		t.Errorf("durationMs = %d, want 1500", got[0].DurationMS)
	}
	if got[0].Duration != 1500*time.Millisecond {
		t.Errorf("duration = %v, want 1.5s", got[0].Duration)
	}
}

func TestZeroTimestampDefaults(t *testing.T) {
	s, _ := openTemp(t)
	defer s.Close()

	before := time.Now().UTC().Add(-time.Second)
	s.Record(Entry{Platform: "tiktok", ContentType: "video", Outcome: "success"})
	waitForRows(t, s, 1)

	got, err := s.Recent(context.Background(), 1)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if got[0].At.Before(before) {
		t.Errorf("at = %v, want a recent timestamp", got[0].At)
	}
}

func TestNilStoreIsNoOp(t *testing.T) {
	var s *Store

	s.Record(Entry{Platform: "twitter"})
	got, err := s.Recent(context.Background(), 10)
	if err != nil || got != nil {
		t.Errorf("nil Recent = (%v, %v), want (nil, nil)", got, err)
	}
	if s.Enabled() {
		t.Error("nil store reports Enabled")
	}
	if err := s.Close(); err != nil {
		t.Errorf("nil Close: %v", err)
	}
}

func TestRecordAfterCloseDoesNotPanic(t *testing.T) {
	s, _ := openTemp(t)
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	s.Record(Entry{Platform: "twitter"})
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestReopenKeepsSchema(t *testing.T) {
	s, path := openTemp(t)
	s.Record(Entry{Platform: "instagram", ContentType: "image", Outcome: "success", Items: 1})
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := Open(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	s2.Record(Entry{Platform: "instagram", ContentType: "image", Outcome: "success", Items: 2})
	if err := s2.Close(); err != nil {
		t.Fatalf("Close after reopen: %v", err)
	}

	s3, err := Open(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("third open: %v", err)
	}
	defer s3.Close()
	got, err := s3.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Recent returned %d entries after reopen, want 2", len(got))
	}
}

func TestOpenBadPath(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "missing", "history.db"), zerolog.Nop()); err == nil {
		t.Fatal("Open in a missing directory succeeded")
	}
}

// waitForRows polls until the background writer has flushed count rows.
func waitForRows(t *testing.T, s *Store, count int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, err := s.Recent(context.Background(), MaxLimit)
		if err != nil {
			t.Fatalf("Recent while waiting: %v", err)
		}
		if len(got) >= count {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("writer did not flush %d rows in time", count)
}
