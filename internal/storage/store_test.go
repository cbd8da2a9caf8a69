package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "bot.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return s
}

func TestUpsertUserAndCounts(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	if err := s.UpsertUser(ctx, 100, "alice", "Alice", ""); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	// Second upsert must not create a duplicate row.
	if err := s.UpsertUser(ctx, 100, "alice2", "Alice", "A"); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	if err := s.UpsertUser(ctx, 200, "bob", "Bob", ""); err != nil {
		t.Fatalf("upsert bob: %v", err)
	}

	total, active, err := s.UserCounts(ctx)
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if total != 2 || active != 2 {
		t.Fatalf("want 2/2, got %d/%d", total, active)
	}

	if err := s.MarkUserInactive(ctx, 200); err != nil {
		t.Fatalf("mark inactive: %v", err)
	}
	_, active, err = s.UserCounts(ctx)
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if active != 1 {
		t.Fatalf("want 1 active, got %d", active)
	}

	ids, err := s.ActiveUserIDs(ctx)
	if err != nil {
		t.Fatalf("active ids: %v", err)
	}
	if len(ids) != 1 || ids[0] != 100 {
		t.Fatalf("unexpected active ids: %v", ids)
	}
}

func TestDownloadsAndStats(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	if err := s.UpsertUser(ctx, 1, "u", "U", ""); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.AppendDownload(ctx, 1, "Song A", "mp3", ""); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.AppendDownload(ctx, 1, "Song B", "mp3", ""); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.AppendDownload(ctx, 1, "Clip C", "mp4", ""); err != nil {
		t.Fatalf("append: %v", err)
	}

	st, err := s.DownloadStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Total != 3 || st.Today != 3 {
		t.Fatalf("want total=3 today=3, got %+v", st)
	}
	if st.Formats["mp3"] != 2 || st.Formats["mp4"] != 1 {
		t.Fatalf("unexpected format counts: %+v", st.Formats)
	}
}

func TestSettings(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	// Absent key means disabled, not an error.
	if _, ok, err := s.Setting(ctx, "forced_channel"); err != nil || ok {
		t.Fatalf("absent setting: ok=%v err=%v", ok, err)
	}

	if err := s.SetSetting(ctx, "forced_channel", "@music"); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, ok, err := s.Setting(ctx, "forced_channel")
	if err != nil || !ok || v != "@music" {
		t.Fatalf("get after set: %q ok=%v err=%v", v, ok, err)
	}

	// Upsert semantics.
	if err := s.SetSetting(ctx, "forced_channel", "@other"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	v, _, _ = s.Setting(ctx, "forced_channel")
	if v != "@other" {
		t.Fatalf("upsert not effective: %q", v)
	}

	if err := s.DeleteSetting(ctx, "forced_channel"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := s.Setting(ctx, "forced_channel"); ok {
		t.Fatalf("delete not effective")
	}
	// Deleting again is a no-op.
	if err := s.DeleteSetting(ctx, "forced_channel"); err != nil {
		t.Fatalf("double delete: %v", err)
	}
}

func TestPromoReplaceWins(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	p, err := s.CurrentPromo(ctx)
	if err != nil || p != nil {
		t.Fatalf("empty store: %+v %v", p, err)
	}

	if err := s.ReplacePromo(ctx, "file-1", "first banner"); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if err := s.ReplacePromo(ctx, "file-2", "second banner"); err != nil {
		t.Fatalf("replace: %v", err)
	}

	p, err = s.CurrentPromo(ctx)
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if p == nil || p.FileID != "file-2" {
		t.Fatalf("replace did not win: %+v", p)
	}

	// Idempotent selection: two reads with no intervening write agree.
	p2, err := s.CurrentPromo(ctx)
	if err != nil || p2 == nil || p2.ID != p.ID {
		t.Fatalf("selection not idempotent: %+v vs %+v", p, p2)
	}

	n, err := s.DeleteAllPromos(ctx)
	if err != nil || n != 1 {
		t.Fatalf("delete all: n=%d err=%v", n, err)
	}
	if p, _ := s.CurrentPromo(ctx); p != nil {
		t.Fatalf("promo survived delete: %+v", p)
	}
}

// Even if an older promo carries a later clock reading, replace leaves a
// single row, so the newly inserted one is what b reads back.
func TestPromoClockSkew(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	if err := s.ReplacePromo(ctx, "skewed", "from the future"); err != nil {
		t.Fatalf("replace: %v", err)
	}
	// Push the existing row's timestamp ahead of any realistic "now".
	future := time.Now().UTC().Add(48 * time.Hour)
	if err := s.db.Model(&Promo{}).Where("file_id = ?", "skewed").
		Update("created_at", future).Error; err != nil {
		t.Fatalf("skew: %v", err)
	}

	if err := s.ReplacePromo(ctx, "fresh", "inserted last"); err != nil {
		t.Fatalf("replace: %v", err)
	}
	p, err := s.CurrentPromo(ctx)
	if err != nil || p == nil {
		t.Fatalf("current: %+v %v", p, err)
	}
	if p.FileID != "fresh" {
		t.Fatalf("skewed promo won over the replacement: %+v", p)
	}
}
