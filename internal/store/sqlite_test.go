package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/webdc/firstblood/internal/models"
	"github.com/webdc/firstblood/pkg/logx"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "firstblood.db"), logx.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func rec(eventID, challengeID int64, user string, date time.Time) models.FirstBlood {
	return models.FirstBlood{
		Date:        date,
		EventID:     eventID,
		ChallengeID: challengeID,
		Username:    user,
	}
}

func int64p(v int64) *int64        { return &v }
func timep(t time.Time) *time.Time { return &t }

func TestInsertAssignsIDAndDefaults(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	before := time.Now().UTC().Truncate(time.Second)
	stored, err := s.Insert(ctx, rec(1, 5, "alice", time.Time{}))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	after := time.Now().UTC()

	if stored.ID == 0 {
		t.Fatal("expected store-assigned id")
	}
	if stored.WasSent {
		t.Fatal("new record must start unsent")
	}
	if stored.Date.Before(before) || stored.Date.After(after) {
		t.Fatalf("defaulted date %v outside [%v, %v]", stored.Date, before, after)
	}
}

func TestInsertDuplicatePairRejected(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.Insert(ctx, rec(1, 5, "alice", time.Now())); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	_, err := s.Insert(ctx, rec(1, 5, "bob", time.Now()))
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	all, err := s.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected exactly one record for the pair, got %d", len(all))
	}
	if all[0].Username != "alice" {
		t.Fatalf("duplicate must not overwrite, got username %q", all[0].Username)
	}
}

func TestInsertSamePairDifferentEvent(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.Insert(ctx, rec(1, 5, "alice", time.Now())); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := s.Insert(ctx, rec(2, 5, "bob", time.Now())); err != nil {
		t.Fatalf("same challenge in another event must be allowed: %v", err)
	}
}

func TestListFilteredWindowDescending(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := int64(0); i < 5; i++ {
		if _, err := s.Insert(ctx, rec(1, 10+i, "alice", base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	// Inclusive window covering the middle three records.
	got, err := s.List(ctx, Filter{
		Start: timep(base.Add(1 * time.Hour)),
		End:   timep(base.Add(3 * time.Hour)),
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 records in window, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Date.After(got[i-1].Date) {
			t.Fatalf("records not ordered by date descending: %v before %v", got[i-1].Date, got[i].Date)
		}
	}
	if !got[0].Date.Equal(base.Add(3 * time.Hour)) {
		t.Fatalf("window end is inclusive, expected first record at %v, got %v", base.Add(3*time.Hour), got[0].Date)
	}
}

func TestListFiltersCombineWithAnd(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	mustInsert(t, s, rec(1, 5, "alice", now))
	mustInsert(t, s, rec(1, 6, "bob", now))
	mustInsert(t, s, rec(2, 5, "carol", now))

	got, err := s.List(ctx, Filter{EventID: int64p(1), ChallengeID: int64p(5)})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].Username != "alice" {
		t.Fatalf("expected only alice's record, got %+v", got)
	}
}

func TestClaimReturnsEachRecordOnce(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	mustInsert(t, s, rec(1, 5, "alice", time.Now()))
	mustInsert(t, s, rec(1, 6, "bob", time.Now()))

	first, err := s.Claim(ctx, Filter{})
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("expected 2 claimed records, got %d", len(first))
	}
	for _, r := range first {
		if !r.WasSent {
			t.Fatalf("claimed record %d not marked sent", r.ID)
		}
	}

	second, err := s.Claim(ctx, Filter{})
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if len(second) != 0 {
		t.Fatalf("second claim must be empty, got %d records", len(second))
	}
}

func TestClaimHonorsFilter(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	mustInsert(t, s, rec(1, 5, "alice", time.Now()))
	mustInsert(t, s, rec(2, 5, "bob", time.Now()))

	got, err := s.Claim(ctx, Filter{EventID: int64p(1)})
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(got) != 1 || got[0].EventID != 1 {
		t.Fatalf("expected only event 1 claimed, got %+v", got)
	}

	// The other event's record is still claimable.
	rest, err := s.Claim(ctx, Filter{})
	if err != nil {
		t.Fatalf("claim rest: %v", err)
	}
	if len(rest) != 1 || rest[0].EventID != 2 {
		t.Fatalf("expected event 2 still unsent, got %+v", rest)
	}
}

func TestMarkSentIdempotent(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	stored := mustInsert(t, s, rec(1, 5, "alice", time.Now()))
	if err := s.MarkSent(ctx, stored.ID); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	if err := s.MarkSent(ctx, stored.ID); err != nil {
		t.Fatalf("second mark sent must be a no-op, got %v", err)
	}

	got, err := s.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || !got[0].WasSent {
		t.Fatalf("expected one sent record, got %+v", got)
	}
}

func TestMigrateIsRepeatable(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "firstblood.db")

	s, err := Open(path, logx.Nop())
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	mustInsert(t, s, rec(1, 5, "alice", time.Now()))
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s2, err := Open(path, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	got, err := s2.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("list after reopen: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected data to survive reopen, got %d records", len(got))
	}
}

func mustInsert(t *testing.T, s *SQLiteStore, r models.FirstBlood) models.FirstBlood {
	t.Helper()
	stored, err := s.Insert(context.Background(), r)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	return stored
}
