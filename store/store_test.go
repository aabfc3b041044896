// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/danielhkuo/commission-negotiation/db"
	"github.com/danielhkuo/commission-negotiation/gate"
	"github.com/danielhkuo/commission-negotiation/models"
	"github.com/danielhkuo/commission-negotiation/negotiation"
	"github.com/danielhkuo/commission-negotiation/testutil"
)

var (
	seller   = models.Actor{Role: models.RoleSeller, ID: "seller-1"}
	platform = models.Actor{Role: models.RolePlatform, ID: "ops"}
	t0       = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
)

func setup(t *testing.T) (*Store, *negotiation.Machine) {
	t.Helper()
	return New(testutil.SetupTestDB(t), db.SQLite), negotiation.NewMachine(negotiation.DefaultPolicy())
}

func createCase(t *testing.T, s *Store, m *negotiation.Machine, sellerID, rate string) *models.NegotiationCase {
	t.Helper()
	c, err := m.Open(uuid.NewString(), sellerID, rate, platform, t0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Create(context.Background(), c); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return c
}

func TestCreateAndLoad(t *testing.T) {
	s, m := setup(t)
	ctx := context.Background()
	c := createCase(t, s, m, "seller-1", "20")

	if c.Version != 1 {
		t.Errorf("version after create = %d, want 1", c.Version)
	}

	got, err := s.Load(ctx, c.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Status != models.StatusPending || !got.CurrentRate.Equal(decimal.NewFromInt(20)) {
		t.Errorf("loaded case = %+v", got)
	}
	if got.CounterRate.Valid {
		t.Error("counter rate should be null on a pending case")
	}
	if got.MaxRounds != 3 || got.Round != 0 || got.Version != 1 {
		t.Errorf("max/round/version = %d/%d/%d", got.MaxRounds, got.Round, got.Version)
	}
	if !got.CreatedAt.Equal(t0) {
		t.Errorf("created at = %v, want %v", got.CreatedAt, t0)
	}
	if len(got.History) != 1 || got.History[0].Action != models.ActionOffer {
		t.Errorf("history = %+v", got.History)
	}
}

func TestLoad_NotFound(t *testing.T) {
	s, _ := setup(t)
	if _, err := s.Load(context.Background(), "missing"); !errors.Is(err, ErrCaseNotFound) {
		t.Errorf("error = %v, want ErrCaseNotFound", err)
	}
}

func TestCreate_OneOpenCasePerSeller(t *testing.T) {
	s, m := setup(t)
	ctx := context.Background()
	first := createCase(t, s, m, "seller-1", "20")

	dup, _ := m.Open(uuid.NewString(), "seller-1", "25", platform, t0)
	if err := s.Create(ctx, dup); !errors.Is(err, ErrOpenCaseExists) {
		t.Fatalf("error = %v, want ErrOpenCaseExists", err)
	}

	// Closing the first case frees the seller
	closed, err := m.Reject(first, platform, "offer withdrawn", t0.Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, closed); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Create(ctx, dup); err != nil {
		t.Errorf("create after close: %v", err)
	}
}

func TestCreate_ConcurrentOpenForSameSeller(t *testing.T) {
	s, m := setup(t)
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	var created, refused int32
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := m.Open(uuid.NewString(), "seller-1", "20", platform, t0)
			if err != nil {
				t.Errorf("Open: %v", err)
				return
			}
			switch err := s.Create(ctx, c); {
			case err == nil:
				atomic.AddInt32(&created, 1)
			case errors.Is(err, ErrOpenCaseExists):
				atomic.AddInt32(&refused, 1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if created != 1 || refused != workers-1 {
		t.Errorf("created=%d refused=%d, want 1 and %d", created, refused, workers-1)
	}
}

func TestSave_RoundTripsTransitions(t *testing.T) {
	s, m := setup(t)
	ctx := context.Background()
	c := createCase(t, s, m, "seller-1", "20")

	countered, err := m.Counter(c, seller, "15.5", "Rate too high for my catalog size", t0.Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, countered); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.StatusCounterOffered {
		t.Errorf("status = %s", got.Status)
	}
	if !got.CounterRate.Valid || !got.CounterRate.Decimal.Equal(decimal.RequireFromString("15.5")) {
		t.Errorf("counter rate = %v, want 15.5", got.CounterRate)
	}
	if got.CounterReason != "Rate too high for my catalog size" {
		t.Errorf("counter reason = %q", got.CounterReason)
	}
	if got.Round != 1 || got.Version != 2 || len(got.History) != 2 {
		t.Errorf("round/version/history = %d/%d/%d", got.Round, got.Version, len(got.History))
	}
	if !got.LastActivityAt.Equal(t0.Add(time.Minute)) {
		t.Errorf("last activity = %v", got.LastActivityAt)
	}

	accepted, err := m.Accept(got, platform, t0.Add(2*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, accepted); err != nil {
		t.Fatalf("Save accepted: %v", err)
	}
	final, _ := s.Load(ctx, c.ID)
	if final.Status != models.StatusAccepted || !final.CurrentRate.Equal(decimal.RequireFromString("15.5")) {
		t.Errorf("final = %+v", final)
	}
	if final.CounterRate.Valid {
		t.Error("counter rate should be cleared after accept")
	}
	for i, e := range final.History {
		if e.Seq != i+1 {
			t.Errorf("history[%d].seq = %d", i, e.Seq)
		}
	}
}

func TestSave_StaleVersion(t *testing.T) {
	s, m := setup(t)
	ctx := context.Background()
	c := createCase(t, s, m, "seller-1", "20")

	a, _ := s.Load(ctx, c.ID)
	b, _ := s.Load(ctx, c.ID)

	nextA, _ := m.Counter(a, seller, "15", "Rate too high for my catalog size", t0)
	nextB, _ := m.Accept(b, seller, t0)

	if err := s.Save(ctx, nextA); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := s.Save(ctx, nextB); !errors.Is(err, ErrStaleCase) {
		t.Fatalf("second save error = %v, want ErrStaleCase", err)
	}

	got, _ := s.Load(ctx, c.ID)
	if got.Status != models.StatusCounterOffered || len(got.History) != 2 {
		t.Errorf("stale save leaked: status=%s history=%d", got.Status, len(got.History))
	}
}

func TestList(t *testing.T) {
	s, m := setup(t)
	ctx := context.Background()

	a := createCase(t, s, m, "seller-a", "20")
	createCase(t, s, m, "seller-b", "25")
	createCase(t, s, m, "seller-c", "30")

	countered, _ := m.Counter(a, models.Actor{Role: models.RoleSeller, ID: "seller-a"}, "18", "Rate too high for my catalog size", t0.Add(time.Hour))
	if err := s.Save(ctx, countered); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"all", Filter{}, 3},
		{"pending", Filter{Status: models.StatusPending}, 2},
		{"counter offered", Filter{Status: models.StatusCounterOffered}, 1},
		{"by seller", Filter{SellerID: "seller-b"}, 1},
		{"seller and status mismatch", Filter{SellerID: "seller-a", Status: models.StatusPending}, 0},
		{"limit", Filter{Limit: 2}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d cases, want %d", len(got), tt.want)
			}
		})
	}

	all, _ := s.List(ctx, Filter{})
	if all[0].ID != a.ID {
		t.Errorf("most recently active case should come first")
	}
	if all[0].Round != 1 {
		t.Errorf("listed round = %d, want 1", all[0].Round)
	}
}

func TestResults(t *testing.T) {
	s, _ := setup(t)
	ctx := context.Background()
	r := s.NewResults(time.Hour)
	now := t0
	r.now = func() time.Time { return now }

	miss, err := r.Lookup(ctx, "case-1", "tok")
	if err != nil || miss != nil {
		t.Fatalf("lookup on empty table = %v, %v", miss, err)
	}

	done := gate.Completion{
		Fingerprint: "fp-1",
		View:        models.CaseView{CaseID: "case-1", Status: models.StatusCounterOffered, Round: 1, CurrentRate: decimal.NewFromInt(20)},
		CompletedAt: now,
	}
	if err := r.Remember(ctx, "case-1", "tok", done); err != nil {
		t.Fatalf("Remember: %v", err)
	}
	// Second write for the same key is ignored
	if err := r.Remember(ctx, "case-1", "tok", gate.Completion{Fingerprint: "fp-2", CompletedAt: now}); err != nil {
		t.Fatalf("duplicate Remember: %v", err)
	}

	got, err := r.Lookup(ctx, "case-1", "tok")
	if err != nil || got == nil {
		t.Fatalf("Lookup = %v, %v", got, err)
	}
	if got.Fingerprint != "fp-1" || got.View.Round != 1 || got.View.Status != models.StatusCounterOffered {
		t.Errorf("receipt = %+v", got)
	}

	now = now.Add(2 * time.Hour)
	if got, _ := r.Lookup(ctx, "case-1", "tok"); got != nil {
		t.Errorf("expired receipt returned: %+v", got)
	}
	n, err := r.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if n != 1 {
		t.Errorf("purged %d receipts, want 1", n)
	}
}

func TestTimeScanner(t *testing.T) {
	want := time.Date(2025, 3, 1, 12, 30, 15, 500000000, time.UTC)
	inputs := []any{
		want,
		"2025-03-01T12:30:15.5Z",
		"2025-03-01 12:30:15.5+00:00",
		[]byte("2025-03-01 12:30:15.5 +0000 UTC"),
	}
	for _, in := range inputs {
		var got time.Time
		if err := (timeScanner{&got}).Scan(in); err != nil {
			t.Errorf("Scan(%v): %v", in, err)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("Scan(%v) = %v, want %v", in, got, want)
		}
	}

	var got time.Time
	if err := (timeScanner{&got}).Scan(42); err == nil {
		t.Error("Scan(int) should fail")
	}
}
