// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/danielhkuo/commission-negotiation/db"
	"github.com/danielhkuo/commission-negotiation/events"
	"github.com/danielhkuo/commission-negotiation/gate"
	"github.com/danielhkuo/commission-negotiation/models"
	"github.com/danielhkuo/commission-negotiation/negotiation"
	"github.com/danielhkuo/commission-negotiation/store"
	"github.com/danielhkuo/commission-negotiation/testutil"
)

const reason = "Rate too high for my catalog size"

var platform = models.Actor{Role: models.RolePlatform, ID: "ops"}

func sellerActor(id string) models.Actor {
	return models.Actor{Role: models.RoleSeller, ID: id}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	svc       *Service
	store     *store.Store
	publisher *recordingPublisher
}

func newFixture(t *testing.T, repo func(*store.Store) Repository) *fixture {
	t.Helper()
	st := store.New(testutil.SetupTestDB(t), db.SQLite)
	pub := &recordingPublisher{}
	var r Repository = st
	if repo != nil {
		r = repo(st)
	}
	svc := New(Dependencies{
		Repository: r,
		Gate:       gate.New(gate.NewMemoryFlags(), gate.NewMemoryResults(time.Hour)),
		Machine:    negotiation.NewMachine(negotiation.DefaultPolicy()),
		Publisher:  pub,
	})
	return &fixture{svc: svc, store: st, publisher: pub}
}

func (f *fixture) open(t *testing.T, sellerID, rate string) models.CaseView {
	t.Helper()
	v, err := f.svc.OpenCase(context.Background(), platform, sellerID, rate)
	if err != nil {
		t.Fatalf("OpenCase: %v", err)
	}
	return v
}

func TestCounterThenPlatformAccepts(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	seller := sellerActor("seller-1")
	opened := f.open(t, "seller-1", "20")

	if opened.Status != models.StatusPending || opened.Round != 0 || opened.MaxRounds != 3 {
		t.Fatalf("opened view = %+v", opened)
	}

	v, err := f.svc.CounterOffer(ctx, seller, opened.CaseID, "tok-1", "15", reason)
	if err != nil {
		t.Fatalf("CounterOffer: %v", err)
	}
	if v.Status != models.StatusCounterOffered || v.Round != 1 {
		t.Errorf("after counter: status=%s round=%d", v.Status, v.Round)
	}
	if !v.CounterRate.Valid || !v.CounterRate.Decimal.Equal(decimal.NewFromInt(15)) {
		t.Errorf("counter rate = %v, want 15", v.CounterRate)
	}

	v, err = f.svc.AcceptOffer(ctx, platform, opened.CaseID, "tok-2")
	if err != nil {
		t.Fatalf("AcceptOffer: %v", err)
	}
	if v.Status != models.StatusAccepted || !v.CurrentRate.Equal(decimal.NewFromInt(15)) {
		t.Errorf("after accept: status=%s rate=%s", v.Status, v.CurrentRate)
	}
	if len(v.AllowedActions) != 0 {
		t.Errorf("terminal case offers actions %v", v.AllowedActions)
	}

	want := []string{events.CaseOpened, events.CaseCountered, events.CaseAccepted}
	got := f.publisher.types()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestCounterNotLowerLeavesCaseUnchanged(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	seller := sellerActor("seller-1")
	opened := f.open(t, "seller-1", "20")

	_, err := f.svc.CounterOffer(ctx, seller, opened.CaseID, "tok-1", "25", reason)
	if !errors.Is(err, &negotiation.RateError{Kind: negotiation.NotLowerThanCurrent}) {
		t.Fatalf("error = %v, want NotLowerThanCurrent", err)
	}

	v, err := f.svc.GetView(ctx, seller, opened.CaseID)
	if err != nil {
		t.Fatal(err)
	}
	if v.Round != 0 || v.Status != models.StatusPending {
		t.Errorf("case changed: %+v", v)
	}

	// Failures are not remembered, so the corrected request runs under the same token
	v, err = f.svc.CounterOffer(ctx, seller, opened.CaseID, "tok-1", "18", reason)
	if err != nil {
		t.Fatalf("corrected counter: %v", err)
	}
	if v.Round != 1 || !v.CounterRate.Decimal.Equal(decimal.NewFromInt(18)) {
		t.Errorf("corrected counter view = %+v", v)
	}
}

func TestMaxRoundsThenAccept(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	seller := sellerActor("seller-1")
	id := f.open(t, "seller-1", "30").CaseID

	steps := []struct {
		actor models.Actor
		rate  string
	}{
		{seller, "20"}, {platform, "28"},
		{seller, "22"}, {platform, "26"},
		{seller, "23"}, {platform, "25"},
	}
	for i, s := range steps {
		if _, err := f.svc.CounterOffer(ctx, s.actor, id, "step-"+string(rune('a'+i)), s.rate, reason); err != nil {
			t.Fatalf("step %d (%s %s): %v", i, s.actor.Role, s.rate, err)
		}
	}

	v, _ := f.svc.GetView(ctx, seller, id)
	if v.Status != models.StatusPending || v.Round != 3 || v.RoundsRemaining != 0 {
		t.Fatalf("before final counter: %+v", v)
	}
	for _, a := range v.AllowedActions {
		if a == string(negotiation.OpCounter) {
			t.Errorf("counter still offered at max rounds: %v", v.AllowedActions)
		}
	}

	_, err := f.svc.CounterOffer(ctx, seller, id, "over", "18", "reason long enough")
	if !errors.Is(err, negotiation.ErrMaxRoundsReached) {
		t.Fatalf("error = %v, want ErrMaxRoundsReached", err)
	}

	v, err = f.svc.AcceptOffer(ctx, seller, id, "final")
	if err != nil {
		t.Fatalf("AcceptOffer: %v", err)
	}
	if v.Status != models.StatusAccepted || !v.CurrentRate.Equal(decimal.NewFromInt(25)) {
		t.Errorf("accepted view = %+v", v)
	}
}

func TestTerminalCaseRejectsEverything(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	seller := sellerActor("seller-1")
	id := f.open(t, "seller-1", "20").CaseID

	if _, err := f.svc.RejectOffer(ctx, seller, id, "r1", "not interested"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		call func() error
	}{
		{"accept", func() error { _, err := f.svc.AcceptOffer(ctx, seller, id, "t1"); return err }},
		{"counter", func() error { _, err := f.svc.CounterOffer(ctx, seller, id, "t2", "10", reason); return err }},
		{"reject", func() error { _, err := f.svc.RejectOffer(ctx, seller, id, "t3", "still no thanks"); return err }},
		{"platform accept", func() error { _, err := f.svc.AcceptOffer(ctx, platform, id, "t4"); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, negotiation.ErrCaseClosed) {
				t.Errorf("error = %v, want ErrCaseClosed", err)
			}
		})
	}

	v, _ := f.svc.GetView(ctx, seller, id)
	if v.Status != models.StatusRejected {
		t.Errorf("status = %s, want rejected", v.Status)
	}
}

func TestIdempotentCounter(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	seller := sellerActor("seller-1")
	id := f.open(t, "seller-1", "20").CaseID

	first, err := f.svc.CounterOffer(ctx, seller, id, "same-token", "15", reason)
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.svc.CounterOffer(ctx, seller, id, "same-token", "15", reason)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}

	if first.Round != 1 || second.Round != 1 {
		t.Errorf("rounds = %d, %d; want 1 both times", first.Round, second.Round)
	}
	if !first.LastActivityAt.Equal(second.LastActivityAt) {
		t.Errorf("retry returned a different view")
	}

	c, _ := f.store.Load(ctx, id)
	if c.Round != 1 || len(c.History) != 2 {
		t.Errorf("persisted round=%d history=%d, want 1 and 2", c.Round, len(c.History))
	}

	_, err = f.svc.CounterOffer(ctx, seller, id, "same-token", "14", reason)
	if !errors.Is(err, gate.ErrTokenReused) {
		t.Errorf("changed payload error = %v, want ErrTokenReused", err)
	}
}

func TestTokenRequired(t *testing.T) {
	f := newFixture(t, nil)
	id := f.open(t, "seller-1", "20").CaseID
	_, err := f.svc.AcceptOffer(context.Background(), sellerActor("seller-1"), id, "")
	if !errors.Is(err, gate.ErrTokenRequired) {
		t.Errorf("error = %v, want ErrTokenRequired", err)
	}
}

// lostReceipts drops every receipt, as if the process died between saving
// the case and remembering the result.
type lostReceipts struct{}

func (lostReceipts) Lookup(context.Context, string, string) (*gate.Completion, error) {
	return nil, nil
}

func (lostReceipts) Remember(context.Context, string, string, gate.Completion) error {
	return errors.New("receipt store unavailable")
}

func TestRetryAfterLostReceiptNeverDoubleApplies(t *testing.T) {
	f := newFixture(t, nil)
	f.svc.gate = gate.New(gate.NewMemoryFlags(), lostReceipts{})
	ctx := context.Background()
	seller := sellerActor("seller-1")
	id := f.open(t, "seller-1", "20").CaseID

	if _, err := f.svc.CounterOffer(ctx, seller, id, "tok", "15", reason); err != nil {
		t.Fatal(err)
	}
	_, err := f.svc.CounterOffer(ctx, seller, id, "tok", "15", reason)
	if !errors.Is(err, negotiation.ErrIllegalTransition) {
		t.Errorf("re-executed counter error = %v, want ErrIllegalTransition", err)
	}

	if _, err := f.svc.AcceptOffer(ctx, platform, id, "acc"); err != nil {
		t.Fatal(err)
	}
	_, err = f.svc.AcceptOffer(ctx, platform, id, "acc")
	if !errors.Is(err, negotiation.ErrCaseClosed) {
		t.Errorf("re-executed accept error = %v, want ErrCaseClosed", err)
	}

	c, _ := f.store.Load(ctx, id)
	if c.Round != 1 || len(c.History) != 3 {
		t.Errorf("round=%d history=%d, want 1 and 3", c.Round, len(c.History))
	}
}

// blockingRepo parks the first Load until released so a second mutation
// overlaps it.
type blockingRepo struct {
	*store.Store
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingRepo) Load(ctx context.Context, id string) (*models.NegotiationCase, error) {
	first := false
	b.once.Do(func() { first = true })
	if first {
		close(b.entered)
		<-b.release
	}
	return b.Store.Load(ctx, id)
}

func TestConcurrentMutationsSameCase(t *testing.T) {
	var repo *blockingRepo
	f := newFixture(t, func(st *store.Store) Repository {
		repo = &blockingRepo{Store: st, entered: make(chan struct{}), release: make(chan struct{})}
		return repo
	})
	ctx := context.Background()
	seller := sellerActor("seller-1")

	// OpenCase does not Load, so the first Load is the counter below
	id := f.open(t, "seller-1", "20").CaseID

	var wg sync.WaitGroup
	var counterErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, counterErr = f.svc.CounterOffer(ctx, seller, id, "tok-counter", "15", reason)
	}()

	<-repo.entered
	_, err := f.svc.AcceptOffer(ctx, seller, id, "tok-accept")
	if !errors.Is(err, gate.ErrAlreadyInFlight) {
		t.Errorf("overlapping accept error = %v, want ErrAlreadyInFlight", err)
	}

	close(repo.release)
	wg.Wait()
	if counterErr != nil {
		t.Fatalf("counter: %v", counterErr)
	}

	v, _ := f.svc.GetView(ctx, seller, id)
	if v.Status != models.StatusCounterOffered || v.Round != 1 {
		t.Errorf("final view = %+v", v)
	}
}

func TestConcurrentIndependentCases(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	const sellers = 8
	ids := make([]string, sellers)
	for i := 0; i < sellers; i++ {
		ids[i] = f.open(t, "seller-"+string(rune('a'+i)), "20").CaseID
	}

	var wg sync.WaitGroup
	var failures int32
	for i := 0; i < sellers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			seller := sellerActor("seller-" + string(rune('a'+i)))
			if _, err := f.svc.CounterOffer(ctx, seller, ids[i], "tok", "15", reason); err != nil {
				atomic.AddInt32(&failures, 1)
				t.Errorf("seller %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	if failures != 0 {
		t.Errorf("%d independent cases failed", failures)
	}
}

func TestRolePermissions(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	seller := sellerActor("seller-1")
	id := f.open(t, "seller-1", "20").CaseID

	// Platform cannot accept its own pending offer
	if _, err := f.svc.AcceptOffer(ctx, platform, id, "p1"); !errors.Is(err, negotiation.ErrIllegalTransition) {
		t.Errorf("platform accept on pending = %v, want ErrIllegalTransition", err)
	}
	// Another seller cannot touch the case
	if _, err := f.svc.AcceptOffer(ctx, sellerActor("intruder"), id, "x1"); !errors.Is(err, ErrForbidden) {
		t.Errorf("foreign seller error = %v, want ErrForbidden", err)
	}
	if _, err := f.svc.GetView(ctx, sellerActor("intruder"), id); !errors.Is(err, ErrForbidden) {
		t.Errorf("foreign seller view error = %v, want ErrForbidden", err)
	}

	if _, err := f.svc.CounterOffer(ctx, seller, id, "s1", "15", reason); err != nil {
		t.Fatal(err)
	}
	// Seller cannot accept their own counter
	if _, err := f.svc.AcceptOffer(ctx, seller, id, "s2"); !errors.Is(err, negotiation.ErrIllegalTransition) {
		t.Errorf("seller accept on own counter = %v, want ErrIllegalTransition", err)
	}
	// Seller may withdraw
	v, err := f.svc.RejectOffer(ctx, seller, id, "s3", "found a better channel")
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if v.Status != models.StatusRejected || v.CounterRate.Valid {
		t.Errorf("withdrawn view = %+v", v)
	}
}

func TestPlatformReofferKeepsRound(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	seller := sellerActor("seller-1")
	id := f.open(t, "seller-1", "20").CaseID

	if _, err := f.svc.CounterOffer(ctx, seller, id, "a", "12", reason); err != nil {
		t.Fatal(err)
	}
	v, err := f.svc.CounterOffer(ctx, platform, id, "b", "16", "Meeting you partway here")
	if err != nil {
		t.Fatalf("re-offer: %v", err)
	}
	if v.Status != models.StatusPending || v.Round != 1 || !v.CurrentRate.Equal(decimal.NewFromInt(16)) {
		t.Errorf("re-offer view = %+v", v)
	}
}

func TestOpenCase(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		actor   models.Actor
		seller  string
		rate    string
		wantErr error
	}{
		{"seller cannot open", sellerActor("seller-1"), "seller-1", "20", ErrForbidden},
		{"missing seller", platform, "  ", "20", ErrSellerRequired},
		{"rate out of range", platform, "seller-1", "60", &negotiation.RateError{Kind: negotiation.OutOfRange}},
		{"not numeric", platform, "seller-1", "abc", &negotiation.RateError{Kind: negotiation.NotNumeric}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.OpenCase(ctx, tt.actor, tt.seller, tt.rate)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	f.open(t, "seller-1", "20")
	if _, err := f.svc.OpenCase(ctx, platform, "seller-1", "22"); !errors.Is(err, ErrOpenCaseExists) {
		t.Errorf("duplicate open error = %v, want ErrOpenCaseExists", err)
	}
}

func TestListAndHistory(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	id := f.open(t, "seller-1", "20").CaseID
	f.open(t, "seller-2", "20")

	if _, err := f.svc.CounterOffer(ctx, sellerActor("seller-1"), id, "a", "15", reason); err != nil {
		t.Fatal(err)
	}

	list, err := f.svc.ListCases(ctx, platform, store.Filter{Status: models.StatusCounterOffered})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].CaseID != id {
		t.Errorf("review queue = %+v", list)
	}
	if len(list[0].AllowedActions) != 3 {
		t.Errorf("platform actions on counter = %v", list[0].AllowedActions)
	}

	if _, err := f.svc.ListCases(ctx, sellerActor("seller-1"), store.Filter{}); !errors.Is(err, ErrForbidden) {
		t.Errorf("seller list error = %v, want ErrForbidden", err)
	}

	history, err := f.svc.History(ctx, platform, id)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 || history[1].Action != models.ActionCounter || history[1].Reason != reason {
		t.Errorf("history = %+v", history)
	}
	if _, err := f.svc.History(ctx, sellerActor("seller-1"), id); !errors.Is(err, ErrForbidden) {
		t.Errorf("seller history error = %v, want ErrForbidden", err)
	}
	if _, err := f.svc.History(ctx, platform, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing history error = %v, want ErrNotFound", err)
	}
}

type failingRepo struct {
	*store.Store
}

func (failingRepo) Save(context.Context, *models.NegotiationCase) error {
	return errors.New("disk full")
}

func TestPersistenceFailureIsWrapped(t *testing.T) {
	f := newFixture(t, func(st *store.Store) Repository { return failingRepo{st} })
	ctx := context.Background()
	seller := sellerActor("seller-1")
	id := f.open(t, "seller-1", "20").CaseID

	_, err := f.svc.CounterOffer(ctx, seller, id, "tok", "15", reason)
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("error = %v, want ErrPersistence", err)
	}

	v, _ := f.svc.GetView(ctx, seller, id)
	if v.Round != 0 || v.Status != models.StatusPending {
		t.Errorf("failed save changed the case: %+v", v)
	}
}
