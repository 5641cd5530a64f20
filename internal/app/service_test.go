package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"quant-core/internal/backtest"
	"quant-core/internal/market"
	"quant-core/internal/persistence"
	"quant-core/internal/stock"
	"quant-core/internal/store"
	"quant-core/pkg/cache"
	"quant-core/pkg/config"
	"quant-core/pkg/crypto"
)

func day(i int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
}

func testBars(n int) []stock.Bar {
	bars := make([]stock.Bar, 0, n)
	for i := 0; i < n; i++ {
		p := 10 + float64(i)
		bars = append(bars, stock.Bar{Date: day(i), Open: p, High: p + 1, Low: p - 1, Close: p, Volume: 1000})
	}
	return bars
}

type fakeQuotes struct {
	bars        []stock.Bar
	allCalls    int
	recentCalls int
	err         error
}

func (f *fakeQuotes) AllBars(_ context.Context, _, _ string, _ market.Credentials) ([]stock.Bar, error) {
	f.allCalls++
	return f.bars, f.err
}

func (f *fakeQuotes) RecentBars(_ context.Context, _, _ string, _ int, _ market.Credentials) ([]stock.Bar, error) {
	f.recentCalls++
	return f.bars, f.err
}

func newTestService(t *testing.T, quotes QuoteFetcher) (*Service, *store.Store) {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := store.ApplyMigrations(st); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	var writer *persistence.BatchWriter
	if quotes != nil {
		writer = persistence.NewBatchWriter(st.DB, 100, time.Hour)
		t.Cleanup(func() { writer.Close() })
	}
	svc := NewService(&config.Config{}, st, cache.NewShardedCache(), nil, nil, quotes, writer, nil, nil)
	return svc, st
}

func TestCredentialsRoundTrip(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	creds, err := svc.Credentials(ctx)
	if err != nil {
		t.Fatalf("Credentials: %v", err)
	}
	if creds.Cookie != "" || creds.Token != "" {
		t.Errorf("fresh store has credentials: %+v", creds)
	}

	if err := svc.SetCredentials(ctx, "session=abc", "tok"); err != nil {
		t.Fatalf("SetCredentials: %v", err)
	}
	creds, err = svc.Credentials(ctx)
	if err != nil {
		t.Fatalf("Credentials: %v", err)
	}
	if creds.Cookie != "session=abc" || creds.Token != "tok" {
		t.Errorf("credentials = %+v", creds)
	}
}

func TestCredentialsEncryptedAtRest(t *testing.T) {
	svc, st := newTestService(t, nil)
	ctx := context.Background()

	keyB64, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	enc, err := crypto.NewFromBase64(keyB64)
	if err != nil {
		t.Fatal(err)
	}
	svc.SetCipher(enc)

	if err := svc.SetCredentials(ctx, "session=abc", "tok"); err != nil {
		t.Fatalf("SetCredentials: %v", err)
	}

	m, err := st.GetMeta(ctx)
	if err != nil {
		t.Fatalf("GetMeta: %v", err)
	}
	if !crypto.IsEncrypted(m.Cookie) || !crypto.IsEncrypted(m.Token) {
		t.Errorf("stored credentials not encrypted: cookie=%q token=%q", m.Cookie, m.Token)
	}
	if m.Cookie == "session=abc" {
		t.Error("cookie stored as plaintext")
	}

	// A fresh service with a cold cache must decrypt from the store.
	svc2 := NewService(&config.Config{}, st, cache.NewShardedCache(), nil, nil, nil, nil, nil, nil)
	svc2.SetCipher(enc)
	creds, err := svc2.Credentials(ctx)
	if err != nil {
		t.Fatalf("Credentials: %v", err)
	}
	if creds.Cookie != "session=abc" || creds.Token != "tok" {
		t.Errorf("credentials = %+v", creds)
	}
}

func TestSyncBarsFullThenRecent(t *testing.T) {
	quotes := &fakeQuotes{bars: testBars(3)}
	svc, st := newTestService(t, quotes)
	ctx := context.Background()

	if err := svc.SetCredentials(ctx, "c", "t"); err != nil {
		t.Fatal(err)
	}
	ref := stock.Ref{Code: "600001", Name: "Alpha"}

	n, err := svc.SyncBars(ctx, ref)
	if err != nil {
		t.Fatalf("first SyncBars: %v", err)
	}
	if n != 3 || quotes.allCalls != 1 || quotes.recentCalls != 0 {
		t.Errorf("first sync: n=%d all=%d recent=%d", n, quotes.allCalls, quotes.recentCalls)
	}

	if _, err := svc.SyncBars(ctx, ref); err != nil {
		t.Fatalf("second SyncBars: %v", err)
	}
	if quotes.allCalls != 1 || quotes.recentCalls != 1 {
		t.Errorf("second sync: all=%d recent=%d, want incremental fetch", quotes.allCalls, quotes.recentCalls)
	}

	bars, err := st.ListBars(ctx, ref.Code)
	if err != nil {
		t.Fatalf("ListBars: %v", err)
	}
	if len(bars) != 3 {
		t.Errorf("stored %d bars, want 3", len(bars))
	}
}

func TestSyncBarsRequiresCredentials(t *testing.T) {
	svc, _ := newTestService(t, &fakeQuotes{bars: testBars(1)})
	_, err := svc.SyncBars(context.Background(), stock.Ref{Code: "600001", Name: "Alpha"})
	if !errors.Is(err, ErrCredentialsMissing) {
		t.Fatalf("err = %v, want ErrCredentialsMissing", err)
	}
}

func TestBarsUsesCache(t *testing.T) {
	svc, st := newTestService(t, nil)
	ctx := context.Background()

	for _, b := range testBars(2) {
		if err := st.UpsertBar(ctx, "600001", b); err != nil {
			t.Fatal(err)
		}
	}
	bars, err := svc.Bars(ctx, "600001")
	if err != nil {
		t.Fatalf("Bars: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("got %d bars, want 2", len(bars))
	}

	// A write bypassing the service is invisible until the cache entry
	// is invalidated.
	if err := st.UpsertBar(ctx, "600001", testBars(3)[2]); err != nil {
		t.Fatal(err)
	}
	bars, err = svc.Bars(ctx, "600001")
	if err != nil {
		t.Fatalf("Bars: %v", err)
	}
	if len(bars) != 2 {
		t.Errorf("cache bypassed: got %d bars", len(bars))
	}
}

func TestTaskLock(t *testing.T) {
	svc, _ := newTestService(t, nil)

	if err := svc.acquire(TaskBacktest); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if err := svc.acquire(TaskBacktest); err == nil {
		t.Fatal("second acquire succeeded while locked")
	}
	if !svc.TaskActive(TaskBacktest) {
		t.Error("TaskActive = false while locked")
	}
	if got := svc.ActiveTask(); got != TaskBacktest {
		t.Errorf("ActiveTask = %q, want %q", got, TaskBacktest)
	}
	svc.release(TaskBacktest)
	if svc.TaskActive(TaskBacktest) {
		t.Error("TaskActive = true after release")
	}
	if err := svc.acquire(TaskBacktest); err != nil {
		t.Errorf("acquire after release: %v", err)
	}
}

func TestTaskLockIsGlobal(t *testing.T) {
	svc, _ := newTestService(t, nil)

	if err := svc.acquire(TaskBacktest); err != nil {
		t.Fatalf("acquire backtest: %v", err)
	}

	// Every other task shares the single slot and must name the
	// conflicting task in its rejection.
	for _, task := range []string{TaskRecommend, TaskSync} {
		err := svc.acquire(task)
		if err == nil {
			t.Fatalf("%s acquired while a backtest is running", task)
		}
		var conflict *TaskConflictError
		if !errors.As(err, &conflict) {
			t.Fatalf("%s rejection is %T, want TaskConflictError", task, err)
		}
		if conflict.Running != TaskBacktest {
			t.Errorf("%s rejection names %q, want %q", task, conflict.Running, TaskBacktest)
		}
	}

	// Releasing under another task's name must not free the slot.
	svc.release(TaskRecommend)
	if svc.ActiveTask() != TaskBacktest {
		t.Error("foreign release cleared the lock")
	}

	svc.release(TaskBacktest)
	if err := svc.acquire(TaskRecommend); err != nil {
		t.Errorf("acquire recommend after release: %v", err)
	}
}

func TestStartBacktestValidation(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	cfg := backtest.Config{StartDate: day(0), MaxStocksHolds: 1, StartBalance: 10_000}

	if err := svc.StartBacktest(ctx, 1, cfg); err == nil {
		t.Error("nil simulator accepted")
	}

	svc.sim = backtest.NewSimulator(nil, nil, nil, nil, nil, nil)
	if err := svc.StartBacktest(ctx, 99, cfg); err == nil {
		t.Error("unknown strategy accepted")
	}
	if err := svc.StartBacktest(ctx, 1, backtest.Config{}); err == nil {
		t.Error("invalid config accepted")
	}
	if err := svc.StartBacktest(ctx, 1, cfg); err == nil {
		t.Error("empty universe accepted")
	}
}

func TestTimes(t *testing.T) {
	svc, st := newTestService(t, nil)
	ctx := context.Background()

	n, err := svc.Times(ctx)
	if err != nil || n != 0 {
		t.Fatalf("Times = %d, %v; want 0", n, err)
	}
	if _, err := st.NextRun(ctx); err != nil {
		t.Fatal(err)
	}
	// The meta row is not cached, the bump is visible immediately.
	if n, err = svc.Times(ctx); err != nil || n != 1 {
		t.Fatalf("Times = %d, %v; want 1", n, err)
	}
}
