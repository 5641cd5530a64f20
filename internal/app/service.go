// Package app orchestrates the long-running operations behind the API:
// credential management, bar history sync, backtests and live scans.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"quant-core/internal/backtest"
	"quant-core/internal/events"
	"quant-core/internal/market"
	"quant-core/internal/monitor"
	"quant-core/internal/persistence"
	"quant-core/internal/recommend"
	"quant-core/internal/stock"
	"quant-core/internal/store"
	"quant-core/internal/strategy"
	"quant-core/pkg/cache"
	"quant-core/pkg/config"
	"quant-core/pkg/crypto"
	"quant-core/pkg/i18n"
)

const (
	credCacheKey = "quote:credentials"
	credCacheTTL = 24 * time.Hour
	barsCacheTTL = time.Hour

	// taskTTL bounds a leaked task lock if a worker dies without
	// releasing it. One shared key holds the running task's name so
	// only one long-running task exists at a time.
	taskTTL     = 2 * time.Hour
	taskLockKey = "task:active"

	// TaskBacktest, TaskRecommend and TaskSync name the exclusive
	// workers.
	TaskBacktest  = "backtest"
	TaskRecommend = "recommend"
	TaskSync      = "sync"

	recentBarCount = 30
)

// ErrCredentialsMissing means the quote cookie and token are unset.
var ErrCredentialsMissing = errors.New("quote credentials not set")

// QuoteFetcher is the remote history source.
type QuoteFetcher interface {
	AllBars(ctx context.Context, code, name string, creds market.Credentials) ([]stock.Bar, error)
	RecentBars(ctx context.Context, code, name string, count int, creds market.Credentials) ([]stock.Bar, error)
}

// Service ties the store, cache, quote client and workers together.
type Service struct {
	cfg     *config.Config
	store   *store.Store
	cache   *cache.ShardedCache
	bus     *events.Bus
	metrics *monitor.SystemMetrics
	quotes  QuoteFetcher
	writer  *persistence.BatchWriter
	sim     *backtest.Simulator
	scanner *recommend.Scanner
	cipher  *crypto.Encryptor
}

// NewService wires the service. quotes, writer, bus and metrics may be
// nil for callers that only need the query paths.
func NewService(cfg *config.Config, st *store.Store, c *cache.ShardedCache, bus *events.Bus, metrics *monitor.SystemMetrics, quotes QuoteFetcher, writer *persistence.BatchWriter, sim *backtest.Simulator, scanner *recommend.Scanner) *Service {
	return &Service{
		cfg:     cfg,
		store:   st,
		cache:   c,
		bus:     bus,
		metrics: metrics,
		quotes:  quotes,
		writer:  writer,
		sim:     sim,
		scanner: scanner,
	}
}

// SetCipher enables encryption at rest for the stored quote
// credentials. Values written earlier stay readable as plaintext.
func (s *Service) SetCipher(enc *crypto.Encryptor) {
	s.cipher = enc
}

// Credentials returns the stored quote session material, cached for a
// day since the meta row changes rarely.
func (s *Service) Credentials(ctx context.Context) (market.Credentials, error) {
	if v, ok := s.cache.Get(credCacheKey); ok {
		if creds, ok := v.(market.Credentials); ok {
			return creds, nil
		}
	}
	m, err := s.store.GetMeta(ctx)
	if err != nil {
		return market.Credentials{}, err
	}
	cookie, err := s.openSecret(m.Cookie)
	if err != nil {
		return market.Credentials{}, fmt.Errorf("decrypt cookie: %w", err)
	}
	token, err := s.openSecret(m.Token)
	if err != nil {
		return market.Credentials{}, fmt.Errorf("decrypt token: %w", err)
	}
	creds := market.Credentials{Cookie: cookie, Token: token}
	s.cache.Set(credCacheKey, creds, credCacheTTL)
	return creds, nil
}

// SetCredentials stores fresh quote session material.
func (s *Service) SetCredentials(ctx context.Context, cookie, token string) error {
	storedCookie, storedToken := cookie, token
	if s.cipher != nil {
		var err error
		if storedCookie, err = s.cipher.Encrypt(cookie); err != nil {
			return fmt.Errorf("encrypt cookie: %w", err)
		}
		if storedToken, err = s.cipher.Encrypt(token); err != nil {
			return fmt.Errorf("encrypt token: %w", err)
		}
	}
	if err := s.store.SetCredentials(ctx, storedCookie, storedToken); err != nil {
		return fmt.Errorf("store credentials: %w", err)
	}
	s.cache.Set(credCacheKey, market.Credentials{Cookie: cookie, Token: token}, credCacheTTL)
	log.Print(i18n.M().QuoteAuthUpdated)
	return nil
}

func (s *Service) openSecret(stored string) (string, error) {
	if !crypto.IsEncrypted(stored) {
		return stored, nil
	}
	if s.cipher == nil {
		return "", crypto.ErrDecryptionFailed
	}
	return s.cipher.Decrypt(stored)
}

// Bars returns the stored history for a stock, via the cache.
func (s *Service) Bars(ctx context.Context, code string) ([]stock.Bar, error) {
	key := "bars:" + code
	if v, ok := s.cache.Get(key); ok {
		if bars, ok := v.([]stock.Bar); ok {
			return bars, nil
		}
	}
	bars, err := s.store.ListBars(ctx, code)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, bars, barsCacheTTL)
	return bars, nil
}

// SyncBars pulls remote history for one stock into the store. A stock
// without local data gets its full history, otherwise only the recent
// window is refreshed.
func (s *Service) SyncBars(ctx context.Context, ref stock.Ref) (int, error) {
	if s.quotes == nil || s.writer == nil {
		return 0, errors.New("quote sync not configured")
	}
	creds, err := s.Credentials(ctx)
	if err != nil {
		return 0, err
	}
	if creds.Cookie == "" || creds.Token == "" {
		return 0, ErrCredentialsMissing
	}

	count, err := s.store.CountBars(ctx, ref.Code)
	if err != nil {
		return 0, err
	}

	var bars []stock.Bar
	if count == 0 {
		bars, err = s.quotes.AllBars(ctx, ref.Code, ref.Name, creds)
	} else {
		bars, err = s.quotes.RecentBars(ctx, ref.Code, ref.Name, recentBarCount, creds)
	}
	if err != nil {
		return 0, fmt.Errorf("fetch bars for %s: %w", ref.Code, err)
	}

	for _, b := range bars {
		s.writer.QueueBar(ref.Code, b)
	}
	if err := s.writer.Flush(); err != nil {
		return 0, fmt.Errorf("flush bars for %s: %w", ref.Code, err)
	}
	s.cache.Delete("bars:" + ref.Code)
	if s.metrics != nil {
		s.metrics.AddBars(len(bars))
	}
	log.Printf(i18n.M().BarsSynced, ref.Code, len(bars))
	return len(bars), nil
}

// SyncUniverse refreshes every stock in the universe. Per-stock fetch
// failures are logged and skipped; the first credential or store error
// aborts.
func (s *Service) SyncUniverse(ctx context.Context) (int, error) {
	stocks, err := s.store.ListStocks(ctx)
	if err != nil {
		return 0, err
	}
	synced := 0
	for _, ref := range stocks {
		if err := ctx.Err(); err != nil {
			return synced, err
		}
		n, err := s.SyncBars(ctx, ref)
		if err != nil {
			if errors.Is(err, ErrCredentialsMissing) {
				return synced, err
			}
			log.Printf(i18n.M().BarsFetchFailed, ref.Code, err)
			continue
		}
		synced += n
	}
	return synced, nil
}

// Stocks returns the stored universe.
func (s *Service) Stocks(ctx context.Context) ([]stock.Ref, error) {
	return s.store.ListStocks(ctx)
}

// Results returns the most recent run summaries, briefly cached since
// the UI polls this while a run is in flight.
func (s *Service) Results(ctx context.Context, limit int) ([]store.BacktestResult, error) {
	key := fmt.Sprintf("results:%d", limit)
	if v, ok := s.cache.Get(key); ok {
		if results, ok := v.([]store.BacktestResult); ok {
			return results, nil
		}
	}
	results, err := s.store.ListBacktestResults(ctx, limit)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, results, 30*time.Second)
	return results, nil
}

// Runs returns the known run generation numbers.
func (s *Service) Runs(ctx context.Context) ([]int64, error) {
	return s.store.ListRuns(ctx)
}

// HoldingsByRun returns the full trade ledger of one run.
func (s *Service) HoldingsByRun(ctx context.Context, run int64) ([]store.Holding, error) {
	return s.store.ListHoldingsByRun(ctx, run)
}

// ClearHoldings wipes the whole mock trade ledger. Refused while a
// background task may still be writing to it.
func (s *Service) ClearHoldings(ctx context.Context) error {
	if running := s.ActiveTask(); running != "" {
		return &TaskConflictError{Running: running}
	}
	return s.store.ClearHoldings(ctx)
}

// Recommendations returns the hit list for one (date, strategy) pair.
func (s *Service) Recommendations(ctx context.Context, date string, strategyType int) ([]store.Recommendation, error) {
	return s.store.ListRecommendations(ctx, date, strategyType)
}

// Times returns how many backtest runs have been started so far.
func (s *Service) Times(ctx context.Context) (int64, error) {
	m, err := s.store.GetMeta(ctx)
	if err != nil {
		return 0, err
	}
	return m.Times, nil
}

// TaskConflictError rejects a start while another long-running task
// holds the shared slot. Running names the conflicting task.
type TaskConflictError struct {
	Running string
}

func (e *TaskConflictError) Error() string {
	return fmt.Sprintf(i18n.M().TaskConflict, e.Running)
}

// ActiveTask returns the name of the running background task, or the
// empty string when the system is idle.
func (s *Service) ActiveTask() string {
	if v, ok := s.cache.Get(taskLockKey); ok {
		if name, ok := v.(string); ok {
			return name
		}
	}
	return ""
}

// TaskActive reports whether the named exclusive worker is running.
func (s *Service) TaskActive(task string) bool {
	return s.ActiveTask() == task
}

// acquire claims the single task slot shared by all background
// workers. The check and set are not atomic across goroutines, the
// lock only guards against double starts from the API surface.
func (s *Service) acquire(task string) error {
	if running := s.ActiveTask(); running != "" {
		return &TaskConflictError{Running: running}
	}
	s.cache.Set(taskLockKey, task, taskTTL)
	return nil
}

func (s *Service) release(task string) {
	if s.ActiveTask() == task {
		s.cache.Delete(taskLockKey)
	}
}

// StartBacktest launches a backtest in the background. Only one runs
// at a time.
func (s *Service) StartBacktest(ctx context.Context, strategyType int, cfg backtest.Config) error {
	if s.sim == nil {
		return errors.New("backtest not configured")
	}
	if _, ok := strategy.Lookup(strategyType); !ok {
		return fmt.Errorf("unknown strategy type %d", strategyType)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	stocks, err := s.store.ListStocks(ctx)
	if err != nil {
		return err
	}
	if len(stocks) == 0 {
		return errors.New("stock universe is empty")
	}
	if err := s.acquire(TaskBacktest); err != nil {
		return err
	}

	go func() {
		defer s.release(TaskBacktest)
		s.publishTask(TaskBacktest, "started", nil)
		sum, err := s.sim.Run(context.Background(), stocks, strategyType, cfg)
		if err != nil {
			log.Printf(i18n.M().BacktestFailed, sum.Run, err)
			s.publishTask(TaskBacktest, "failed", err)
			return
		}
		s.publishTask(TaskBacktest, "finished", nil)
	}()
	return nil
}

// StartRecommend launches a live scan in the background. Only one runs
// at a time.
func (s *Service) StartRecommend(ctx context.Context, strategyType int) error {
	if s.scanner == nil {
		return errors.New("recommend not configured")
	}
	if _, ok := strategy.Lookup(strategyType); !ok {
		return fmt.Errorf("unknown strategy type %d", strategyType)
	}
	stocks, err := s.store.ListStocks(ctx)
	if err != nil {
		return err
	}
	if len(stocks) == 0 {
		return errors.New("stock universe is empty")
	}
	if err := s.acquire(TaskRecommend); err != nil {
		return err
	}

	go func() {
		defer s.release(TaskRecommend)
		s.publishTask(TaskRecommend, "started", nil)
		if _, err := s.scanner.Scan(context.Background(), stocks, strategyType, time.Now()); err != nil {
			log.Printf(i18n.M().RecommendFailed, err)
			s.publishTask(TaskRecommend, "failed", err)
			return
		}
		s.publishTask(TaskRecommend, "finished", nil)
	}()
	return nil
}

// StartSync launches a universe-wide bar refresh in the background.
// Only one runs at a time.
func (s *Service) StartSync(ctx context.Context) error {
	if s.quotes == nil || s.writer == nil {
		return errors.New("quote sync not configured")
	}
	creds, err := s.Credentials(ctx)
	if err != nil {
		return err
	}
	if creds.Cookie == "" || creds.Token == "" {
		log.Print(i18n.M().QuoteAuthMissing)
		return ErrCredentialsMissing
	}
	if err := s.acquire(TaskSync); err != nil {
		return err
	}

	go func() {
		defer s.release(TaskSync)
		s.publishTask(TaskSync, "started", nil)
		if _, err := s.SyncUniverse(context.Background()); err != nil {
			s.publishTask(TaskSync, "failed", err)
			return
		}
		s.publishTask(TaskSync, "finished", nil)
	}()
	return nil
}

func (s *Service) publishTask(task, state string, err error) {
	if s.bus == nil {
		return
	}
	p := events.TaskStatePayload{Task: task, State: state}
	if err != nil {
		p.Error = err.Error()
	}
	s.bus.Publish(events.EventTaskState, p)
}
