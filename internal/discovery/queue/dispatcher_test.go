package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/linkedin-discovery/internal/discovery/cache"
	"github.com/lk2023060901/linkedin-discovery/internal/discovery/chain"
	"github.com/lk2023060901/linkedin-discovery/internal/discovery/quota"
	"github.com/lk2023060901/linkedin-discovery/internal/discovery/types"
	"github.com/lk2023060901/linkedin-discovery/internal/pkg/logger"
	wstypes "github.com/lk2023060901/linkedin-discovery/internal/websearch/types"
)

type fakeRunner struct {
	mu      sync.Mutex
	calls   []string
	gates   map[string]chan struct{}
	started chan string
	delay   time.Duration
	outcome func(term string) (*chain.Outcome, error)
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		gates:   make(map[string]chan struct{}),
		started: make(chan string, 64),
	}
}

func (f *fakeRunner) gate(term string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	g := make(chan struct{})
	f.gates[types.NormalizeTerm(term)] = g
	return g
}

func (f *fakeRunner) Run(ctx context.Context, term string) (*chain.Outcome, error) {
	f.mu.Lock()
	f.calls = append(f.calls, term)
	g := f.gates[types.NormalizeTerm(term)]
	f.mu.Unlock()

	f.started <- term
	if g != nil {
		<-g
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.outcome != nil {
		return f.outcome(term)
	}
	return &chain.Outcome{
		Results: []types.CandidateResult{{
			URL:         "https://www.linkedin.com/company/microsoft/",
			VanityName:  "microsoft",
			CompanyName: "Microsoft",
			Confidence:  0.95,
			Source:      "google",
		}},
		Source:    "google",
		Cacheable: true,
	}, nil
}

func (f *fakeRunner) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func newDispatcher(t *testing.T, workers int, store cache.Store, runner Runner) *Dispatcher {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Workers = workers
	cfg.WorkTimeout = 5 * time.Second
	d := NewDispatcher(cfg, store, runner, quota.NewMemoryTracker(quota.DefaultConfig()), logger.NewNop())
	require.NoError(t, d.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		d.Stop(ctx)
	})
	return d
}

func waitStarted(t *testing.T, f *fakeRunner, term string) {
	t.Helper()
	select {
	case got := <-f.started:
		require.Equal(t, term, got)
	case <-time.After(2 * time.Second):
		t.Fatalf("runner never started for %q", term)
	}
}

func waitQueued(t *testing.T, d *Dispatcher, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		s, err := d.Status(context.Background())
		return err == nil && s.QueueLength == n
	}, 2*time.Second, time.Millisecond)
}

func TestDispatcher_SingleFlight(t *testing.T) {
	runner := newFakeRunner()
	gate := runner.gate("Microsoft")
	d := newDispatcher(t, 5, cache.NewMemoryStore(time.Hour, nil), runner)

	terms := []string{"Microsoft", " microsoft ", "MICROSOFT", "Microsoft"}
	var wg sync.WaitGroup
	results := make([][]types.CandidateResult, 10)
	errs := make([]error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = d.Submit(context.Background(), terms[i%len(terms)], types.PriorityNormal)
		}(i)
	}

	<-runner.started
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	assert.Len(t, runner.Calls(), 1, "one chain execution for all duplicates")
	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0], results[i])
	}
}

func TestDispatcher_PriorityOrdering(t *testing.T) {
	runner := newFakeRunner()
	gate := runner.gate("blocker")
	d := newDispatcher(t, 1, cache.NewMemoryStore(time.Hour, nil), runner)

	var wg sync.WaitGroup
	submit := func(term string, p types.Priority) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = d.Submit(context.Background(), term, p)
		}()
	}

	submit("blocker", types.PriorityNormal)
	waitStarted(t, runner, "blocker")

	submit("normal one", types.PriorityNormal)
	waitQueued(t, d, 1)
	submit("normal two", types.PriorityNormal)
	waitQueued(t, d, 2)
	submit("urgent", types.PriorityHigh)
	waitQueued(t, d, 3)

	close(gate)
	wg.Wait()

	assert.Equal(t, []string{"blocker", "urgent", "normal one", "normal two"}, runner.Calls())
}

func TestDispatcher_HighDuplicatePromotesQueued(t *testing.T) {
	runner := newFakeRunner()
	gate := runner.gate("blocker")
	d := newDispatcher(t, 1, cache.NewMemoryStore(time.Hour, nil), runner)

	var wg sync.WaitGroup
	submit := func(term string, p types.Priority) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = d.Submit(context.Background(), term, p)
		}()
	}

	submit("blocker", types.PriorityNormal)
	waitStarted(t, runner, "blocker")

	submit("first", types.PriorityNormal)
	waitQueued(t, d, 1)
	submit("second", types.PriorityNormal)
	waitQueued(t, d, 2)

	// an interactive caller asks for the same company as the background request
	submit("Second", types.PriorityHigh)
	require.Eventually(t, func() bool {
		return d.pool.Stats().Promoted == 1
	}, 2*time.Second, time.Millisecond)

	close(gate)
	wg.Wait()

	assert.Equal(t, []string{"blocker", "second", "first"}, runner.Calls())
}

func TestDispatcher_CancelledCallerStillPopulatesCache(t *testing.T) {
	runner := newFakeRunner()
	gate := runner.gate("Stripe")
	store := cache.NewMemoryStore(time.Hour, nil)
	d := newDispatcher(t, 2, store, runner)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := d.Submit(ctx, "Stripe", types.PriorityHigh)
		errCh <- err
	}()

	waitStarted(t, runner, "Stripe")
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)

	close(gate)
	require.Eventually(t, func() bool {
		_, err := store.Inspect(context.Background(), "stripe")
		return err == nil
	}, 2*time.Second, 5*time.Millisecond)

	results, err := d.Submit(context.Background(), "stripe", types.PriorityNormal)
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Len(t, runner.Calls(), 1)
}

func TestDispatcher_WarmCacheIdempotence(t *testing.T) {
	runner := newFakeRunner()
	runner.delay = 30 * time.Millisecond
	d := newDispatcher(t, 2, cache.NewMemoryStore(time.Hour, nil), runner)

	start := time.Now()
	first, err := d.Submit(context.Background(), "Microsoft", types.PriorityHigh)
	require.NoError(t, err)
	cold := time.Since(start)

	start = time.Now()
	second, err := d.Submit(context.Background(), "Microsoft", types.PriorityHigh)
	require.NoError(t, err)
	warm := time.Since(start)

	assert.Equal(t, first, second)
	assert.Less(t, warm, cold)
	assert.Len(t, runner.Calls(), 1)
}

func TestDispatcher_NoResultsCached(t *testing.T) {
	runner := newFakeRunner()
	runner.outcome = func(string) (*chain.Outcome, error) {
		return &chain.Outcome{Cacheable: true}, nil
	}
	d := newDispatcher(t, 1, cache.NewMemoryStore(time.Hour, nil), runner)

	for i := 0; i < 2; i++ {
		_, err := d.Submit(context.Background(), "XYZ-Nonexistent-12345", types.PriorityNormal)
		assert.ErrorIs(t, err, types.ErrNoResults)
	}
	assert.Len(t, runner.Calls(), 1)
}

func TestDispatcher_GuessNotCached(t *testing.T) {
	runner := newFakeRunner()
	runner.outcome = func(term string) (*chain.Outcome, error) {
		return &chain.Outcome{
			Results: []types.CandidateResult{{URL: "https://www.linkedin.com/company/acme/", Confidence: 0.3, Source: chain.SourceURLGuess}},
			Source:  chain.SourceURLGuess,
			Guessed: true,
		}, nil
	}
	d := newDispatcher(t, 1, cache.NewMemoryStore(time.Hour, nil), runner)

	for i := 0; i < 2; i++ {
		results, err := d.Submit(context.Background(), "Acme", types.PriorityNormal)
		require.NoError(t, err)
		assert.Equal(t, 0.3, results[0].Confidence)
	}
	assert.Len(t, runner.Calls(), 2)
}

type brokenStore struct{ cache.Store }

func (brokenStore) Get(context.Context, string) (*types.SearchCacheEntry, error) {
	return nil, cache.Unavailable("get", errors.New("connection refused"))
}

func (brokenStore) Put(context.Context, string, []types.CandidateResult) (*types.SearchCacheEntry, error) {
	return nil, cache.Unavailable("put", errors.New("connection refused"))
}

func TestDispatcher_CacheUnavailableDegrades(t *testing.T) {
	runner := newFakeRunner()
	d := newDispatcher(t, 1, brokenStore{}, runner)

	results, err := d.Submit(context.Background(), "Microsoft", types.PriorityHigh)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestDispatcher_ChainErrorsPropagate(t *testing.T) {
	runner := newFakeRunner()
	runner.outcome = func(term string) (*chain.Outcome, error) {
		return nil, types.NewDiscoveryError(term, types.ErrTransport, errors.New("boom"))
	}
	d := newDispatcher(t, 1, nil, runner)

	_, err := d.Submit(context.Background(), "Acme", types.PriorityNormal)
	assert.ErrorIs(t, err, types.ErrTransport)
}

func TestDispatcher_StatusAndStop(t *testing.T) {
	runner := newFakeRunner()
	gate := runner.gate("blocker")
	cfg := DefaultConfig()
	cfg.Workers = 1
	d := NewDispatcher(cfg, nil, runner, quota.NewMemoryTracker(quota.DefaultConfig()), logger.NewNop())

	_, err := d.Submit(context.Background(), "early", types.PriorityNormal)
	assert.ErrorIs(t, err, types.ErrDispatcherClosed)

	require.NoError(t, d.Start())
	assert.Error(t, d.Start())

	go func() {
		_, _ = d.Submit(context.Background(), "blocker", types.PriorityNormal)
	}()
	waitStarted(t, runner, "blocker")

	queuedErr := make(chan error, 1)
	go func() {
		_, err := d.Submit(context.Background(), "queued", types.PriorityNormal)
		queuedErr <- err
	}()
	waitQueued(t, d, 1)

	status, err := d.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, status.InFlight)
	assert.Equal(t, 1, status.QueueLength)
	assert.Equal(t, quota.DefaultConfig().DailyLimit, status.DailyLimit)

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(gate)
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	d.Stop(ctx)

	assert.ErrorIs(t, <-queuedErr, types.ErrDispatcherClosed)
	_, err = d.Submit(context.Background(), "late", types.PriorityNormal)
	assert.ErrorIs(t, err, types.ErrDispatcherClosed)
	assert.Equal(t, []string{"blocker"}, runner.Calls())
}

func TestDispatcher_InvalidTerm(t *testing.T) {
	d := newDispatcher(t, 1, nil, newFakeRunner())
	_, err := d.Submit(context.Background(), "   ", types.PriorityHigh)
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestDispatcher_PendingOnlyTracksLiveFlights(t *testing.T) {
	runner := newFakeRunner()
	d := newDispatcher(t, 2, cache.NewMemoryStore(time.Hour, nil), runner)

	// a high priority caller with nothing to promote leaves no entry behind
	require.NoError(t, d.register("ghost", types.PriorityHigh))
	d.mu.Lock()
	assert.Empty(t, d.pending)
	d.mu.Unlock()

	terms := []string{"Acme", "Globex", "Initech", "Umbrella"}
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				p := types.PriorityNormal
				if (g+i)%3 == 0 {
					p = types.PriorityHigh
				}
				_, err := d.Submit(context.Background(), terms[(g+i)%len(terms)], p)
				assert.NoError(t, err)
			}
		}(g)
	}
	wg.Wait()

	d.mu.Lock()
	defer d.mu.Unlock()
	assert.Empty(t, d.pending)
	assert.LessOrEqual(t, len(runner.Calls()), len(terms))
}

type budgetRunner struct {
	*fakeRunner
	budgets map[wstypes.ProviderID]quota.Tracker
}

func (b *budgetRunner) Budgets() map[wstypes.ProviderID]quota.Tracker {
	return b.budgets
}

func TestDispatcher_StatusIncludesDedicatedBudgets(t *testing.T) {
	ctx := context.Background()
	brave := quota.NewMemoryTracker(quota.Config{DailyLimit: 50, MonthlyLimit: 2000})
	ok, err := brave.TryReserve(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	runner := &budgetRunner{
		fakeRunner: newFakeRunner(),
		budgets:    map[wstypes.ProviderID]quota.Tracker{wstypes.ProviderBrave: brave},
	}
	d := newDispatcher(t, 1, nil, runner)
	runner.budgets[wstypes.ProviderTavily] = d.quota

	status, err := d.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), status.RequestsToday)
	require.Len(t, status.Providers, 1)
	assert.Equal(t, types.QuotaCounter{
		RequestsToday:     1,
		RequestsThisMonth: 1,
		DailyLimit:        50,
		MonthlyLimit:      2000,
	}, status.Providers["brave"])
}
