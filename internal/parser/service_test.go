package parser_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vargock/Mahaon-Parser/internal/db"
	"github.com/Vargock/Mahaon-Parser/internal/parser"
)

// fakeExtractor is a scripted parser.Extractor for orchestrator tests
type fakeExtractor struct {
	mu sync.Mutex

	categories    []db.Category
	categoriesErr error

	listings map[string][]string
	listErr  error

	fetchErrs  map[string]error
	fetchDelay time.Duration
	fetchGate  chan struct{}
	fetchCalls []string
}

func (f *fakeExtractor) Categories(ctx context.Context) ([]db.Category, error) {
	if f.categoriesErr != nil {
		return nil, f.categoriesErr
	}
	return f.categories, nil
}

func (f *fakeExtractor) ListProductURLs(ctx context.Context, catalogURL string, limits parser.Limits) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	urls := f.listings[catalogURL]
	if limits.MaxProducts > 0 && len(urls) > limits.MaxProducts {
		urls = urls[:limits.MaxProducts]
	}
	return urls, nil
}

func (f *fakeExtractor) FetchProduct(ctx context.Context, productURL string) (*db.Product, []db.Variant, error) {
	f.mu.Lock()
	f.fetchCalls = append(f.fetchCalls, productURL)
	gate := f.fetchGate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}

	if f.fetchDelay > 0 {
		select {
		case <-time.After(f.fetchDelay):
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}

	if err := f.fetchErrs[productURL]; err != nil {
		return nil, nil, err
	}

	product := &db.Product{
		Name:      "Product " + productURL,
		SourceURL: productURL,
	}
	variants := []db.Variant{
		{ArticleNumber: "1", VariantName: "red", IsAvailable: true},
		{ArticleNumber: "2", VariantName: "blue"},
	}
	return product, variants, nil
}

func (f *fakeExtractor) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fetchCalls)
}

// fakeStore is an in-memory parser.Store
type fakeStore struct {
	mu sync.Mutex

	products  map[string]*db.Product
	variants  map[uint][]db.Variant
	nextID    uint
	upsertErr error
	onUpsert  func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		products: make(map[string]*db.Product),
		variants: make(map[uint][]db.Variant),
	}
}

func (f *fakeStore) UpsertProduct(ctx context.Context, product *db.Product) (uint, error) {
	f.mu.Lock()
	if f.upsertErr != nil {
		f.mu.Unlock()
		return 0, f.upsertErr
	}

	if existing, ok := f.products[product.SourceURL]; ok {
		product.ID = existing.ID
	} else {
		f.nextID++
		product.ID = f.nextID
	}
	f.products[product.SourceURL] = product
	hook := f.onUpsert
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return product.ID, nil
}

func (f *fakeStore) UpsertVariants(ctx context.Context, productID uint, variants []db.Variant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.variants[productID] = variants
	return nil
}

func (f *fakeStore) productCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.products)
}

func (f *fakeStore) productCategory(sourceURL string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.products[sourceURL]; ok {
		return p.Category
	}
	return ""
}

func testConfig() *parser.Config {
	return &parser.Config{
		ConfirmThreshold:  5,
		FetchTimeout:      time.Second,
		RequestsPerSecond: 10000,
	}
}

func urlList(n int) []string {
	urls := make([]string, n)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://example.com/yarn/p%d", i)
	}
	return urls
}

func waitForStatus(t *testing.T, svc *parser.Service, want parser.Status) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if svc.Status() == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for status %s, current: %s", want, svc.Status())
}

func savedLines(logs []string) []string {
	var out []string
	for _, line := range logs {
		if strings.Contains(line, "saved product") {
			out = append(out, line)
		}
	}
	return out
}

func TestCategoryJobBelowThresholdCompletes(t *testing.T) {
	extractor := &fakeExtractor{
		listings: map[string][]string{"https://example.com/yarns": urlList(2)},
	}
	store := newFakeStore()
	svc := parser.NewService(extractor, store, testConfig())

	jobID, err := svc.Start(parser.Target{CategoryURL: "https://example.com/yarns", CategoryName: "yarns"}, parser.Limits{MaxPages: 1, MaxProducts: 2})
	require.NoError(t, err)
	assert.NotEmpty(t, jobID)

	waitForStatus(t, svc, parser.StatusCompleted)

	assert.Equal(t, 2, store.productCount())
	assert.Equal(t, "yarns", store.productCategory("https://example.com/yarn/p0"))
	assert.Len(t, savedLines(svc.Logs()), 2)

	snap := svc.Snapshot()
	assert.Equal(t, jobID, snap.JobID)
	assert.Equal(t, 2, snap.EstimatedSize)
	assert.Empty(t, snap.ErrorDetail)
}

func TestConfirmationGateAboveThreshold(t *testing.T) {
	extractor := &fakeExtractor{
		listings: map[string][]string{"https://example.com/yarns": urlList(6)},
	}
	store := newFakeStore()
	svc := parser.NewService(extractor, store, testConfig())

	_, err := svc.Start(parser.Target{CategoryURL: "https://example.com/yarns"}, parser.Limits{})
	require.NoError(t, err)

	waitForStatus(t, svc, parser.StatusAwaitingConfirmation)

	// Nothing fetched or persisted before the operator confirms.
	assert.Equal(t, 0, extractor.fetchCount())
	assert.Equal(t, 0, store.productCount())
	assert.Equal(t, 6, svc.Snapshot().EstimatedSize)

	require.NoError(t, svc.Confirm())
	waitForStatus(t, svc, parser.StatusCompleted)
	assert.Equal(t, 6, store.productCount())
}

func TestConfirmWithoutPendingJobRejected(t *testing.T) {
	svc := parser.NewService(&fakeExtractor{}, newFakeStore(), testConfig())

	assert.ErrorIs(t, svc.Confirm(), parser.ErrNoPendingConfirmation)
}

func TestCancelWhileAwaitingConfirmation(t *testing.T) {
	extractor := &fakeExtractor{
		listings: map[string][]string{"https://example.com/yarns": urlList(10)},
	}
	store := newFakeStore()
	svc := parser.NewService(extractor, store, testConfig())

	_, err := svc.Start(parser.Target{CategoryURL: "https://example.com/yarns"}, parser.Limits{})
	require.NoError(t, err)
	waitForStatus(t, svc, parser.StatusAwaitingConfirmation)

	require.NoError(t, svc.Cancel())

	assert.Equal(t, parser.StatusCanceled, svc.Status())
	assert.Equal(t, 0, store.productCount())
	assert.ErrorIs(t, svc.Confirm(), parser.ErrNoPendingConfirmation)
}

func TestStartRejectedWhileJobLive(t *testing.T) {
	gate := make(chan struct{})
	extractor := &fakeExtractor{
		listings:  map[string][]string{"https://example.com/yarns": urlList(2)},
		fetchGate: gate,
	}
	store := newFakeStore()
	svc := parser.NewService(extractor, store, testConfig())

	_, err := svc.Start(parser.Target{CategoryURL: "https://example.com/yarns"}, parser.Limits{})
	require.NoError(t, err)

	_, err = svc.Start(parser.Target{CategoryURL: "https://example.com/other"}, parser.Limits{})
	assert.ErrorIs(t, err, parser.ErrAlreadyRunning)

	close(gate)
	waitForStatus(t, svc, parser.StatusCompleted)

	// A terminal job releases the slot.
	_, err = svc.Start(parser.Target{CategoryURL: "https://example.com/yarns"}, parser.Limits{})
	assert.NoError(t, err)
}

func TestCancelStopsBeforeNextItem(t *testing.T) {
	extractor := &fakeExtractor{
		listings: map[string][]string{"https://example.com/yarns": urlList(3)},
	}
	store := newFakeStore()
	svc := parser.NewService(extractor, store, testConfig())

	// Cancel from inside the first persist: the flag must be honored before
	// the second item starts.
	var once sync.Once
	store.onUpsert = func() {
		once.Do(func() { _ = svc.Cancel() })
	}

	_, err := svc.Start(parser.Target{CategoryURL: "https://example.com/yarns"}, parser.Limits{})
	require.NoError(t, err)

	waitForStatus(t, svc, parser.StatusCanceled)

	assert.Equal(t, 1, store.productCount())
	assert.Equal(t, 1, extractor.fetchCount())
	assert.Len(t, savedLines(svc.Logs()), 1)
}

func TestCancelWithoutActiveJobRejected(t *testing.T) {
	svc := parser.NewService(&fakeExtractor{}, newFakeStore(), testConfig())

	assert.ErrorIs(t, svc.Cancel(), parser.ErrNoActiveJob)
	assert.Equal(t, parser.StatusIdle, svc.Status())
}

func TestPerItemFaultDoesNotStopJob(t *testing.T) {
	urls := urlList(3)
	extractor := &fakeExtractor{
		listings:  map[string][]string{"https://example.com/yarns": urls},
		fetchErrs: map[string]error{urls[1]: fmt.Errorf("HTTP 500: Internal Server Error")},
	}
	store := newFakeStore()
	svc := parser.NewService(extractor, store, testConfig())

	_, err := svc.Start(parser.Target{CategoryURL: "https://example.com/yarns"}, parser.Limits{})
	require.NoError(t, err)

	waitForStatus(t, svc, parser.StatusCompleted)

	assert.Equal(t, 2, store.productCount())
	assert.Equal(t, 3, extractor.fetchCount())

	logs := strings.Join(svc.Logs(), "\n")
	assert.Contains(t, logs, "failed to parse product "+urls[1])
}

func TestListingFaultIsFatal(t *testing.T) {
	extractor := &fakeExtractor{listErr: fmt.Errorf("connection refused")}
	store := newFakeStore()
	svc := parser.NewService(extractor, store, testConfig())

	_, err := svc.Start(parser.Target{CategoryURL: "https://example.com/yarns"}, parser.Limits{})
	require.NoError(t, err)

	waitForStatus(t, svc, parser.StatusError)

	snap := svc.Snapshot()
	assert.Contains(t, snap.ErrorDetail, "category listing unreachable")
	assert.Equal(t, 0, store.productCount())
}

func TestStoreFaultIsFatal(t *testing.T) {
	extractor := &fakeExtractor{
		listings: map[string][]string{"https://example.com/yarns": urlList(3)},
	}
	store := newFakeStore()
	store.upsertErr = fmt.Errorf("driver: bad connection")
	svc := parser.NewService(extractor, store, testConfig())

	_, err := svc.Start(parser.Target{CategoryURL: "https://example.com/yarns"}, parser.Limits{})
	require.NoError(t, err)

	waitForStatus(t, svc, parser.StatusError)
	assert.Contains(t, svc.Snapshot().ErrorDetail, "store unavailable")
}

func TestLogIsMonotonicDuringJob(t *testing.T) {
	extractor := &fakeExtractor{
		listings:   map[string][]string{"https://example.com/yarns": urlList(5)},
		fetchDelay: 5 * time.Millisecond,
	}
	store := newFakeStore()
	svc := parser.NewService(extractor, store, testConfig())

	_, err := svc.Start(parser.Target{CategoryURL: "https://example.com/yarns"}, parser.Limits{})
	require.NoError(t, err)

	prev := svc.Logs()
	for svc.Status() == parser.StatusInProgress {
		current := svc.Logs()
		require.GreaterOrEqual(t, len(current), len(prev))
		for i := range prev {
			require.Equal(t, prev[i], current[i], "earlier log read must be a prefix of later reads")
		}
		prev = current
		time.Sleep(time.Millisecond)
	}

	waitForStatus(t, svc, parser.StatusCompleted)
}

func TestNewJobResetsLogAndState(t *testing.T) {
	extractor := &fakeExtractor{
		listings: map[string][]string{
			"https://example.com/yarns": urlList(3),
			"https://example.com/kits":  {"https://example.com/kits/k1"},
		},
	}
	store := newFakeStore()
	svc := parser.NewService(extractor, store, testConfig())

	firstID, err := svc.Start(parser.Target{CategoryURL: "https://example.com/yarns"}, parser.Limits{})
	require.NoError(t, err)
	waitForStatus(t, svc, parser.StatusCompleted)
	firstLogLen := len(svc.Logs())
	require.Greater(t, firstLogLen, 0)

	secondID, err := svc.Start(parser.Target{CategoryURL: "https://example.com/kits"}, parser.Limits{})
	require.NoError(t, err)
	assert.NotEqual(t, firstID, secondID)

	waitForStatus(t, svc, parser.StatusCompleted)

	snap := svc.Snapshot()
	assert.Equal(t, secondID, snap.JobID)
	assert.Equal(t, 1, snap.EstimatedSize)
	assert.Less(t, len(svc.Logs()), firstLogLen)
}

func TestSingleProductTargetSkipsGate(t *testing.T) {
	store := newFakeStore()
	config := testConfig()
	config.ConfirmThreshold = 0
	svc := parser.NewService(&fakeExtractor{}, store, config)

	_, err := svc.Start(parser.Target{ProductURL: "https://example.com/yarn/p0"}, parser.Limits{})
	require.NoError(t, err)

	waitForStatus(t, svc, parser.StatusCompleted)

	assert.Equal(t, 1, store.productCount())
	assert.Equal(t, "Unknown", store.productCategory("https://example.com/yarn/p0"))
}

func TestFullCrawlTagsProductsWithCategory(t *testing.T) {
	extractor := &fakeExtractor{
		categories: []db.Category{
			{Name: "yarns", URL: "https://example.com/yarns"},
			{Name: "kits", URL: "https://example.com/kits"},
		},
		listings: map[string][]string{
			"https://example.com/yarns": {"https://example.com/yarn/p0", "https://example.com/yarn/p1"},
			"https://example.com/kits":  {"https://example.com/kits/k1"},
		},
	}
	store := newFakeStore()
	svc := parser.NewService(extractor, store, testConfig())

	_, err := svc.Start(parser.Target{}, parser.Limits{})
	require.NoError(t, err)

	waitForStatus(t, svc, parser.StatusCompleted)

	assert.Equal(t, 3, store.productCount())
	assert.Equal(t, "yarns", store.productCategory("https://example.com/yarn/p0"))
	assert.Equal(t, "kits", store.productCategory("https://example.com/kits/k1"))
}

func TestFullCrawlRespectsMaxProducts(t *testing.T) {
	extractor := &fakeExtractor{
		categories: []db.Category{
			{Name: "yarns", URL: "https://example.com/yarns"},
			{Name: "kits", URL: "https://example.com/kits"},
		},
		listings: map[string][]string{
			"https://example.com/yarns": urlList(3),
			"https://example.com/kits":  {"https://example.com/kits/k1"},
		},
	}
	store := newFakeStore()
	svc := parser.NewService(extractor, store, testConfig())

	_, err := svc.Start(parser.Target{}, parser.Limits{MaxProducts: 3})
	require.NoError(t, err)

	waitForStatus(t, svc, parser.StatusCompleted)
	assert.Equal(t, 3, store.productCount())
}

func TestHungFetchBecomesPerItemFault(t *testing.T) {
	urls := urlList(2)
	extractor := &fakeExtractor{
		listings:  map[string][]string{"https://example.com/yarns": urls},
		fetchErrs: map[string]error{},
	}
	store := newFakeStore()
	config := testConfig()
	config.FetchTimeout = 10 * time.Millisecond
	svc := parser.NewService(&hangingExtractor{fakeExtractor: extractor, hangURL: urls[0]}, store, config)

	_, err := svc.Start(parser.Target{CategoryURL: "https://example.com/yarns"}, parser.Limits{})
	require.NoError(t, err)

	waitForStatus(t, svc, parser.StatusCompleted)

	assert.Equal(t, 1, store.productCount())
	assert.Contains(t, strings.Join(svc.Logs(), "\n"), "failed to parse product "+urls[0])
}

func TestStartWithBothURLsRejected(t *testing.T) {
	svc := parser.NewService(&fakeExtractor{}, newFakeStore(), testConfig())

	_, err := svc.Start(parser.Target{
		ProductURL:  "https://example.com/yarn/p0",
		CategoryURL: "https://example.com/yarns",
	}, parser.Limits{})
	assert.ErrorIs(t, err, parser.ErrInvalidTarget)
	assert.Equal(t, parser.StatusIdle, svc.Status())
}

func TestStopCancelsLiveJob(t *testing.T) {
	gate := make(chan struct{})
	extractor := &fakeExtractor{
		listings:  map[string][]string{"https://example.com/yarns": urlList(5)},
		fetchGate: gate,
	}
	store := newFakeStore()
	svc := parser.NewService(extractor, store, testConfig())

	_, err := svc.Start(parser.Target{CategoryURL: "https://example.com/yarns"}, parser.Limits{})
	require.NoError(t, err)

	require.NoError(t, svc.Stop())
	assert.Equal(t, parser.StatusCanceled, svc.Status())
}

func TestCancelDuringSaveEndsCanceled(t *testing.T) {
	extractor := &fakeExtractor{
		listings: map[string][]string{"https://example.com/yarns": urlList(3)},
	}
	store := &stallingStore{fakeStore: newFakeStore(), started: make(chan struct{})}
	svc := parser.NewService(extractor, store, testConfig())

	_, err := svc.Start(parser.Target{CategoryURL: "https://example.com/yarns"}, parser.Limits{})
	require.NoError(t, err)

	// Cancel while the store is in the middle of saving the first product.
	<-store.started
	require.NoError(t, svc.Cancel())

	waitForStatus(t, svc, parser.StatusCanceled)

	snapshot := svc.Snapshot()
	assert.Empty(t, snapshot.ErrorDetail)
	assert.Equal(t, 0, store.productCount())
	assert.Contains(t, strings.Join(svc.Logs(), "\n"), "parse canceled")
}

// hangingExtractor blocks one URL until its context expires
type hangingExtractor struct {
	*fakeExtractor
	hangURL string
}

func (h *hangingExtractor) FetchProduct(ctx context.Context, productURL string) (*db.Product, []db.Variant, error) {
	if productURL == h.hangURL {
		<-ctx.Done()
		return nil, nil, ctx.Err()
	}
	return h.fakeExtractor.FetchProduct(ctx, productURL)
}

// stallingStore blocks its first save until the job context expires, the way
// a real driver call does when the connection's context is canceled mid-query
type stallingStore struct {
	*fakeStore
	started chan struct{}
	once    sync.Once
}

func (s *stallingStore) UpsertProduct(ctx context.Context, product *db.Product) (uint, error) {
	var stalled bool
	s.once.Do(func() {
		close(s.started)
		<-ctx.Done()
		stalled = true
	})
	if stalled {
		return 0, ctx.Err()
	}
	return s.fakeStore.UpsertProduct(ctx, product)
}
