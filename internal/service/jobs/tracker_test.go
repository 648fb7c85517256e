package jobs

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"StockScreener/internal/domain/models"
	"StockScreener/internal/repository"
	"StockScreener/pkg/cache"
)

type memJobStore struct {
	mu    sync.Mutex
	jobs  map[string]models.Job
	locks map[string]bool
	saves map[string][]models.JobStatus
	ttls  []time.Duration
}

func newMemJobStore() *memJobStore {
	return &memJobStore{jobs: map[string]models.Job{}, locks: map[string]bool{}, saves: map[string][]models.JobStatus{}}
}

func (s *memJobStore) SaveJob(_ context.Context, job *models.Job, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ttls = append(s.ttls, ttl)
	key := models.JobKey(job.Type, job.ID)
	s.jobs[key] = *job
	s.saves[key] = append(s.saves[key], job.Status)
	return nil
}

func (s *memJobStore) GetJob(_ context.Context, jobType, jobID string) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[models.JobKey(jobType, jobID)]
	if !ok {
		return nil, &models.JobNotFoundError{JobType: jobType, JobID: jobID}
	}
	return &j, nil
}

func (s *memJobStore) AcquireJob(_ context.Context, jobType, jobID string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := models.JobKey(jobType, jobID)
	if s.locks[key] {
		return false, nil
	}
	s.locks[key] = true
	return true, nil
}

func (s *memJobStore) ReleaseJob(_ context.Context, jobType, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, models.JobKey(jobType, jobID))
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.JobEvent
}

func (p *recordingPublisher) PublishVerdict(context.Context, *models.VerdictEvent) error { return nil }
func (p *recordingPublisher) Close() error                                               { return nil }
func (p *recordingPublisher) PublishJob(_ context.Context, ev *models.JobEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, *ev)
	return nil
}

type screenRequest struct {
	Symbols   []string          `json:"symbols"`
	TimeFrame []string          `json:"timeFrame"`
	Extra     map[string]string `json:"extra,omitempty"`
}

func drain(t *testing.T, tr *Tracker) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tr.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}
}

func TestHashRequestStable(t *testing.T) {
	a, err := HashRequest(map[string]any{"symbols": []string{"AAPL"}, "timeFrame": "daily"})
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	b, _ := HashRequest(map[string]any{"timeFrame": "daily", "symbols": []string{"AAPL"}})
	if a != b {
		t.Fatalf("key order changed the id: %s vs %s", a, b)
	}
	if !regexp.MustCompile(`^[0-9a-f]{24}$`).MatchString(a) {
		t.Fatalf("id %q is not 24 lowercase hex chars", a)
	}

	s, _ := HashRequest(screenRequest{Symbols: []string{"AAPL"}, Extra: map[string]string{"b": "1", "a": "2"}})
	s2, _ := HashRequest(screenRequest{Symbols: []string{"AAPL"}, Extra: map[string]string{"a": "2", "b": "1"}})
	if s != s2 {
		t.Fatalf("struct hashing not stable")
	}
	if c, _ := HashRequest(map[string]any{"symbols": []string{"MSFT"}}); c == a {
		t.Fatalf("different requests must differ")
	}
}

func TestSubmitCompletes(t *testing.T) {
	store := newMemJobStore()
	pub := &recordingPublisher{}
	tr := NewTracker(store, WithPublisher(pub))

	job, err := tr.Submit(context.Background(), models.JobTypeFilter, screenRequest{Symbols: []string{"AAPL"}}, func(ctx context.Context) (any, error) {
		return map[string]int{"passed": 1}, nil
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if job.Status != models.JobProcessing {
		t.Fatalf("submit must return processing, got %s", job.Status)
	}
	drain(t, tr)

	got, err := tr.Status(context.Background(), models.JobTypeFilter, job.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if got.Status != models.JobDone || string(got.Result) != `{"passed":1}` || got.CompletedAt == nil {
		t.Fatalf("unexpected final record: %+v", got)
	}
	saves := store.saves[models.JobKey(models.JobTypeFilter, job.ID)]
	if len(saves) != 2 || saves[0] != models.JobProcessing || saves[1] != models.JobDone {
		t.Fatalf("expected processing then a single done write, got %v", saves)
	}
	if len(pub.events) != 1 || pub.events[0].Status != models.JobDone || pub.events[0].EventID == "" {
		t.Fatalf("expected one done event, got %+v", pub.events)
	}
}

func TestRecordsKeptForRetention(t *testing.T) {
	store := newMemJobStore()
	tr := NewTracker(store, WithRetention(72*time.Hour))

	if _, err := tr.Submit(context.Background(), models.JobTypeTrend, screenRequest{Symbols: []string{"XOM"}}, func(ctx context.Context) (any, error) {
		return nil, nil
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	drain(t, tr)

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.ttls) != 2 {
		t.Fatalf("expected two writes, got %v", store.ttls)
	}
	for _, ttl := range store.ttls {
		if ttl != 72*time.Hour {
			t.Fatalf("record saved with ttl %v, want 72h", ttl)
		}
	}
}

func TestRetentionOverridesStoreDefault(t *testing.T) {
	c := cache.NewMemoryCache()
	t.Cleanup(func() { _ = c.Close() })
	store := repository.NewCacheResultStore(c, repository.WithRetentionDays(1))
	tr := NewTracker(store, WithRetention(50*time.Millisecond))

	job, err := tr.Submit(context.Background(), models.JobTypeFilter, screenRequest{Symbols: []string{"IBM"}}, func(ctx context.Context) (any, error) {
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	drain(t, tr)

	time.Sleep(200 * time.Millisecond)
	if got, err := tr.Status(context.Background(), models.JobTypeFilter, job.ID); !errors.Is(err, models.ErrJobNotFound) {
		t.Fatalf("record must expire after the job retention, got %+v err=%v", got, err)
	}
}

func TestSubmitRecordsFailureAndPanic(t *testing.T) {
	tr := NewTracker(newMemJobStore())
	ctx := context.Background()

	failed, _ := tr.Submit(ctx, models.JobTypeTrend, map[string]any{"n": 1}, func(context.Context) (any, error) {
		return nil, errors.New("provider down")
	})
	panicked, _ := tr.Submit(ctx, models.JobTypeTrend, map[string]any{"n": 2}, func(context.Context) (any, error) {
		panic("boom")
	})
	drain(t, tr)

	for _, c := range []struct {
		id   string
		want string
	}{{failed.ID, "provider down"}, {panicked.ID, "job panicked: boom"}} {
		got, err := tr.Status(ctx, models.JobTypeTrend, c.id)
		if err != nil {
			t.Fatalf("status: %v", err)
		}
		if got.Status != models.JobError || got.Error != c.want || got.Result != nil {
			t.Fatalf("unexpected record: %+v", got)
		}
	}
}

func TestResubmitWhileProcessingReturnsExisting(t *testing.T) {
	tr := NewTracker(newMemJobStore())
	ctx := context.Background()
	release := make(chan struct{})
	var runs atomic.Int32

	fn := func(context.Context) (any, error) {
		runs.Add(1)
		<-release
		return "ok", nil
	}
	req := screenRequest{Symbols: []string{"AAPL"}}

	first, err := tr.Submit(ctx, models.JobTypeFilter, req, fn)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	second, err := tr.Submit(ctx, models.JobTypeFilter, req, fn)
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if second.ID != first.ID || second.Status != models.JobProcessing {
		t.Fatalf("resubmission should return the running job, got %+v", second)
	}
	close(release)
	drain(t, tr)
	if runs.Load() != 1 {
		t.Fatalf("expected a single run, got %d", runs.Load())
	}

	third, _ := tr.Submit(ctx, models.JobTypeFilter, req, fn)
	drain(t, tr)
	if third.ID != first.ID || runs.Load() != 2 {
		t.Fatalf("finished job should rerun on resubmission, runs=%d", runs.Load())
	}
}

func TestStatusUnknownJob(t *testing.T) {
	tr := NewTracker(newMemJobStore())
	_, err := tr.Status(context.Background(), models.JobTypeFilter, "000000000000000000000000")
	if !errors.Is(err, models.ErrJobNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMaxConcurrent(t *testing.T) {
	tr := NewTracker(newMemJobStore(), WithMaxConcurrent(1))
	var active, peak atomic.Int32
	fn := func(context.Context) (any, error) {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		active.Add(-1)
		return nil, nil
	}
	for i := 0; i < 4; i++ {
		if _, err := tr.Submit(context.Background(), models.JobTypeHistory, map[string]int{"i": i}, fn); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	drain(t, tr)
	if peak.Load() != 1 {
		t.Fatalf("expected at most one concurrent job, peak=%d", peak.Load())
	}
}
