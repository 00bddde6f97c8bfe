package gatelog

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"libtrack/internal/similarity"
	"libtrack/internal/student"
)

// ErrScanInFlight means a scan for the same student is still being
// processed. Overlapping scans fail fast instead of queueing.
var ErrScanInFlight = errors.New("scan already in progress for this student")

// ImageFetcher loads a student's registered reference image for the
// similarity hint. Fetch failures degrade to an inconclusive verdict.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Result is what a successful scan returns to the kiosk.
type Result struct {
	Log     EntryLog           `json:"log"`
	Verdict similarity.Verdict `json:"-"`
}

// Service runs the scan pipeline: resolve identity, estimate image
// similarity, read history, classify, append. A per-student single-slot
// guard serializes scans for the same student within this process; the
// store's check-and-append covers concurrent writers elsewhere.
type Service struct {
	students    *student.Service
	logs        Store
	fetcher     ImageFetcher
	minInterval time.Duration
	now         func() time.Time

	mu       sync.Mutex
	inFlight map[string]bool

	scansTotal *prometheus.CounterVec
}

// NewService creates the scan service. fetcher may be nil when reference
// images are not retrievable; the similarity hint is then inconclusive.
func NewService(students *student.Service, logs Store, fetcher ImageFetcher, minInterval time.Duration) *Service {
	if minInterval <= 0 {
		minInterval = 10 * time.Second
	}
	return &Service{
		students:    students,
		logs:        logs,
		fetcher:     fetcher,
		minInterval: minInterval,
		now:         func() time.Time { return time.Now().UTC() },
		inFlight:    make(map[string]bool),
		scansTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "libtrack_scans_total",
			Help: "Scan outcomes by result.",
		}, []string{"result"}),
	}
}

// Collector exposes the scan counter for registration by the caller.
func (s *Service) Collector() prometheus.Collector {
	return s.scansTotal
}

// Scan resolves rawID, attaches a best-effort similarity verdict for the
// captured image (may be nil), and records the next Entry/Exit event.
func (s *Service) Scan(ctx context.Context, rawID string, capture []byte) (Result, error) {
	st, err := s.students.Resolve(ctx, rawID)
	if err != nil {
		var nf student.NotFoundError
		if errors.As(err, &nf) {
			s.scansTotal.WithLabelValues("not_found").Inc()
		}
		return Result{}, err
	}

	key := student.NormalizeID(st.ID)
	if !s.acquire(key) {
		s.scansTotal.WithLabelValues("busy").Inc()
		return Result{}, ErrScanInFlight
	}
	defer s.release(key)

	verdict := s.compareToReference(ctx, *st, capture)

	// One retry when a concurrent kiosk appended between read and write.
	for attempt := 0; attempt < 2; attempt++ {
		last, err := s.logs.LastEventFor(ctx, st.ID)
		if err != nil {
			return Result{}, err
		}
		entry, err := Classify(*st, s.now(), last, s.minInterval, verdict)
		if err != nil {
			var rl RateLimitedError
			if errors.As(err, &rl) {
				s.scansTotal.WithLabelValues("rate_limited").Inc()
			}
			return Result{}, err
		}
		expected := ""
		if last != nil {
			expected = last.ID
		}
		if err := s.logs.Append(ctx, entry, expected); err != nil {
			if errors.Is(err, ErrStaleHistory) && attempt == 0 {
				log.Printf("stale history for %s, re-reading", key)
				continue
			}
			return Result{}, err
		}
		if entry.Type == EventEntry {
			s.scansTotal.WithLabelValues("entry").Inc()
		} else {
			s.scansTotal.WithLabelValues("exit").Inc()
		}
		return Result{Log: entry, Verdict: verdict}, nil
	}
	return Result{}, ErrStaleHistory
}

// List returns recorded events, newest first.
func (s *Service) List(ctx context.Context, f Filter) ([]EntryLog, error) {
	return s.logs.List(ctx, f)
}

func (s *Service) compareToReference(ctx context.Context, st student.Student, capture []byte) similarity.Verdict {
	if len(capture) == 0 || st.IDCardImageURL == "" || s.fetcher == nil {
		return similarity.Inconclusive
	}
	ref, err := s.fetcher.Fetch(ctx, st.IDCardImageURL)
	if err != nil {
		log.Printf("reference image fetch failed for %s: %v", st.ID, err)
		return similarity.Inconclusive
	}
	return similarity.Compare(ref, capture)
}

func (s *Service) acquire(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[key] {
		return false
	}
	s.inFlight[key] = true
	return true
}

func (s *Service) release(key string) {
	s.mu.Lock()
	delete(s.inFlight, key)
	s.mu.Unlock()
}
