package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"mfanalytics/analytics"
	"mfanalytics/metrics"
	"mfanalytics/types"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
)

var ErrUniverseNotReady = errors.New("scheme universe not loaded")

type SchemeLister interface {
	ListSchemes(ctx context.Context) ([]types.Scheme, error)
}

type UniverseServiceI interface {
	Init(ctx context.Context) error
	Refresh(ctx context.Context) error
	Lookup(code string) (analytics.FundIdentity, bool)
	Search(keyword string) ([]analytics.FundIdentity, error)
	Size() int
	RefreshedAt() time.Time
}

// universeService is the process wide scheme code to name table. It is
// loaded once by Init and replaced wholesale by Refresh.
type universeService struct {
	lister  SchemeLister
	metrics *metrics.Recorder

	mu          sync.RWMutex
	byCode      map[string]analytics.FundIdentity
	schemes     []analytics.FundIdentity
	refreshedAt time.Time
}

func NewUniverseService(lister SchemeLister, recorder *metrics.Recorder) UniverseServiceI {
	return &universeService{lister: lister, metrics: recorder}
}

func (us *universeService) Init(ctx context.Context) error {
	if us.Size() > 0 {
		return nil
	}
	return us.Refresh(ctx)
}

func (us *universeService) Refresh(ctx context.Context) error {
	span := sentry.StartSpan(ctx, "[DAO] RefreshUniverse")
	defer span.Finish()
	start := time.Now()
	defer us.metrics.Since("universe_refresh", start)

	list, err := us.lister.ListSchemes(span.Context())
	if err != nil {
		span.Status = sentry.SpanStatusUnavailable
		us.metrics.RecordProviderError("mfapi")
		return fmt.Errorf("list schemes: %w", err)
	}

	byCode := make(map[string]analytics.FundIdentity, len(list))
	schemes := make([]analytics.FundIdentity, 0, len(list))
	for _, s := range list {
		id := analytics.FundIdentity{Code: s.CodeString(), Name: strings.TrimSpace(s.Name)}
		if _, dup := byCode[id.Code]; dup || s.Code == 0 {
			continue
		}
		byCode[id.Code] = id
		schemes = append(schemes, id)
	}
	sort.Slice(schemes, func(i, j int) bool { return schemes[i].Name < schemes[j].Name })

	us.mu.Lock()
	us.byCode = byCode
	us.schemes = schemes
	us.refreshedAt = time.Now()
	us.mu.Unlock()

	us.metrics.RecordUniverseSize(len(schemes))
	span.Status = sentry.SpanStatusOK
	zap.L().Info("Scheme universe refreshed", zap.Int("schemes", len(schemes)))
	return nil
}

func (us *universeService) Lookup(code string) (analytics.FundIdentity, bool) {
	us.mu.RLock()
	defer us.mu.RUnlock()
	id, ok := us.byCode[strings.TrimSpace(code)]
	return id, ok
}

// Search returns schemes whose name contains keyword, ignoring case.
func (us *universeService) Search(keyword string) ([]analytics.FundIdentity, error) {
	us.mu.RLock()
	defer us.mu.RUnlock()
	if us.byCode == nil {
		return nil, ErrUniverseNotReady
	}

	needle := strings.ToLower(strings.TrimSpace(keyword))
	out := []analytics.FundIdentity{}
	if needle == "" {
		return out, nil
	}
	for _, s := range us.schemes {
		if strings.Contains(strings.ToLower(s.Name), needle) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (us *universeService) Size() int {
	us.mu.RLock()
	defer us.mu.RUnlock()
	return len(us.schemes)
}

func (us *universeService) RefreshedAt() time.Time {
	us.mu.RLock()
	defer us.mu.RUnlock()
	return us.refreshedAt
}
