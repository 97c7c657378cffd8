package services

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"mfanalytics/analytics"
	"mfanalytics/types"
)

var testNow = time.Date(2024, 6, 28, 15, 0, 0, 0, time.UTC)

type fakeProvider struct {
	mu        sync.Mutex
	schemes   []types.Scheme
	histories map[string]types.SchemeHistory
	calls     map[string]int
	listErr   error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{histories: map[string]types.SchemeHistory{}, calls: map[string]int{}}
}

// add registers a scheme whose NAV path follows rets, one business day per
// return, ending on testNow.
func (p *fakeProvider) add(code int, name string, rets ...float64) {
	navs := []float64{100}
	for _, r := range rets {
		navs = append(navs, navs[len(navs)-1]*(1+r))
	}
	data := make([]types.NavRecord, len(navs))
	for i := range navs {
		// provider lists newest first
		d := testNow.AddDate(0, 0, -(len(navs) - 1 - i))
		data[len(navs)-1-i] = types.NavRecord{Date: d.Format(analytics.NavDateLayout), Nav: formatNav(navs[i])}
	}
	s := types.Scheme{Code: code, Name: name}
	p.schemes = append(p.schemes, s)
	p.histories[s.CodeString()] = types.SchemeHistory{
		Meta: types.SchemeMeta{SchemeCode: code, SchemeName: name},
		Data: data,
	}
}

func formatNav(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (p *fakeProvider) ListSchemes(_ context.Context) ([]types.Scheme, error) {
	if p.listErr != nil {
		return nil, p.listErr
	}
	return p.schemes, nil
}

func (p *fakeProvider) SchemeHistory(_ context.Context, code string) (types.SchemeHistory, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[code]++
	h, ok := p.histories[code]
	if !ok {
		return types.SchemeHistory{}, errors.New("scheme not found")
	}
	return h, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []types.ScreeningEvent
	err    error
}

func (r *recordingPublisher) SendMessage(_ context.Context, event types.ScreeningEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.err
}
