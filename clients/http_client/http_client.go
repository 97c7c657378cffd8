package http_client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mfanalytics/types"

	"go.uber.org/zap"
)

var ErrNotFound = errors.New("not found")

// StatusError is returned for a non-2xx provider response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("failed to retrieve %s, status code: %d", e.URL, e.StatusCode)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

func getJSON(ctx context.Context, client *http.Client, rawURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		zap.L().Error("Failed to unmarshal provider response", zap.String("url", rawURL), zap.Error(err))
		return err
	}
	return nil
}

// MFAPIClient reads scheme lists and NAV histories from an mfapi.in
// compatible endpoint.
type MFAPIClient struct {
	baseURL string
	client  *http.Client
}

func NewMFAPIClient(baseURL string, timeout time.Duration) *MFAPIClient {
	return &MFAPIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *MFAPIClient) ListSchemes(ctx context.Context) ([]types.Scheme, error) {
	var schemes []types.Scheme
	if err := getJSON(ctx, c.client, c.baseURL+"/mf", &schemes); err != nil {
		return nil, err
	}
	return schemes, nil
}

func (c *MFAPIClient) SchemeHistory(ctx context.Context, code string) (types.SchemeHistory, error) {
	var history types.SchemeHistory
	if err := getJSON(ctx, c.client, c.baseURL+"/mf/"+url.PathEscape(code), &history); err != nil {
		return types.SchemeHistory{}, err
	}
	// mfapi answers unknown codes with 200 and an empty body.
	if history.Meta.SchemeCode == 0 && len(history.Data) == 0 {
		return types.SchemeHistory{}, fmt.Errorf("scheme %s: %w", code, ErrNotFound)
	}
	return history, nil
}

// HoldingsClient reads portfolio holdings snapshots.
type HoldingsClient struct {
	baseURL string
	client  *http.Client
}

func NewHoldingsClient(baseURL string, timeout time.Duration) *HoldingsClient {
	return &HoldingsClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *HoldingsClient) SearchFunds(ctx context.Context, term string) ([]types.HoldingsFund, error) {
	params := url.Values{}
	params.Add("term", term)

	var funds []types.HoldingsFund
	if err := getJSON(ctx, c.client, c.baseURL+"/funds/search?"+params.Encode(), &funds); err != nil {
		return nil, err
	}
	return funds, nil
}

func (c *HoldingsClient) Holdings(ctx context.Context, fundID string) (types.HoldingsResponse, error) {
	var res types.HoldingsResponse
	if err := getJSON(ctx, c.client, c.baseURL+"/funds/"+url.PathEscape(fundID)+"/holdings", &res); err != nil {
		return types.HoldingsResponse{}, err
	}
	return res, nil
}
