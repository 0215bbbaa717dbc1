package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/diagnosis/concierge/internal/domain"
)

// LedgerSource is the query side of the request ledger.
type LedgerSource interface {
	NewSince(ctx context.Context, hotelID int64, since time.Time, categoryID *int64, limit int) ([]domain.RequestSummary, error)
}

// LedgerFetcher polls the ledger in-process for one hotel.
type LedgerFetcher struct {
	Source  LedgerSource
	HotelID int64
}

func (f LedgerFetcher) NewRequests(ctx context.Context, since time.Time, categoryID *int64, limit int) ([]domain.RequestSummary, error) {
	return f.Source.NewSince(ctx, f.HotelID, since, categoryID, limit)
}

// NewRequestsResponse is the body of GET /v1/staff/requests/new.
type NewRequestsResponse struct {
	Requests []domain.RequestSummary `json:"requests"`
}

// HTTPFetcher polls the staff API with a bearer token. The hotel comes from
// the token's claims.
type HTTPFetcher struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewHTTPFetcher(baseURL, token string) *HTTPFetcher {
	return &HTTPFetcher{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (f *HTTPFetcher) NewRequests(ctx context.Context, since time.Time, categoryID *int64, limit int) ([]domain.RequestSummary, error) {
	q := url.Values{}
	q.Set("since", since.UTC().Format(time.RFC3339Nano))
	q.Set("limit", strconv.Itoa(limit))
	if categoryID != nil {
		q.Set("category_id", strconv.FormatInt(*categoryID, 10))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.BaseURL+"/v1/staff/requests/new?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+f.Token)
	req.Header.Set("Accept", "application/json")

	res, err := f.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, fmt.Errorf("new requests: status=%d body=%s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	var out NewRequestsResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode new requests: %w", err)
	}
	return out.Requests, nil
}
