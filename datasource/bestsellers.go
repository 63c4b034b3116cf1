package datasource

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// MaxBestsellerItems caps how many items one search may return.
const MaxBestsellerItems = 10

// ErrBestsellerCredentials is returned when the configured credentials are
// missing or placeholders, so the upstream catalog API must not be called.
var ErrBestsellerCredentials = errors.New("datasource: bestseller credentials are not configured")

// BestsellerItem is one ranked catalog entry.
type BestsellerItem struct {
	ASIN      string `json:"asin"`
	Title     string `json:"title"`
	Category  string `json:"category"`
	SalesRank *int   `json:"sales_rank"`
}

// BestsellerQuery selects a catalog segment. Category is the business-side
// description used as the keyword fallback; BrowseNodeID, when set, targets a
// specific node instead.
type BestsellerQuery struct {
	Category     string
	SearchIndex  string
	BrowseNodeID string
	MaxItems     int
}

// BestsellerSource searches a product catalog for its current bestsellers.
type BestsellerSource interface {
	SearchBestsellers(ctx context.Context, query BestsellerQuery) ([]BestsellerItem, error)
}

// MockBestsellers generates a reproducible bestseller list from the same
// seeded generator the mock business-report source uses. It refuses to answer
// with placeholder credentials, the same as a real catalog client would.
type MockBestsellers struct {
	creds    Credentials
	settings MockSettings
}

// NewMockBestsellers creates a mock catalog source. A zero Seed defaults
// to 2024.
func NewMockBestsellers(creds Credentials, settings MockSettings) *MockBestsellers {
	if settings.Seed == 0 {
		settings.Seed = 2024
	}
	return &MockBestsellers{creds: creds, settings: settings}
}

// SearchBestsellers implements BestsellerSource.
func (s *MockBestsellers) SearchBestsellers(ctx context.Context, query BestsellerQuery) ([]BestsellerItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if placeholderCredential(s.creds.AccessKey) || placeholderCredential(s.creds.SecretKey) {
		return nil, ErrBestsellerCredentials
	}

	count := query.MaxItems
	if count < 1 || count > MaxBestsellerItems {
		count = MaxBestsellerItems
	}

	category := query.Category
	if query.BrowseNodeID != "" {
		category = fmt.Sprintf("%s node %s", query.SearchIndex, query.BrowseNodeID)
	}

	rng := newLCG(s.settings.Seed + 3 + int64(len(query.SearchIndex)))
	items := make([]BestsellerItem, 0, count)
	for i := 0; i < count; i++ {
		rank := i + 1
		items = append(items, BestsellerItem{
			ASIN:      fmt.Sprintf("B0BEST%s%03d", indexCode(query.SearchIndex), rng.intn(100, 999)),
			Title:     fmt.Sprintf("%s Bestseller #%d", strings.TrimSpace(query.SearchIndex+" "+query.Category), rank),
			Category:  category,
			SalesRank: &rank,
		})
	}
	return items, nil
}

func placeholderCredential(v string) bool {
	return v == "" || v == "mock"
}

// indexCode folds a search index name into a short uppercase ASIN fragment.
func indexCode(index string) string {
	cleaned := strings.ToUpper(strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' {
			return r
		}
		return -1
	}, index))
	if cleaned == "" {
		cleaned = "ALL"
	}
	if len(cleaned) > 3 {
		cleaned = cleaned[:3]
	}
	return cleaned
}

var _ BestsellerSource = (*MockBestsellers)(nil)
