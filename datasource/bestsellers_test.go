package datasource

import (
	"context"
	"errors"
	"testing"
)

var bestsellerCreds = Credentials{AccessKey: "AKIA-TEST", SecretKey: "secret"}

func TestMockBestsellersRefusesPlaceholderCredentials(t *testing.T) {
	cases := []Credentials{
		{},
		{AccessKey: "mock", SecretKey: "mock"},
		{AccessKey: "AKIA-TEST", SecretKey: "mock"},
		{AccessKey: "", SecretKey: "secret"},
	}
	for _, creds := range cases {
		src := NewMockBestsellers(creds, MockSettings{})
		_, err := src.SearchBestsellers(context.Background(), BestsellerQuery{Category: "books", SearchIndex: "Books"})
		if !errors.Is(err, ErrBestsellerCredentials) {
			t.Errorf("Expected credential refusal for %+v, got %v", creds, err)
		}
	}
}

func TestMockBestsellersReturnsRankedItems(t *testing.T) {
	src := NewMockBestsellers(bestsellerCreds, MockSettings{Seed: 7})
	items, err := src.SearchBestsellers(context.Background(), BestsellerQuery{
		Category:    "office chairs",
		SearchIndex: "HomeAndKitchen",
		MaxItems:    4,
	})
	if err != nil {
		t.Fatalf("SearchBestsellers failed: %v", err)
	}
	if len(items) != 4 {
		t.Fatalf("Expected 4 items, got %d", len(items))
	}
	for i, item := range items {
		if item.SalesRank == nil || *item.SalesRank != i+1 {
			t.Errorf("Expected rank %d at position %d, got %+v", i+1, i, item.SalesRank)
		}
		if item.ASIN == "" || item.Title == "" {
			t.Errorf("Expected populated item, got %+v", item)
		}
		if item.Category != "office chairs" {
			t.Errorf("Expected keyword category, got %q", item.Category)
		}
	}
}

func TestMockBestsellersCapsItemCount(t *testing.T) {
	src := NewMockBestsellers(bestsellerCreds, MockSettings{})
	for _, max := range []int{0, 50} {
		items, err := src.SearchBestsellers(context.Background(), BestsellerQuery{
			Category:    "books",
			SearchIndex: "Books",
			MaxItems:    max,
		})
		if err != nil {
			t.Fatalf("SearchBestsellers failed: %v", err)
		}
		if len(items) != MaxBestsellerItems {
			t.Errorf("Expected cap of %d items for max_items=%d, got %d", MaxBestsellerItems, max, len(items))
		}
	}
}

func TestMockBestsellersBrowseNodeOverridesCategory(t *testing.T) {
	src := NewMockBestsellers(bestsellerCreds, MockSettings{})
	items, err := src.SearchBestsellers(context.Background(), BestsellerQuery{
		Category:     "books",
		SearchIndex:  "Books",
		BrowseNodeID: "283155",
		MaxItems:     1,
	})
	if err != nil {
		t.Fatalf("SearchBestsellers failed: %v", err)
	}
	if items[0].Category != "Books node 283155" {
		t.Errorf("Expected node-derived category, got %q", items[0].Category)
	}
}

func TestMockBestsellersIsReproducible(t *testing.T) {
	query := BestsellerQuery{Category: "books", SearchIndex: "Books", MaxItems: 5}
	a, err := NewMockBestsellers(bestsellerCreds, MockSettings{Seed: 9}).SearchBestsellers(context.Background(), query)
	if err != nil {
		t.Fatalf("SearchBestsellers failed: %v", err)
	}
	b, _ := NewMockBestsellers(bestsellerCreds, MockSettings{Seed: 9}).SearchBestsellers(context.Background(), query)
	for i := range a {
		if a[i].ASIN != b[i].ASIN {
			t.Fatalf("Expected identical items at %d, got %q and %q", i, a[i].ASIN, b[i].ASIN)
		}
	}
}
