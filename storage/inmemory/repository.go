// Package inmemory implements the history repository in process memory. It
// backs tests and deployments that run without PostgreSQL.
package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opsdash/opsdash/dashboard"
	"github.com/opsdash/opsdash/storage"
)

// Repository keeps summaries and uploads in maps guarded by a mutex.
type Repository struct {
	mu        sync.RWMutex
	nextID    int64
	summaries []storage.StoredSummary
	uploads   map[string]storage.StoredUpload
	order     []string

	// now is swappable for tests.
	now func() time.Time
}

// New creates an empty repository.
func New() *Repository {
	return &Repository{
		uploads: make(map[string]storage.StoredUpload),
		now:     time.Now,
	}
}

// Initialize implements storage.Repository.
func (r *Repository) Initialize(ctx context.Context) error { return nil }

// SaveSummary implements storage.Repository.
func (r *Repository) SaveSummary(ctx context.Context, summary dashboard.Summary) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	stored := storage.StoredSummary{
		ID:             r.nextID,
		Start:          summary.Start.Format(dashboard.DateLayout),
		End:            summary.End.Format(dashboard.DateLayout),
		Source:         summary.SourceName,
		TotalRevenue:   summary.Totals.TotalRevenue,
		TotalUnits:     summary.Totals.TotalUnits,
		TotalSessions:  summary.Totals.TotalSessions,
		ConversionRate: summary.Totals.ConversionRate,
		RefundRate:     summary.Totals.RefundRate,
		CreatedAt:      r.now().UTC().Format(time.RFC3339),
	}
	for _, p := range summary.TopProducts {
		stored.Products = append(stored.Products, storage.StoredProduct{
			ASIN:             p.ASIN,
			Title:            p.Title,
			Revenue:          p.Revenue,
			Units:            p.Units,
			Sessions:         p.Sessions,
			ConversionRate:   p.ConversionRate,
			Refunds:          p.Refunds,
			BuyBoxPercentage: p.BuyBoxPercentage,
		})
	}
	r.summaries = append(r.summaries, stored)
	return stored.ID, nil
}

// RecentSummaries implements storage.Repository.
func (r *Repository) RecentSummaries(ctx context.Context, limit int) ([]storage.StoredSummary, error) {
	if limit <= 0 {
		limit = 10
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]storage.StoredSummary, len(r.summaries))
	copy(out, r.summaries)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start > out[j].Start
		}
		return out[i].ID > out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SummaryByStartDate implements storage.Repository.
func (r *Repository) SummaryByStartDate(ctx context.Context, start string) (*storage.StoredSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found *storage.StoredSummary
	for i := range r.summaries {
		s := r.summaries[i]
		if s.Start == start && (found == nil || s.ID > found.ID) {
			found = &r.summaries[i]
		}
	}
	if found == nil {
		return nil, storage.ErrNotFound
	}
	cp := *found
	return &cp, nil
}

// SaveUpload implements storage.Repository.
func (r *Repository) SaveUpload(ctx context.Context, filename string, headers []string, rows [][]string) (*storage.StoredUpload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	upload := storage.StoredUpload{
		ID:          uuid.NewString(),
		Filename:    filename,
		Headers:     headers,
		Rows:        rows,
		RowCount:    len(rows),
		ColumnCount: len(headers),
		CreatedAt:   r.now().UTC().Format(time.RFC3339),
	}
	r.uploads[upload.ID] = upload
	r.order = append(r.order, upload.ID)
	cp := upload
	return &cp, nil
}

// Upload implements storage.Repository.
func (r *Repository) Upload(ctx context.Context, id string) (*storage.StoredUpload, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.uploads[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := u
	return &cp, nil
}

// RecentUploads implements storage.Repository.
func (r *Repository) RecentUploads(ctx context.Context, limit int) ([]storage.UploadInfo, error) {
	if limit <= 0 {
		limit = 20
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var infos []storage.UploadInfo
	for i := len(r.order) - 1; i >= 0 && len(infos) < limit; i-- {
		u, ok := r.uploads[r.order[i]]
		if !ok {
			continue
		}
		infos = append(infos, storage.UploadInfo{
			ID:          u.ID,
			Filename:    u.Filename,
			RowCount:    u.RowCount,
			ColumnCount: u.ColumnCount,
			CreatedAt:   u.CreatedAt,
		})
	}
	return infos, nil
}

// DeleteUpload implements storage.Repository.
func (r *Repository) DeleteUpload(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.uploads[id]; !ok {
		return false, nil
	}
	delete(r.uploads, id)
	return true, nil
}

var _ storage.Repository = (*Repository)(nil)
