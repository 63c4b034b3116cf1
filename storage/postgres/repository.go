// Package postgres implements the history repository on PostgreSQL via pgx.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opsdash/opsdash/dashboard"
	"github.com/opsdash/opsdash/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS summaries (
    id BIGSERIAL PRIMARY KEY,
    start_date TEXT NOT NULL,
    end_date TEXT NOT NULL,
    source TEXT NOT NULL,
    total_revenue DOUBLE PRECISION NOT NULL,
    total_units BIGINT NOT NULL,
    total_sessions BIGINT NOT NULL,
    conversion_rate DOUBLE PRECISION NOT NULL,
    refund_rate DOUBLE PRECISION NOT NULL,
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS products (
    id BIGSERIAL PRIMARY KEY,
    summary_id BIGINT NOT NULL REFERENCES summaries(id) ON DELETE CASCADE,
    asin TEXT NOT NULL,
    title TEXT NOT NULL,
    revenue DOUBLE PRECISION NOT NULL,
    units BIGINT NOT NULL,
    sessions BIGINT NOT NULL,
    conversion_rate DOUBLE PRECISION NOT NULL,
    refunds BIGINT NOT NULL,
    buy_box_percentage DOUBLE PRECISION,
    UNIQUE (summary_id, asin)
);

CREATE TABLE IF NOT EXISTS uploads (
    id TEXT PRIMARY KEY,
    filename TEXT NOT NULL,
    headers_json JSONB NOT NULL,
    rows_json JSONB NOT NULL,
    row_count BIGINT NOT NULL,
    column_count BIGINT NOT NULL,
    created_at TEXT NOT NULL
);
`

// Repository stores dashboard history in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New wraps an existing connection pool.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Connect opens a pool for the given URL and wraps it.
func Connect(ctx context.Context, databaseURL string) (*Repository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return New(pool), nil
}

// Close releases the underlying pool.
func (r *Repository) Close() {
	r.pool.Close()
}

// Initialize implements storage.Repository.
func (r *Repository) Initialize(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// SaveSummary implements storage.Repository.
func (r *Repository) SaveSummary(ctx context.Context, summary dashboard.Summary) (int64, error) {
	createdAt := time.Now().UTC().Format(time.RFC3339)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var summaryID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO summaries (
			start_date, end_date, source,
			total_revenue, total_units, total_sessions,
			conversion_rate, refund_rate, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		summary.Start.Format(dashboard.DateLayout),
		summary.End.Format(dashboard.DateLayout),
		summary.SourceName,
		summary.Totals.TotalRevenue,
		summary.Totals.TotalUnits,
		summary.Totals.TotalSessions,
		summary.Totals.ConversionRate,
		summary.Totals.RefundRate,
		createdAt,
	).Scan(&summaryID)
	if err != nil {
		return 0, fmt.Errorf("insert summary: %w", err)
	}

	batch := &pgx.Batch{}
	for _, p := range summary.TopProducts {
		batch.Queue(`
			INSERT INTO products (
				summary_id, asin, title, revenue, units, sessions,
				conversion_rate, refunds, buy_box_percentage
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (summary_id, asin) DO UPDATE SET
				title = excluded.title,
				revenue = excluded.revenue,
				units = excluded.units,
				sessions = excluded.sessions,
				conversion_rate = excluded.conversion_rate,
				refunds = excluded.refunds,
				buy_box_percentage = excluded.buy_box_percentage`,
			summaryID, p.ASIN, p.Title, p.Revenue, p.Units, p.Sessions,
			p.ConversionRate, p.Refunds, p.BuyBoxPercentage,
		)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return 0, fmt.Errorf("insert products: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return summaryID, nil
}

// RecentSummaries implements storage.Repository.
func (r *Repository) RecentSummaries(ctx context.Context, limit int) ([]storage.StoredSummary, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, start_date, end_date, source,
		       total_revenue, total_units, total_sessions,
		       conversion_rate, refund_rate, created_at
		FROM summaries
		ORDER BY start_date DESC, id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query summaries: %w", err)
	}
	summaries, err := scanSummaries(rows)
	if err != nil {
		return nil, err
	}
	for i := range summaries {
		products, err := r.fetchProducts(ctx, summaries[i].ID)
		if err != nil {
			return nil, err
		}
		summaries[i].Products = products
	}
	return summaries, nil
}

// SummaryByStartDate implements storage.Repository.
func (r *Repository) SummaryByStartDate(ctx context.Context, start string) (*storage.StoredSummary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, start_date, end_date, source,
		       total_revenue, total_units, total_sessions,
		       conversion_rate, refund_rate, created_at
		FROM summaries
		WHERE start_date = $1
		ORDER BY id DESC
		LIMIT 1`, start)
	if err != nil {
		return nil, fmt.Errorf("query summary: %w", err)
	}
	summaries, err := scanSummaries(rows)
	if err != nil {
		return nil, err
	}
	if len(summaries) == 0 {
		return nil, storage.ErrNotFound
	}
	s := summaries[0]
	if s.Products, err = r.fetchProducts(ctx, s.ID); err != nil {
		return nil, err
	}
	return &s, nil
}

func scanSummaries(rows pgx.Rows) ([]storage.StoredSummary, error) {
	defer rows.Close()
	var out []storage.StoredSummary
	for rows.Next() {
		var s storage.StoredSummary
		if err := rows.Scan(
			&s.ID, &s.Start, &s.End, &s.Source,
			&s.TotalRevenue, &s.TotalUnits, &s.TotalSessions,
			&s.ConversionRate, &s.RefundRate, &s.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repository) fetchProducts(ctx context.Context, summaryID int64) ([]storage.StoredProduct, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT asin, title, revenue, units, sessions,
		       conversion_rate, refunds, buy_box_percentage
		FROM products
		WHERE summary_id = $1
		ORDER BY revenue DESC`, summaryID)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []storage.StoredProduct
	for rows.Next() {
		var p storage.StoredProduct
		if err := rows.Scan(
			&p.ASIN, &p.Title, &p.Revenue, &p.Units, &p.Sessions,
			&p.ConversionRate, &p.Refunds, &p.BuyBoxPercentage,
		); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// SaveUpload implements storage.Repository.
func (r *Repository) SaveUpload(ctx context.Context, filename string, headers []string, rows [][]string) (*storage.StoredUpload, error) {
	headersJSON, err := json.Marshal(headers)
	if err != nil {
		return nil, fmt.Errorf("encode headers: %w", err)
	}
	rowsJSON, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("encode rows: %w", err)
	}

	upload := &storage.StoredUpload{
		ID:          uuid.NewString(),
		Filename:    filename,
		Headers:     headers,
		Rows:        rows,
		RowCount:    len(rows),
		ColumnCount: len(headers),
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO uploads (
			id, filename, headers_json, rows_json,
			row_count, column_count, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		upload.ID, upload.Filename, headersJSON, rowsJSON,
		upload.RowCount, upload.ColumnCount, upload.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert upload: %w", err)
	}
	return upload, nil
}

// Upload implements storage.Repository.
func (r *Repository) Upload(ctx context.Context, id string) (*storage.StoredUpload, error) {
	var u storage.StoredUpload
	var headersJSON, rowsJSON []byte
	err := r.pool.QueryRow(ctx, `
		SELECT id, filename, headers_json, rows_json,
		       row_count, column_count, created_at
		FROM uploads
		WHERE id = $1`, id,
	).Scan(&u.ID, &u.Filename, &headersJSON, &rowsJSON, &u.RowCount, &u.ColumnCount, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query upload: %w", err)
	}
	if err := json.Unmarshal(headersJSON, &u.Headers); err != nil {
		return nil, fmt.Errorf("decode headers: %w", err)
	}
	if err := json.Unmarshal(rowsJSON, &u.Rows); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	return &u, nil
}

// RecentUploads implements storage.Repository.
func (r *Repository) RecentUploads(ctx context.Context, limit int) ([]storage.UploadInfo, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, filename, row_count, column_count, created_at
		FROM uploads
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query uploads: %w", err)
	}
	defer rows.Close()

	var infos []storage.UploadInfo
	for rows.Next() {
		var info storage.UploadInfo
		if err := rows.Scan(&info.ID, &info.Filename, &info.RowCount, &info.ColumnCount, &info.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan upload: %w", err)
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// DeleteUpload implements storage.Repository.
func (r *Repository) DeleteUpload(ctx context.Context, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM uploads WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete upload: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

var _ storage.Repository = (*Repository)(nil)
