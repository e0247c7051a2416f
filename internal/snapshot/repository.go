package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mtlprog/suihistory/internal/domain"
)

// ErrNotFound indicates that the requested snapshot was not found.
var ErrNotFound = errors.New("snapshot not found")

// Snapshot is a stored history of one tracked account, taken once per day and timeframe.
type Snapshot struct {
	ID           int              `json:"id"`
	AccountID    int              `json:"accountId"`
	Address      string           `json:"address"`
	Timeframe    domain.Timeframe `json:"timeframe"`
	SnapshotDate time.Time        `json:"snapshotDate"`
	Data         json.RawMessage  `json:"data"`
	CreatedAt    time.Time        `json:"createdAt"`
}

// Repository defines persistent storage for snapshots.
type Repository interface {
	Save(ctx context.Context, accountID int, tf domain.Timeframe, date time.Time, data json.RawMessage) error
	GetLatest(ctx context.Context, address string, tf domain.Timeframe) (*Snapshot, error)
	GetByDate(ctx context.Context, address string, tf domain.Timeframe, date time.Time) (*Snapshot, error)
	List(ctx context.Context, address string, tf domain.Timeframe, limit int) ([]Snapshot, error)
	GetAccountID(ctx context.Context, address string) (int, error)
	EnsureAccount(ctx context.Context, address, label string) (int, error)
	ListAccounts(ctx context.Context) ([]string, error)
}

// PgRepository implements Repository with PostgreSQL.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewPgRepository creates a new PostgreSQL snapshot repository.
func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const selectSnapshot = `SELECT s.id, s.account_id, a.address, s.timeframe, s.snapshot_date, s.data, s.created_at
	FROM history_snapshots s
	JOIN tracked_accounts a ON a.id = s.account_id`

func scanSnapshot(row pgx.Row) (*Snapshot, error) {
	var s Snapshot
	var tf string
	if err := row.Scan(&s.ID, &s.AccountID, &s.Address, &tf, &s.SnapshotDate, &s.Data, &s.CreatedAt); err != nil {
		return nil, err
	}
	s.Timeframe = domain.Timeframe(tf)
	return &s, nil
}

func (r *PgRepository) Save(ctx context.Context, accountID int, tf domain.Timeframe, date time.Time, data json.RawMessage) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO history_snapshots (account_id, timeframe, snapshot_date, data)
		 VALUES ($1, $2, $3, $4::jsonb)
		 ON CONFLICT (account_id, timeframe, snapshot_date)
		 DO UPDATE SET data = $4::jsonb`,
		accountID, string(tf), date, data)
	if err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}
	return nil
}

func (r *PgRepository) GetLatest(ctx context.Context, address string, tf domain.Timeframe) (*Snapshot, error) {
	s, err := scanSnapshot(r.pool.QueryRow(ctx,
		selectSnapshot+`
		 WHERE a.address = $1 AND s.timeframe = $2
		 ORDER BY s.snapshot_date DESC
		 LIMIT 1`, address, string(tf)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting latest snapshot: %w", err)
	}
	return s, nil
}

func (r *PgRepository) GetByDate(ctx context.Context, address string, tf domain.Timeframe, date time.Time) (*Snapshot, error) {
	s, err := scanSnapshot(r.pool.QueryRow(ctx,
		selectSnapshot+`
		 WHERE a.address = $1 AND s.timeframe = $2 AND s.snapshot_date = $3`,
		address, string(tf), date))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting snapshot by date: %w", err)
	}
	return s, nil
}

func (r *PgRepository) List(ctx context.Context, address string, tf domain.Timeframe, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = 30
	}

	rows, err := r.pool.Query(ctx,
		selectSnapshot+`
		 WHERE a.address = $1 AND s.timeframe = $2
		 ORDER BY s.snapshot_date DESC
		 LIMIT $3`, address, string(tf), limit)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []Snapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning snapshot: %w", err)
		}
		snapshots = append(snapshots, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating snapshots: %w", err)
	}
	return snapshots, nil
}

func (r *PgRepository) GetAccountID(ctx context.Context, address string) (int, error) {
	var id int
	err := r.pool.QueryRow(ctx,
		`SELECT id FROM tracked_accounts WHERE address = $1`, address).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("getting account ID for %s: %w", address, err)
	}
	return id, nil
}

func (r *PgRepository) EnsureAccount(ctx context.Context, address, label string) (int, error) {
	var id int
	err := r.pool.QueryRow(ctx,
		`INSERT INTO tracked_accounts (address, label)
		 VALUES ($1, $2)
		 ON CONFLICT (address) DO UPDATE SET label = $2
		 RETURNING id`,
		address, label).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("ensuring account %s: %w", address, err)
	}
	return id, nil
}

func (r *PgRepository) ListAccounts(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT address FROM tracked_accounts ORDER BY address`)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}
