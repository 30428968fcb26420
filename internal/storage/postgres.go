package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/harvestlink/bid-engine/pkg/types"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

const pqUniqueViolation = "23505"

// PostgresStorage implements Storage using PostgreSQL.
type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ Storage = (*PostgresStorage)(nil)

// PostgresConfig holds PostgreSQL configuration.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	Logger   *zap.Logger
}

// NewPostgresStorage opens and pings a PostgreSQL connection pool.
func NewPostgresStorage(cfg *PostgresConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = db.Ping()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	cfg.Logger.Info("postgres-storage-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return NewPostgresStorageFromDB(db, cfg.Logger), nil
}

// NewPostgresStorageFromDB wraps an existing connection pool.
func NewPostgresStorageFromDB(db *sql.DB, logger *zap.Logger) *PostgresStorage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresStorage{db: db, logger: logger}
}

const selectBidColumns = `id, product_id, bidder_id, amount, status, rejection_reason, created_at, updated_at`

const insertBidQuery = `
	INSERT INTO bids (
		id, product_id, bidder_id, amount, status, rejection_reason, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBid(row rowScanner) (*types.Bid, error) {
	var (
		b      types.Bid
		status string
		reason sql.NullString
	)
	err := row.Scan(&b.ID, &b.LotID, &b.BidderID, &b.Amount, &status, &reason, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	b.Status = types.BidStatus(status)
	b.RejectionReason = reason.String
	return &b, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

// GetLot reads a lot from the products table.
func (p *PostgresStorage) GetLot(ctx context.Context, lotID string) (*types.Lot, error) {
	query := `SELECT id, owner_id, title, base_price, quantity FROM products WHERE id = $1`

	var lot types.Lot
	err := p.db.QueryRowContext(ctx, query, lotID).
		Scan(&lot.ID, &lot.OwnerID, &lot.Title, &lot.BasePrice, &lot.Quantity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("lot %s: %w", lotID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query lot: %w", err)
	}
	return &lot, nil
}

// GetAccountCreatedAt reads the bidder's profile creation time.
func (p *PostgresStorage) GetAccountCreatedAt(ctx context.Context, bidderID string) (time.Time, error) {
	query := `SELECT created_at FROM profiles WHERE id = $1`

	var createdAt time.Time
	err := p.db.QueryRowContext(ctx, query, bidderID).Scan(&createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, fmt.Errorf("profile %s: %w", bidderID, ErrNotFound)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("query profile: %w", err)
	}
	return createdAt, nil
}

// GetHighestAccepted returns the lot's accepted bid, or nil.
func (p *PostgresStorage) GetHighestAccepted(ctx context.Context, lotID string) (*types.Bid, error) {
	query := `SELECT ` + selectBidColumns + `
		FROM bids
		WHERE product_id = $1 AND status = $2
		ORDER BY amount DESC
		LIMIT 1`

	bid, err := scanBid(p.db.QueryRowContext(ctx, query, lotID, string(types.BidStatusAccepted)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query highest accepted bid: %w", err)
	}
	return bid, nil
}

// InsertBid appends a bid row.
func (p *PostgresStorage) InsertBid(ctx context.Context, bid *types.Bid) error {
	_, err := p.db.ExecContext(ctx, insertBidQuery,
		bid.ID,
		bid.LotID,
		bid.BidderID,
		bid.Amount,
		string(bid.Status),
		nullString(bid.RejectionReason),
		bid.CreatedAt,
		bid.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("insert bid %s: %w", bid.ID, ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert bid: %w", err)
	}

	p.logger.Debug("bid-stored",
		zap.String("bid-id", bid.ID),
		zap.String("lot-id", bid.LotID),
		zap.String("status", string(bid.Status)))

	return nil
}

// UpdateBidStatus is a conditional update on the bid's current status.
func (p *PostgresStorage) UpdateBidStatus(ctx context.Context, bidID string, expected, next types.BidStatus, at time.Time) error {
	if !expected.CanTransitionTo(next) {
		return fmt.Errorf("bid %s cannot move from %s to %s: %w", bidID, expected, next, ErrConflict)
	}

	query := `UPDATE bids SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`

	res, err := p.db.ExecContext(ctx, query, string(next), at, bidID, string(expected))
	if isUniqueViolation(err) {
		return fmt.Errorf("update bid %s: %w", bidID, ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("update bid status: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update bid status rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("bid %s is no longer %s: %w", bidID, expected, ErrConflict)
	}
	return nil
}

// AcceptBid demotes prior and inserts bid in one transaction. A prior that is no longer
// accepted, or a concurrent accepted insert caught by bids_one_accepted_per_lot, is ErrConflict.
func (p *PostgresStorage) AcceptBid(ctx context.Context, prior *types.Bid, bid *types.Bid) (err error) {
	if bid.Status != types.BidStatusAccepted {
		return fmt.Errorf("accept bid %s: status is %s", bid.ID, bid.Status)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			rbErr := tx.Rollback()
			if rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				p.logger.Warn("rollback-failed", zap.Error(rbErr))
			}
		}
	}()

	if prior != nil {
		demote := `UPDATE bids SET status = $1, updated_at = $2
			WHERE id = $3 AND product_id = $4 AND status = $5`

		res, execErr := tx.ExecContext(ctx, demote,
			string(types.BidStatusOutbid), bid.UpdatedAt, prior.ID, bid.LotID, string(types.BidStatusAccepted))
		if execErr != nil {
			return fmt.Errorf("demote bid %s: %w", prior.ID, execErr)
		}
		n, rowsErr := res.RowsAffected()
		if rowsErr != nil {
			return fmt.Errorf("demote bid rows: %w", rowsErr)
		}
		if n == 0 {
			return fmt.Errorf("lot %s accepted bid is no longer %s: %w", bid.LotID, prior.ID, ErrConflict)
		}
	}

	_, err = tx.ExecContext(ctx, insertBidQuery,
		bid.ID,
		bid.LotID,
		bid.BidderID,
		bid.Amount,
		string(bid.Status),
		nullString(bid.RejectionReason),
		bid.CreatedAt,
		bid.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("lot %s gained an accepted bid: %w", bid.LotID, ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert accepted bid: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	p.logger.Debug("bid-committed",
		zap.String("lot-id", bid.LotID),
		zap.String("bid-id", bid.ID),
		zap.Bool("displaced", prior != nil))

	return nil
}

func (p *PostgresStorage) queryBids(ctx context.Context, query string, args ...interface{}) ([]*types.Bid, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bids: %w", err)
	}
	defer rows.Close()

	bids := make([]*types.Bid, 0)
	for rows.Next() {
		bid, scanErr := scanBid(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan bid: %w", scanErr)
		}
		bids = append(bids, bid)
	}
	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate bids: %w", err)
	}
	return bids, nil
}

// GetRecentBids returns the bidder's newest bids.
func (p *PostgresStorage) GetRecentBids(ctx context.Context, bidderID string, limit int) ([]*types.Bid, error) {
	query := `SELECT ` + selectBidColumns + `
		FROM bids WHERE bidder_id = $1
		ORDER BY created_at DESC
		LIMIT $2`
	return p.queryBids(ctx, query, bidderID, limit)
}

// GetRecentBidsOnLot returns the bidder's newest bids on one lot.
func (p *PostgresStorage) GetRecentBidsOnLot(ctx context.Context, bidderID string, lotID string, limit int) ([]*types.Bid, error) {
	query := `SELECT ` + selectBidColumns + `
		FROM bids WHERE bidder_id = $1 AND product_id = $2
		ORDER BY created_at DESC
		LIMIT $3`
	return p.queryBids(ctx, query, bidderID, lotID, limit)
}

// ListLotBids returns every bid on the lot, newest first.
func (p *PostgresStorage) ListLotBids(ctx context.Context, lotID string) ([]*types.Bid, error) {
	query := `SELECT ` + selectBidColumns + `
		FROM bids WHERE product_id = $1
		ORDER BY created_at DESC`
	return p.queryBids(ctx, query, lotID)
}

// ListBidderBids returns every bid by the bidder, newest first.
func (p *PostgresStorage) ListBidderBids(ctx context.Context, bidderID string) ([]*types.Bid, error) {
	query := `SELECT ` + selectBidColumns + `
		FROM bids WHERE bidder_id = $1
		ORDER BY created_at DESC`
	return p.queryBids(ctx, query, bidderID)
}

// SaveNotification inserts a notification row.
func (p *PostgresStorage) SaveNotification(ctx context.Context, n *types.Notification) error {
	query := `
		INSERT INTO notifications (id, user_id, type, title, message, reference_id, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := p.db.ExecContext(ctx, query,
		n.ID, n.UserID, string(n.Kind), n.Title, n.Message, nullString(n.ReferenceID), n.Read, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// ListNotifications returns the user's newest notifications.
func (p *PostgresStorage) ListNotifications(ctx context.Context, userID string, limit int) ([]*types.Notification, error) {
	query := `SELECT id, user_id, type, title, message, reference_id, read, created_at
		FROM notifications WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := p.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	out := make([]*types.Notification, 0)
	for rows.Next() {
		var (
			n    types.Notification
			kind string
			ref  sql.NullString
		)
		err = rows.Scan(&n.ID, &n.UserID, &kind, &n.Title, &n.Message, &ref, &n.Read, &n.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Kind = types.NotificationKind(kind)
		n.ReferenceID = ref.String
		out = append(out, &n)
	}
	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return out, nil
}

// MarkNotificationsRead marks all of the user's notifications read.
func (p *PostgresStorage) MarkNotificationsRead(ctx context.Context, userID string) (int, error) {
	query := `UPDATE notifications SET read = TRUE WHERE user_id = $1 AND read = FALSE`

	res, err := p.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("mark notifications read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark notifications read rows: %w", err)
	}
	return int(n), nil
}

// CountUnread counts the user's unread notifications.
func (p *PostgresStorage) CountUnread(ctx context.Context, userID string) (int, error) {
	query := `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read = FALSE`

	var count int
	err := p.db.QueryRowContext(ctx, query, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// Ping checks the database connection.
func (p *PostgresStorage) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the database connection.
func (p *PostgresStorage) Close() error {
	p.logger.Info("closing-postgres-storage")
	return p.db.Close()
}
