// internal/repository/postgres/earning_repo.go
package postgres

import (
	"context"
	"fmt"

	"fanpay-service/internal/domain/earning"

	"github.com/jackc/pgx/v5/pgxpool"
)

type EarningRepository struct {
	db *pgxpool.Pool
}

func NewEarningRepository(db *pgxpool.Pool) *EarningRepository {
	return &EarningRepository{db: db}
}

func (r *EarningRepository) Create(ctx context.Context, e *earning.Earning) error {
	query := `
		INSERT INTO earnings (id, transaction_id, performer_id, user_id, gross_price, commission, net_price, type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`

	err := r.db.QueryRow(
		ctx, query,
		e.ID, e.TransactionID, e.PerformerID, e.UserID,
		e.GrossPrice, e.Commission, e.NetPrice, e.Type,
	).Scan(&e.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create earning: %w", err)
	}

	return nil
}

// ExistsForTransaction guards against double allocation on event replay.
func (r *EarningRepository) ExistsForTransaction(ctx context.Context, transactionID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM earnings WHERE transaction_id = $1)`, transactionID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check earning existence: %w", err)
	}
	return exists, nil
}
