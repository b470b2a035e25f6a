// internal/repository/postgres/transaction_repo.go
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"fanpay-service/internal/domain/transaction"
	xerrors "fanpay-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TransactionRepository struct {
	db *pgxpool.Pool
}

func NewTransactionRepository(db *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{db: db}
}

const transactionColumns = `
	id, source, source_id, target, target_id, performer_id,
	type, payment_gateway,
	original_price, total_price, products, coupon_info,
	status, payment_response_info,
	invoice_id, stripe_client_secret, subscription_id,
	created_at, updated_at
`

// Create inserts a transaction. Rows are append-only; callers never delete.
func (r *TransactionRepository) Create(ctx context.Context, txn *transaction.Transaction) error {
	query := `
		INSERT INTO transactions (
			id, source, source_id, target, target_id, performer_id,
			type, payment_gateway,
			original_price, total_price, products, coupon_info,
			status, payment_response_info,
			invoice_id, stripe_client_secret, subscription_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING created_at, updated_at
	`

	productsJSON, err := json.Marshal(txn.Products)
	if err != nil {
		return fmt.Errorf("failed to marshal products: %w", err)
	}

	var couponJSON []byte
	if txn.CouponInfo != nil {
		couponJSON, err = json.Marshal(txn.CouponInfo)
		if err != nil {
			return fmt.Errorf("failed to marshal coupon info: %w", err)
		}
	}

	var responseJSON []byte
	if txn.PaymentResponseInfo != nil {
		responseJSON, err = json.Marshal(txn.PaymentResponseInfo)
		if err != nil {
			return fmt.Errorf("failed to marshal payment response: %w", err)
		}
	}

	err = r.db.QueryRow(
		ctx, query,
		txn.ID, txn.Source, txn.SourceID, txn.Target, txn.TargetID, txn.PerformerID,
		txn.Type, txn.PaymentGateway,
		txn.OriginalPrice, txn.TotalPrice, productsJSON, couponJSON,
		txn.Status, responseJSON,
		txn.InvoiceID, txn.StripeClientSecret, txn.SubscriptionID,
	).Scan(&txn.CreatedAt, &txn.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	return nil
}

// FindByID retrieves a transaction by its id.
func (r *TransactionRepository) FindByID(ctx context.Context, id string) (*transaction.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

// FindByInvoiceID retrieves a transaction by the gateway invoice correlation key.
func (r *TransactionRepository) FindByInvoiceID(ctx context.Context, invoiceID string) (*transaction.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE invoice_id = $1 ORDER BY created_at DESC LIMIT 1`
	return r.scanOne(r.db.QueryRow(ctx, query, invoiceID))
}

// Update persists the mutable fields of a transaction and bumps updated_at.
func (r *TransactionRepository) Update(ctx context.Context, txn *transaction.Transaction) error {
	query := `
		UPDATE transactions
		SET status = $2,
		    payment_response_info = $3,
		    invoice_id = $4,
		    stripe_client_secret = $5,
		    subscription_id = $6,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	var responseJSON []byte
	var err error
	if txn.PaymentResponseInfo != nil {
		responseJSON, err = json.Marshal(txn.PaymentResponseInfo)
		if err != nil {
			return fmt.Errorf("failed to marshal payment response: %w", err)
		}
	}

	err = r.db.QueryRow(
		ctx, query,
		txn.ID, txn.Status, responseJSON,
		txn.InvoiceID, txn.StripeClientSecret, txn.SubscriptionID,
	).Scan(&txn.UpdatedAt)

	if err == pgx.ErrNoRows {
		return xerrors.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}

	return nil
}

// Search returns a page of transactions with joined display names.
func (r *TransactionRepository) Search(ctx context.Context, filters *transaction.SearchFilters) (*transaction.SearchResult, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	argPos := 1

	addCondition := func(clause, value string) {
		conditions = append(conditions, fmt.Sprintf(clause, argPos))
		args = append(args, value)
		argPos++
	}

	if filters.SourceID != "" {
		addCondition("t.source_id = $%d", filters.SourceID)
	}
	if filters.PerformerID != "" {
		addCondition("t.performer_id = $%d", filters.PerformerID)
	}
	if filters.Type != "" {
		addCondition("t.type = $%d", filters.Type)
	}
	if filters.Status != "" {
		addCondition("t.status = $%d", filters.Status)
	}
	if filters.Gateway != "" {
		addCondition("t.payment_gateway = $%d", filters.Gateway)
	}

	where := strings.Join(conditions, " AND ")

	countQuery := `SELECT COUNT(*) FROM transactions t WHERE ` + where
	var total int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count transactions: %w", err)
	}

	page := filters.Page
	if page < 1 {
		page = 1
	}
	limit := filters.Limit
	if limit < 1 || limit > 100 {
		limit = 20
	}

	query := fmt.Sprintf(`
		SELECT t.id, t.source, t.source_id, t.target, t.target_id, t.performer_id,
		       t.type, t.payment_gateway,
		       t.original_price, t.total_price, t.products, t.coupon_info,
		       t.status, t.payment_response_info,
		       t.invoice_id, t.stripe_client_secret, t.subscription_id,
		       t.created_at, t.updated_at,
		       COALESCE(u.name, ''), COALESCE(p.name, '')
		FROM transactions t
		LEFT JOIN users u ON u.id = t.source_id
		LEFT JOIN performers p ON p.id = t.performer_id
		WHERE %s
		ORDER BY t.created_at DESC
		LIMIT $%d OFFSET $%d
	`, where, argPos, argPos+1)
	args = append(args, limit, (page-1)*limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search transactions: %w", err)
	}
	defer rows.Close()

	result := &transaction.SearchResult{
		Data:  []transaction.SearchRow{},
		Total: total,
		Page:  page,
		Limit: limit,
	}

	for rows.Next() {
		var row transaction.SearchRow
		var productsJSON, couponJSON, responseJSON []byte

		err := rows.Scan(
			&row.ID, &row.Source, &row.SourceID, &row.Target, &row.TargetID, &row.PerformerID,
			&row.Type, &row.PaymentGateway,
			&row.OriginalPrice, &row.TotalPrice, &productsJSON, &couponJSON,
			&row.Status, &responseJSON,
			&row.InvoiceID, &row.StripeClientSecret, &row.SubscriptionID,
			&row.CreatedAt, &row.UpdatedAt,
			&row.SourceName, &row.PerformerName,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction row: %w", err)
		}

		unmarshalTransactionJSON(&row.Transaction, productsJSON, couponJSON, responseJSON)
		result.Data = append(result.Data, row)
	}

	return result, nil
}

// FindByQuery is the raw-condition escape hatch used by other modules.
func (r *TransactionRepository) FindByQuery(ctx context.Context, q *transaction.Query) ([]*transaction.Transaction, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	argPos := 1

	add := func(clause string, value interface{}) {
		conditions = append(conditions, fmt.Sprintf(clause, argPos))
		args = append(args, value)
		argPos++
	}

	if q.SourceID != "" {
		add("source_id = $%d", q.SourceID)
	}
	if q.TargetID != "" {
		add("target_id = $%d", q.TargetID)
	}
	if q.Type != "" {
		add("type = $%d", q.Type)
	}
	if q.Status != "" {
		add("status = $%d", q.Status)
	}
	if q.CouponCode != "" {
		add("coupon_info->>'code' = $%d", q.CouponCode)
	}
	if !q.Since.IsZero() {
		add("created_at >= $%d", q.Since)
	}

	limit := q.Limit
	if limit < 1 || limit > 500 {
		limit = 100
	}

	query := fmt.Sprintf(
		`SELECT `+transactionColumns+` FROM transactions WHERE %s ORDER BY created_at DESC LIMIT %d`,
		strings.Join(conditions, " AND "), limit,
	)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txns []*transaction.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}

	return txns, nil
}

func (r *TransactionRepository) scanOne(row pgx.Row) (*transaction.Transaction, error) {
	txn, err := scanTransaction(row)
	if err == pgx.ErrNoRows {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find transaction: %w", err)
	}
	return txn, nil
}

func scanTransaction(row pgx.Row) (*transaction.Transaction, error) {
	var txn transaction.Transaction
	var productsJSON, couponJSON, responseJSON []byte

	err := row.Scan(
		&txn.ID, &txn.Source, &txn.SourceID, &txn.Target, &txn.TargetID, &txn.PerformerID,
		&txn.Type, &txn.PaymentGateway,
		&txn.OriginalPrice, &txn.TotalPrice, &productsJSON, &couponJSON,
		&txn.Status, &responseJSON,
		&txn.InvoiceID, &txn.StripeClientSecret, &txn.SubscriptionID,
		&txn.CreatedAt, &txn.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	unmarshalTransactionJSON(&txn, productsJSON, couponJSON, responseJSON)
	return &txn, nil
}

func unmarshalTransactionJSON(txn *transaction.Transaction, productsJSON, couponJSON, responseJSON []byte) {
	if len(productsJSON) > 0 {
		json.Unmarshal(productsJSON, &txn.Products)
	}
	if len(couponJSON) > 0 {
		json.Unmarshal(couponJSON, &txn.CouponInfo)
	}
	if len(responseJSON) > 0 {
		json.Unmarshal(responseJSON, &txn.PaymentResponseInfo)
	}
}
