// internal/service/payment/search.go
package payment

import (
	"context"

	"fanpay-service/internal/domain/transaction"
)

// FindTransaction returns a single transaction by id.
func (s *Service) FindTransaction(ctx context.Context, id string) (*transaction.Transaction, error) {
	return s.txns.FindByID(ctx, id)
}

// SearchUserTransactions lists the caller's own payment history. The source
// filter is forced server-side so a crafted filter can never widen it.
func (s *Service) SearchUserTransactions(ctx context.Context, userID string, filters *transaction.SearchFilters) (*transaction.SearchResult, error) {
	if filters == nil {
		filters = &transaction.SearchFilters{}
	}
	filters.SourceID = userID
	return s.txns.Search(ctx, filters)
}

// SearchTransactions is the unscoped admin listing.
func (s *Service) SearchTransactions(ctx context.Context, filters *transaction.SearchFilters) (*transaction.SearchResult, error) {
	if filters == nil {
		filters = &transaction.SearchFilters{}
	}
	return s.txns.Search(ctx, filters)
}
