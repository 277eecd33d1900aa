package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/matheusmosca/commerce-settlement/internal/domain"
	"github.com/matheusmosca/commerce-settlement/internal/repository"
)

func (s *Store) GetReceipt(ctx context.Context, tx repository.Tx, receiptID string) (*domain.PaymentReceipt, error) {
	st, unlock := s.view(tx)
	defer unlock()
	rc, ok := st.receipts[receiptID]
	if !ok {
		return nil, fmt.Errorf("receipt %s: %w", receiptID, domain.ErrReceiptNotFound)
	}
	return &rc, nil
}

func (s *Store) GetReceiptByOrder(ctx context.Context, tx repository.Tx, orderID string) (*domain.PaymentReceipt, error) {
	st, unlock := s.view(tx)
	defer unlock()
	for _, rc := range st.receipts {
		if rc.OrderID == orderID {
			return &rc, nil
		}
	}
	return nil, fmt.Errorf("receipt for order %s: %w", orderID, domain.ErrReceiptNotFound)
}

func (s *Store) UpsertReceipt(ctx context.Context, tx repository.Tx, receipt *domain.PaymentReceipt) error {
	st, unlock := s.view(tx)
	defer unlock()

	for id, rc := range st.receipts {
		if rc.OrderID != receipt.OrderID {
			continue
		}
		if rc.Status == domain.ReceiptStatusApproved {
			return fmt.Errorf("receipt for order %s already approved: %w", receipt.OrderID, domain.ErrInvalidState)
		}
		rc.ImageURL = receipt.ImageURL
		rc.ImagePublicID = receipt.ImagePublicID
		rc.BuyerNote = receipt.BuyerNote
		rc.StaffNote = ""
		rc.Status = domain.ReceiptStatusPending
		rc.ReviewedBy = nil
		rc.ReviewedAt = nil
		rc.UpdatedAt = time.Now().UTC()
		st.receipts[id] = rc
		*receipt = rc
		return nil
	}

	receipt.Status = domain.ReceiptStatusPending
	receipt.StaffNote = ""
	st.receipts[receipt.ID] = *receipt
	return nil
}

func (s *Store) TransitionReceipt(ctx context.Context, tx repository.Tx, receiptID string, from, to domain.ReceiptStatus, staffNote string, reviewerID string) (bool, error) {
	st, unlock := s.view(tx)
	defer unlock()
	rc, ok := st.receipts[receiptID]
	if !ok || rc.Status != from {
		return false, nil
	}
	now := time.Now().UTC()
	rc.Status = to
	rc.StaffNote = staffNote
	if reviewerID != "" {
		rc.ReviewedBy = &reviewerID
	} else {
		rc.ReviewedBy = nil
	}
	rc.ReviewedAt = &now
	rc.UpdatedAt = now
	st.receipts[receiptID] = rc
	return true, nil
}

func (s *Store) ListReceipts(ctx context.Context, status domain.ReceiptStatus, limit, offset int) ([]domain.PaymentReceipt, error) {
	st, unlock := s.view(nil)
	defer unlock()

	var out []domain.PaymentReceipt
	for _, rc := range st.receipts {
		if status != "" && rc.Status != status {
			continue
		}
		out = append(out, rc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })

	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit <= 0 {
		limit = 50
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
