package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/templui/bullseye/internal/model"
	"github.com/templui/bullseye/internal/storage"
)

// ArchiveService copies settlement receipts to object storage. A nil storage
// disables archiving; the database receipt stays authoritative either way.
type ArchiveService struct {
	storage storage.Storage
}

func NewArchiveService(storage storage.Storage) *ArchiveService {
	return &ArchiveService{storage: storage}
}

func (s *ArchiveService) Enabled() bool {
	return s != nil && s.storage != nil
}

func receiptKey(goalID string) string {
	return fmt.Sprintf("receipts/%s.json", goalID)
}

func (s *ArchiveService) Archive(ctx context.Context, receipt *model.SettlementReceipt) error {
	if !s.Enabled() {
		return nil
	}

	body, err := json.MarshalIndent(receipt, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode receipt: %w", err)
	}
	return s.storage.Save(ctx, receiptKey(receipt.GoalID), bytes.NewReader(body), "application/json")
}

// ReceiptURL returns a temporary download link for an archived receipt, or ""
// when archiving is disabled.
func (s *ArchiveService) ReceiptURL(ctx context.Context, goalID string) (string, error) {
	if !s.Enabled() {
		return "", nil
	}
	return s.storage.PresignedURL(ctx, receiptKey(goalID), 15*time.Minute)
}
