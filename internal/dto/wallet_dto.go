package dto

import (
	"time"

	"github.com/noah-isme/campus-coin-api/internal/models"
)

// WalletResponse exposes the public face of a wallet. The private key never
// leaves the database layer.
type WalletResponse struct {
	UserID    uint      `json:"user_id"`
	Address   string    `json:"address"`
	Balance   float64   `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
}

// NewWalletResponse converts a model into a DTO.
func NewWalletResponse(wallet models.Wallet) WalletResponse {
	return WalletResponse{
		UserID:    wallet.UserID,
		Address:   wallet.Address,
		Balance:   wallet.Balance,
		CreatedAt: wallet.CreatedAt,
	}
}

// ConvertCoinRequest exchanges wallet coins for training points.
type ConvertCoinRequest struct {
	Amount int `json:"amount" validate:"required,gt=0"`
}

// ConvertCoinResponse reports the wallet state after a conversion.
type ConvertCoinResponse struct {
	Converted  int     `json:"converted"`
	NewBalance float64 `json:"new_balance"`
}

// TransactionLogResponse serializes one ledger entry.
type TransactionLogResponse struct {
	ID              uint                   `json:"id"`
	UserID          uint                   `json:"user_id"`
	Amount          float64                `json:"amount"`
	TransactionType string                 `json:"transaction_type"`
	Description     string                 `json:"description"`
	TxHash          string                 `json:"tx_hash,omitempty"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
}

// TransactionHistoryResponse wraps a paginated ledger listing.
type TransactionHistoryResponse struct {
	Items      []TransactionLogResponse `json:"items"`
	Pagination PaginationMeta           `json:"pagination"`
}

// NewTransactionLogResponse converts a model into a DTO.
func NewTransactionLogResponse(log models.TransactionLog) TransactionLogResponse {
	return TransactionLogResponse{
		ID:              log.ID,
		UserID:          log.UserID,
		Amount:          log.Amount,
		TransactionType: log.TransactionType,
		Description:     log.Description,
		TxHash:          log.TxHash,
		Metadata:        log.Metadata,
		CreatedAt:       log.CreatedAt,
	}
}

// NewTransactionHistoryResponse assembles the paginated history payload.
func NewTransactionHistoryResponse(logs []models.TransactionLog, page, pageSize int, total int64) TransactionHistoryResponse {
	items := make([]TransactionLogResponse, 0, len(logs))
	for _, l := range logs {
		items = append(items, NewTransactionLogResponse(l))
	}
	totalPages := 0
	if pageSize > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return TransactionHistoryResponse{
		Items: items,
		Pagination: PaginationMeta{
			Page:       page,
			PageSize:   pageSize,
			TotalItems: total,
			TotalPages: totalPages,
		},
	}
}
