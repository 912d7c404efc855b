package accounts

import "github.com/ksred/klear-trading/internal/types"

// OpenAccountRequest is the body of POST /accounts
type OpenAccountRequest struct {
	AccountName    string  `json:"accountName" binding:"required"`
	BrokerName     string  `json:"brokerName"`
	InitialDeposit float64 `json:"initialDeposit"`
}

// UpdateAccountRequest patches descriptive fields and status. Cash fields
// only move through order settlement.
type UpdateAccountRequest struct {
	AccountName *string              `json:"accountName"`
	BrokerName  *string              `json:"brokerName"`
	Status      *types.AccountStatus `json:"status"`
}
