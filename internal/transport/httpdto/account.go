package httpdto

import (
	"time"

	"instapilot/internal/domain/account"
)

type ConnectAccountRequest struct {
	ExternalAccountID string `json:"external_account_id" binding:"required"`
	Username          string `json:"username"`
	AccessToken       string `json:"access_token" binding:"required"`
	ExpiresIn         int64  `json:"expires_in"` // seconds, optional
}

type AccountResponse struct {
	ID                string     `json:"id"`
	ExternalAccountID string     `json:"external_account_id"`
	Username          string     `json:"username,omitempty"`
	Active            bool       `json:"active"`
	CredentialExpiry  *time.Time `json:"credential_expiry,omitempty"`
	ConnectedAt       time.Time  `json:"connected_at"`
}

func NewAccountResponse(a account.Account) AccountResponse {
	return AccountResponse{
		ID:                a.ID.String(),
		ExternalAccountID: a.ExternalAccountID,
		Username:          a.Username,
		Active:            a.Active,
		CredentialExpiry:  a.CredentialExpiry,
		ConnectedAt:       a.ConnectedAt,
	}
}

func NewAccountListResponse(accounts []account.Account) []AccountResponse {
	out := make([]AccountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, NewAccountResponse(a))
	}
	return out
}
