package account

import (
	"time"

	"github.com/google/uuid"
)

// Account is a connected Instagram professional account. The credential is
// opaque ciphertext; only the vault can decrypt it.
type Account struct {
	ID                  uuid.UUID  `json:"id"`
	UserID              uuid.UUID  `json:"user_id"`
	ExternalAccountID   string     `json:"external_account_id"`
	Username            string     `json:"username,omitempty"`
	EncryptedCredential string     `json:"-"`
	CredentialExpiry    *time.Time `json:"credential_expiry,omitempty"`
	Active              bool       `json:"active"`
	ConnectedAt         time.Time  `json:"connected_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}
