package services

import (
	"context"
	"strings"
	"time"

	"instapilot/internal/domain/account"
	"instapilot/internal/repository"
	"instapilot/internal/vault"
	pilot_errors "instapilot/pkg/errors"

	"github.com/google/uuid"
)

type AccountService struct {
	accounts repository.AccountRepository
	vault    *vault.Vault
}

func NewAccountService(accounts repository.AccountRepository, v *vault.Vault) *AccountService {
	return &AccountService{accounts: accounts, vault: v}
}

type ConnectAccountInput struct {
	UserID            uuid.UUID
	ExternalAccountID string
	Username          string
	AccessToken       string
	TokenExpiresIn    time.Duration // zero means unknown
}

// Connect stores a newly authorized account. The access token is encrypted
// before it touches the database and is never returned to the caller.
func (s *AccountService) Connect(ctx context.Context, in ConnectAccountInput) (account.Account, error) {
	if strings.TrimSpace(in.ExternalAccountID) == "" || strings.TrimSpace(in.AccessToken) == "" {
		return account.Account{}, pilot_errors.ErrInvalidInput
	}

	encrypted, err := s.vault.Encrypt(in.AccessToken)
	if err != nil {
		return account.Account{}, err
	}

	now := time.Now().UTC()
	acct := account.Account{
		ID:                  uuid.New(),
		UserID:              in.UserID,
		ExternalAccountID:   in.ExternalAccountID,
		Username:            in.Username,
		EncryptedCredential: encrypted,
		Active:              true,
		ConnectedAt:         now,
		UpdatedAt:           now,
	}
	if in.TokenExpiresIn > 0 {
		expiry := now.Add(in.TokenExpiresIn)
		acct.CredentialExpiry = &expiry
	}

	if err := s.accounts.Create(ctx, &acct); err != nil {
		return account.Account{}, err
	}
	return acct, nil
}

func (s *AccountService) List(ctx context.Context, userID uuid.UUID) ([]account.Account, error) {
	return s.accounts.ListByUser(ctx, userID)
}

func (s *AccountService) Get(ctx context.Context, userID, accountID uuid.UUID) (account.Account, error) {
	acct, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return account.Account{}, err
	}
	if acct.UserID != userID {
		return account.Account{}, pilot_errors.ErrNotFound
	}
	return acct, nil
}

// Disconnect deactivates the account. Queued tasks referencing it are skipped
// at execution; the row and its audit history are kept.
func (s *AccountService) Disconnect(ctx context.Context, userID, accountID uuid.UUID) error {
	acct, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	if acct.UserID != userID {
		return pilot_errors.ErrNotFound
	}
	return s.accounts.SetActive(ctx, accountID, false)
}
