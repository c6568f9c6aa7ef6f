package repository

import (
	"context"
	"errors"
	"time"

	"instapilot/internal/domain/account"
	pilot_errors "instapilot/pkg/errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type accountRepository struct {
	db DBTX
}

func NewAccountRepository(db DBTX) AccountRepository {
	return &accountRepository{db: db}
}

const accountColumns = `id, user_id, external_account_id, username, encrypted_credential, credential_expiry, active, connected_at, updated_at`

func scanAccount(row pgx.Row) (account.Account, error) {
	var a account.Account
	err := row.Scan(&a.ID, &a.UserID, &a.ExternalAccountID, &a.Username,
		&a.EncryptedCredential, &a.CredentialExpiry, &a.Active, &a.ConnectedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return account.Account{}, pilot_errors.ErrNotFound
	}
	return a, err
}

func (r *accountRepository) Create(ctx context.Context, a *account.Account) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO accounts (id, user_id, external_account_id, username, encrypted_credential, credential_expiry, active, connected_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
    `, a.ID, a.UserID, a.ExternalAccountID, a.Username, a.EncryptedCredential,
		a.CredentialExpiry, a.Active, a.ConnectedAt, a.UpdatedAt)
	if isUniqueViolation(err) {
		return pilot_errors.ErrAlreadyExists
	}
	return err
}

func (r *accountRepository) GetByID(ctx context.Context, id uuid.UUID) (account.Account, error) {
	return scanAccount(r.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
}

func (r *accountRepository) GetByExternalID(ctx context.Context, externalID string) (account.Account, error) {
	return scanAccount(r.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE external_account_id = $1`, externalID))
}

func (r *accountRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]account.Account, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE user_id = $1 ORDER BY connected_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAccounts(rows)
}

func (r *accountRepository) ListExpiringBefore(ctx context.Context, cutoff time.Time) ([]account.Account, error) {
	rows, err := r.db.Query(ctx, `
        SELECT `+accountColumns+` FROM accounts
        WHERE active = TRUE AND credential_expiry IS NOT NULL AND credential_expiry <= $1
        ORDER BY credential_expiry ASC
    `, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAccounts(rows)
}

func (r *accountRepository) UpdateCredential(ctx context.Context, id uuid.UUID, encrypted string, expiry time.Time) error {
	tag, err := r.db.Exec(ctx, `
        UPDATE accounts SET encrypted_credential = $2, credential_expiry = $3, updated_at = now()
        WHERE id = $1
    `, id, encrypted, expiry)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pilot_errors.ErrNotFound
	}
	return nil
}

func (r *accountRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE accounts SET active = $2, updated_at = now() WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pilot_errors.ErrNotFound
	}
	return nil
}

func collectAccounts(rows pgx.Rows) ([]account.Account, error) {
	var accounts []account.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}
