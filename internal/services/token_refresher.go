package services

import (
	"context"
	"time"

	"instapilot/internal/domain/actionlog"
	"instapilot/internal/instagram"
	"instapilot/internal/repository"
	"instapilot/internal/vault"
	"instapilot/pkg/logger"

	"github.com/google/uuid"
)

// TokenRefresher keeps long-lived access tokens alive. Once a day it finds
// accounts whose credential expires within the refresh horizon, exchanges the
// token upstream, and stores the re-encrypted replacement. Each refresh is
// recorded in the audit log.
type TokenRefresher struct {
	accounts repository.AccountRepository
	logs     repository.ActionLogRepository
	vault    *vault.Vault
	graph    instagram.Client
	interval time.Duration
	horizon  time.Duration
	log      *logger.Logger
}

func NewTokenRefresher(
	accounts repository.AccountRepository,
	logs repository.ActionLogRepository,
	v *vault.Vault,
	graph instagram.Client,
	log *logger.Logger,
) *TokenRefresher {
	return &TokenRefresher{
		accounts: accounts,
		logs:     logs,
		vault:    v,
		graph:    graph,
		interval: 24 * time.Hour,
		horizon:  7 * 24 * time.Hour,
		log:      log,
	}
}

// Run refreshes once immediately, then on each tick until the context is
// canceled.
func (r *TokenRefresher) Run(ctx context.Context) {
	r.RefreshExpiring(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RefreshExpiring(ctx)
		}
	}
}

// RefreshExpiring runs one refresh sweep. Failures are per-account; one bad
// token does not stop the sweep.
func (r *TokenRefresher) RefreshExpiring(ctx context.Context) {
	cutoff := time.Now().Add(r.horizon)
	accounts, err := r.accounts.ListExpiringBefore(ctx, cutoff)
	if err != nil {
		r.log.Errorf("listing accounts for token refresh: %v", err)
		return
	}
	if len(accounts) == 0 {
		return
	}

	r.log.Infof("refreshing tokens for %d account(s)", len(accounts))
	for _, acct := range accounts {
		if err := r.refreshOne(ctx, acct.ID); err != nil {
			r.log.Errorf("refreshing token for account %s: %v", acct.ID, err)
		}
	}
}

func (r *TokenRefresher) refreshOne(ctx context.Context, accountID uuid.UUID) error {
	acct, err := r.accounts.GetByID(ctx, accountID)
	if err != nil {
		return err
	}

	token, err := r.vault.Decrypt(acct.EncryptedCredential)
	if err != nil {
		r.audit(ctx, acct.UserID, acct.ID, actionlog.StatusFailed, err.Error())
		return err
	}

	refreshed, err := r.graph.RefreshToken(ctx, token)
	if err != nil {
		r.audit(ctx, acct.UserID, acct.ID, actionlog.StatusFailed, err.Error())
		return err
	}

	encrypted, err := r.vault.Encrypt(refreshed.AccessToken)
	if err != nil {
		r.audit(ctx, acct.UserID, acct.ID, actionlog.StatusFailed, err.Error())
		return err
	}

	expiry := time.Now().Add(refreshed.ExpiresIn)
	if err := r.accounts.UpdateCredential(ctx, acct.ID, encrypted, expiry); err != nil {
		r.audit(ctx, acct.UserID, acct.ID, actionlog.StatusFailed, err.Error())
		return err
	}

	r.audit(ctx, acct.UserID, acct.ID, actionlog.StatusSuccess, "")
	return nil
}

func (r *TokenRefresher) audit(ctx context.Context, userID, accountID uuid.UUID, status actionlog.Status, errDetail string) {
	entry := actionlog.Entry{
		ID:          uuid.New(),
		UserID:      userID,
		AccountID:   &accountID,
		ActionKind:  actionlog.ActionTokenRefresh,
		Status:      status,
		ErrorDetail: errDetail,
		CreatedAt:   time.Now().UTC(),
	}
	if err := r.logs.Create(ctx, &entry); err != nil {
		r.log.Errorf("writing token_refresh audit entry: %v", err)
	}
}
