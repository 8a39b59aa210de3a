// Copyright (c) 2026 Admitly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package account (Postgres) implements the storage layer for profile edits.

Reads reuse the credential store so profiles and sessions always see the same
account shape.

# Schema Table Mapping
  - users.account: Master identity and profile data.
*/
package account

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/admitly/internal/platform/apperr"
	"github.com/taibuivan/admitly/internal/platform/database/schema"
	"github.com/taibuivan/admitly/internal/platform/dberr"
	"github.com/taibuivan/admitly/internal/users/auth"
)

// constraintAccountEmail names the unique index on users.account(email).
const constraintAccountEmail = "account_email_key"

// # Repository Implementations

// PostgresAccountRepository implements [AccountRepository] using pgx.
type PostgresAccountRepository struct {
	*auth.PostgresUserRepository
	pool *pgxpool.Pool
}

// NewAccountRepository creates a new Postgres implementation for profile management.
func NewAccountRepository(pool *pgxpool.Pool) *PostgresAccountRepository {
	return &PostgresAccountRepository{
		PostgresUserRepository: auth.NewUserRepository(pool),
		pool:                   pool,
	}
}

/*
UpdateProfile modifies the mutable profile metadata of a user.

Description: Syncs the Name and Email fields and refreshes the updatedat
timestamp. The unique email index is the final arbiter on concurrent changes.

Parameters:
  - context: context.Context
  - user: *auth.User

Returns:
  - error: apperr.Conflict, apperr.NotFound or update failures
*/
func (repository *PostgresAccountRepository) UpdateProfile(context context.Context, user *auth.User) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET %s = $2, %s = $3, %s = $4
		WHERE %s = $1`,
		schema.UserAccount.Table,
		schema.UserAccount.Name, schema.UserAccount.Email, schema.UserAccount.UpdatedAt,
		schema.UserAccount.ID,
	)

	user.UpdatedAt = time.Now()
	tag, err := repository.pool.Exec(context, query,
		user.ID,
		user.Name,
		user.Email,
		user.UpdatedAt,
	)

	// If the update fails, return an error
	if err != nil {
		if dberr.IsUniqueViolation(err, constraintAccountEmail) {
			return apperr.Conflict(MsgEmailInUse)
		}
		return fmt.Errorf("postgres_account_repo_update_failed: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Account")
	}

	return nil
}
