// Copyright (c) 2026 Admitly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/admitly/internal/platform/apperr"
	"github.com/taibuivan/admitly/internal/platform/database/schema"
	"github.com/taibuivan/admitly/internal/platform/dberr"
	"github.com/taibuivan/admitly/internal/platform/postgres"
)

// Unique constraint names from the users.account migration.
const (
	constraintAccountEmail    = "account_email_key"
	constraintAccountUsername = "account_username_key"
)

// # User Repository

// PostgresUserRepository implements the UserRepository interface using pgx.
type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new PostgreSQL implementation of the UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// selectUser loads an account together with its university and course links.
// The WHERE clause is appended by the caller.
var selectUser = fmt.Sprintf(`
	SELECT a.%[2]s::text, a.%[3]s, a.%[4]s, a.%[5]s, a.%[6]s, a.%[7]s, a.%[8]s::text,
	       a.%[9]s, a.%[10]s, a.%[11]s, a.%[12]s,
	       ARRAY(SELECT u.%[15]s::text FROM %[13]s u WHERE u.%[14]s = a.%[2]s ORDER BY u.%[15]s),
	       ARRAY(SELECT c.%[17]s::text FROM %[16]s c WHERE c.%[14]s = a.%[2]s ORDER BY c.%[17]s)
	FROM %[1]s a`,
	schema.UserAccount.Table,
	schema.UserAccount.ID, schema.UserAccount.Email, schema.UserAccount.Username,
	schema.UserAccount.Password, schema.UserAccount.Name, schema.UserAccount.Role,
	schema.UserAccount.OrganizationID, schema.UserAccount.IsActive, schema.UserAccount.TokenVersion,
	schema.UserAccount.CreatedAt, schema.UserAccount.UpdatedAt,
	schema.UserAccountUniversity.Table, schema.UserAccountUniversity.AccountID,
	schema.UserAccountUniversity.UniversityID,
	schema.UserAccountCourse.Table, schema.UserAccountCourse.CourseID,
)

// findOne runs selectUser with a single-column filter.
func (repository *PostgresUserRepository) findOne(context context.Context, column, value string) (*User, error) {
	query := selectUser + fmt.Sprintf(" WHERE a.%s = $1", column)

	user := &User{}
	err := repository.pool.QueryRow(context, query, value).Scan(
		&user.ID,
		&user.Email,
		&user.Username,
		&user.PasswordHash,
		&user.Name,
		&user.Role,
		&user.OrganizationID,
		&user.IsActive,
		&user.TokenVersion,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.UniversityIDs,
		&user.CourseIDs,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Account")
		}
		return nil, fmt.Errorf("postgres_user_repo_find_failed: %w", err)
	}

	return user, nil
}

// FindByID retrieves an account by its primary key.
func (repository *PostgresUserRepository) FindByID(context context.Context, id string) (*User, error) {
	return repository.findOne(context, schema.UserAccount.ID, id)
}

// FindByEmail retrieves an account by its folded email.
func (repository *PostgresUserRepository) FindByEmail(context context.Context, email string) (*User, error) {
	return repository.findOne(context, schema.UserAccount.Email, email)
}

// FindByUsername retrieves an account by its folded username.
func (repository *PostgresUserRepository) FindByUsername(context context.Context, username string) (*User, error) {
	return repository.findOne(context, schema.UserAccount.Username, username)
}

/*
Create persists a new account and its directory links in one transaction.

Parameters:
  - context: context.Context
  - user: *User (Entity to persist)

Returns:
  - error: apperr.Conflict on a duplicate email/username, or persistence failures
*/
func (repository *PostgresUserRepository) Create(context context.Context, user *User) error {
	const insertAccount = `
		INSERT INTO users.account (
			id, email, username, passwordhash, name, role, organizationid,
			isactive, tokenversion, createdat, updatedat
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	const insertUniversities = `
		INSERT INTO users.accountuniversity (accountid, universityid)
		SELECT $1, unnest($2::text[])::uuid`

	const insertCourses = `
		INSERT INTO users.accountcourse (accountid, courseid)
		SELECT $1, unnest($2::text[])::uuid`

	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	err := postgres.WithTx(context, repository.pool, func(transaction pgx.Tx) error {
		if _, err := transaction.Exec(context, insertAccount,
			user.ID,
			user.Email,
			user.Username,
			user.PasswordHash,
			user.Name,
			string(user.Role),
			user.OrganizationID,
			user.IsActive,
			user.TokenVersion,
			user.CreatedAt,
			user.UpdatedAt,
		); err != nil {
			return err
		}

		if len(user.UniversityIDs) > 0 {
			if _, err := transaction.Exec(context, insertUniversities, user.ID, user.UniversityIDs); err != nil {
				return err
			}
		}

		if len(user.CourseIDs) > 0 {
			if _, err := transaction.Exec(context, insertCourses, user.ID, user.CourseIDs); err != nil {
				return err
			}
		}

		return nil
	})

	switch {
	case err == nil:
		return nil
	case dberr.IsUniqueViolation(err, constraintAccountEmail):
		return apperr.Conflict(MsgEmailRegistered)
	case dberr.IsUniqueViolation(err, constraintAccountUsername):
		return apperr.Conflict(MsgUsernameTaken)
	default:
		return fmt.Errorf("postgres_user_repo_create_failed: %w", dberr.Wrap(err, "Account"))
	}
}

// UpdatePassword replaces only the password hash.
func (repository *PostgresUserRepository) UpdatePassword(context context.Context, userID, newHash string) error {
	const query = `UPDATE users.account SET passwordhash = $2, updatedat = NOW() WHERE id = $1`

	tag, err := repository.pool.Exec(context, query, userID, newHash)
	if err != nil {
		return fmt.Errorf("postgres_user_repo_update_password_failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Account")
	}

	return nil
}

/*
IncrementTokenVersion adds one to the stored counter in a single statement.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - int64: The post-increment version
  - error: apperr.NotFound or persistence failures
*/
func (repository *PostgresUserRepository) IncrementTokenVersion(context context.Context, userID string) (int64, error) {
	const query = `
		UPDATE users.account
		SET tokenversion = tokenversion + 1
		WHERE id = $1
		RETURNING tokenversion`

	var version int64
	if err := repository.pool.QueryRow(context, query, userID).Scan(&version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperr.NotFound("Account")
		}
		return 0, fmt.Errorf("postgres_user_repo_increment_version_failed: %w", err)
	}

	return version, nil
}

// # Reset Record Repository

// PostgresResetRecordRepository implements [ResetRecordRepository] using pgx.
type PostgresResetRecordRepository struct {
	pool *pgxpool.Pool
}

// NewResetRecordRepository creates a new PostgreSQL implementation of the ResetRecordRepository.
func NewResetRecordRepository(pool *pgxpool.Pool) *PostgresResetRecordRepository {
	return &PostgresResetRecordRepository{pool: pool}
}

/*
ReplaceForEmail supersedes every unused grant of the email and inserts record.

Concurrent calls for the same email are serialized by a transaction-scoped
advisory lock, so at most one unused grant survives.

Parameters:
  - context: context.Context
  - record: *PasswordResetRecord

Returns:
  - error: Persistence failures
*/
func (repository *PostgresResetRecordRepository) ReplaceForEmail(context context.Context, record *PasswordResetRecord) error {
	const lock = `SELECT pg_advisory_xact_lock(hashtext($1))`

	const supersede = `
		UPDATE users.passwordreset
		SET isused = TRUE, usedat = NOW()
		WHERE email = $1 AND isused = FALSE`

	const insert = `
		INSERT INTO users.passwordreset (id, email, tokenhash, expiresat, isused, createdat)
		VALUES ($1, $2, $3, $4, FALSE, $5)`

	err := postgres.WithTx(context, repository.pool, func(transaction pgx.Tx) error {
		if _, err := transaction.Exec(context, lock, record.Email); err != nil {
			return err
		}
		if _, err := transaction.Exec(context, supersede, record.Email); err != nil {
			return err
		}
		_, err := transaction.Exec(context, insert,
			record.ID,
			record.Email,
			record.TokenHash,
			record.ExpiresAt,
			record.CreatedAt,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("postgres_reset_repo_replace_failed: %w", err)
	}

	return nil
}

// FindValid returns the unused, unexpired grant matching email and tokenHash.
func (repository *PostgresResetRecordRepository) FindValid(context context.Context, email, tokenHash string) (*PasswordResetRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s, %s, %s
		FROM %s
		WHERE %s = $1 AND %s = $2 AND %s = FALSE AND %s > NOW()`,
		schema.UserPasswordReset.ID, schema.UserPasswordReset.Email, schema.UserPasswordReset.TokenHash,
		schema.UserPasswordReset.ExpiresAt, schema.UserPasswordReset.IsUsed, schema.UserPasswordReset.UsedAt,
		schema.UserPasswordReset.CreatedAt,
		schema.UserPasswordReset.Table,
		schema.UserPasswordReset.Email, schema.UserPasswordReset.TokenHash,
		schema.UserPasswordReset.IsUsed, schema.UserPasswordReset.ExpiresAt,
	)

	record := &PasswordResetRecord{}
	err := repository.pool.QueryRow(context, query, email, tokenHash).Scan(
		&record.ID,
		&record.Email,
		&record.TokenHash,
		&record.ExpiresAt,
		&record.IsUsed,
		&record.UsedAt,
		&record.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Reset token")
		}
		return nil, fmt.Errorf("postgres_reset_repo_find_failed: %w", err)
	}

	return record, nil
}

/*
Redeem consumes the grant, replaces the password hash and supersedes the
email's other grants in one transaction.

The consume step is conditional, so of two concurrent redemptions only one
finds the row; the other gets NotFound and rolls back.

Parameters:
  - context: context.Context
  - record: *PasswordResetRecord
  - userID: string
  - newHash: string

Returns:
  - int64: Number of other grants superseded
  - error: apperr.NotFound or persistence failures
*/
func (repository *PostgresResetRecordRepository) Redeem(context context.Context, record *PasswordResetRecord, userID, newHash string) (int64, error) {
	const consume = `
		UPDATE users.passwordreset
		SET isused = TRUE, usedat = NOW()
		WHERE id = $1 AND isused = FALSE AND expiresat > NOW()`

	const updatePassword = `UPDATE users.account SET passwordhash = $2, updatedat = NOW() WHERE id = $1`

	const supersede = `
		UPDATE users.passwordreset
		SET isused = TRUE, usedat = NOW()
		WHERE email = $1 AND isused = FALSE`

	var superseded int64
	err := postgres.WithTx(context, repository.pool, func(transaction pgx.Tx) error {
		tag, err := transaction.Exec(context, consume, record.ID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return apperr.NotFound("Reset token")
		}

		tag, err = transaction.Exec(context, updatePassword, userID, newHash)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return apperr.NotFound("Account")
		}

		tag, err = transaction.Exec(context, supersede, record.Email)
		if err != nil {
			return err
		}
		superseded = tag.RowsAffected()
		return nil
	})
	if err != nil {
		if apperr.IsNotFound(err) {
			return 0, err
		}
		return 0, fmt.Errorf("postgres_reset_repo_redeem_failed: %w", err)
	}

	return superseded, nil
}

// PurgeExpired deletes grants that expired before cutoff.
func (repository *PostgresResetRecordRepository) PurgeExpired(context context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM users.passwordreset WHERE expiresat < $1`

	tag, err := repository.pool.Exec(context, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres_reset_repo_purge_failed: %w", err)
	}

	return tag.RowsAffected(), nil
}

// # Directory Repository

// PostgresDirectoryRepository implements [DirectoryRepository] using pgx.
type PostgresDirectoryRepository struct {
	pool *pgxpool.Pool
}

// NewDirectoryRepository creates a read-only view over the directory schema.
func NewDirectoryRepository(pool *pgxpool.Pool) *PostgresDirectoryRepository {
	return &PostgresDirectoryRepository{pool: pool}
}

// FindOrganization retrieves an organization by ID.
func (repository *PostgresDirectoryRepository) FindOrganization(context context.Context, id string) (*Organization, error) {
	query := fmt.Sprintf(`SELECT %s::text, %s FROM %s WHERE %s::text = $1`,
		schema.DirectoryOrganization.ID, schema.DirectoryOrganization.Name,
		schema.DirectoryOrganization.Table, schema.DirectoryOrganization.ID,
	)

	organization := &Organization{}
	if err := repository.pool.QueryRow(context, query, id).Scan(&organization.ID, &organization.Name); err != nil {
		return nil, dberr.Wrap(err, "Organization")
	}

	return organization, nil
}

// FindUniversity retrieves a university by ID.
func (repository *PostgresDirectoryRepository) FindUniversity(context context.Context, id string) (*University, error) {
	query := fmt.Sprintf(`SELECT %s::text, %s, %s::text FROM %s WHERE %s::text = $1`,
		schema.DirectoryUniversity.ID, schema.DirectoryUniversity.Name, schema.DirectoryUniversity.OrganizationID,
		schema.DirectoryUniversity.Table, schema.DirectoryUniversity.ID,
	)

	university := &University{}
	err := repository.pool.QueryRow(context, query, id).Scan(
		&university.ID,
		&university.Name,
		&university.OrganizationID,
	)
	if err != nil {
		return nil, dberr.Wrap(err, "University")
	}

	return university, nil
}

// FindCourses returns the courses that exist among ids.
func (repository *PostgresDirectoryRepository) FindCourses(context context.Context, ids []string) ([]Course, error) {
	if len(ids) == 0 {
		return []Course{}, nil
	}

	query := fmt.Sprintf(`SELECT %s::text, %s, %s::text, %s::text FROM %s WHERE %s::text = ANY($1::text[])`,
		schema.DirectoryCourse.ID, schema.DirectoryCourse.Name, schema.DirectoryCourse.UniversityID,
		schema.DirectoryCourse.FormID, schema.DirectoryCourse.Table, schema.DirectoryCourse.ID,
	)

	rows, err := repository.pool.Query(context, query, ids)
	if err != nil {
		return nil, fmt.Errorf("postgres_directory_repo_find_courses_failed: %w", err)
	}

	courses, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Course, error) {
		var course Course
		err := row.Scan(&course.ID, &course.Name, &course.UniversityID, &course.FormID)
		return course, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres_directory_repo_find_courses_failed: %w", err)
	}

	return courses, nil
}
