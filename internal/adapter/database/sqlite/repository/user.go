package repository

import (
	"context"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"

	"identityapp/internal/adapter/database/sqlite"
	"identityapp/internal/core/domain"
	"identityapp/internal/core/port"
	tel "identityapp/internal/core/telemetry"
)

const usersTable = "users"

var userColumns = []string{
	"id", "name", "username", "email", "password_hash",
	"session_token", "photo_url", "phone_number", "created_at", "updated_at",
}

type UserRepository struct {
	db        *sqlite.DB
	scanner   *sqlite.Scanner
	telemetry port.Telemetry
}

func NewUserRepository(db *sqlite.DB, telemetry port.Telemetry) port.UserRepository {
	if telemetry == nil {
		telemetry = tel.NewNoOpProbe()
	}

	return &UserRepository{
		db:        db,
		scanner:   sqlite.NewScanner(),
		telemetry: telemetry,
	}
}

func (ur *UserRepository) findOne(ctx context.Context, operation string, where sq.Sqlizer) (domain.User, error) {
	ctx, span := ur.telemetry.StartRepositorySpan(ctx, operation, "user", nil)
	defer span.End()

	query, args, err := ur.db.QueryBuilder.Select(userColumns...).
		From(usersTable).
		Where(where).
		Limit(1).
		ToSql()

	if err != nil {
		return domain.User{}, err
	}

	rows, err := ur.db.QueryContext(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		return domain.User{}, sqlite.TranslateError(err)
	}
	defer rows.Close()

	var data domain.User

	if err := ur.scanner.ScanRowToStruct(rows, &data); err != nil {
		return domain.User{}, sqlite.TranslateError(err)
	}

	return data, nil
}

func (ur *UserRepository) FindByUsernameOrEmail(ctx context.Context, username, email string) (domain.User, error) {
	return ur.findOne(ctx, "find_by_username_or_email", sq.Or{
		sq.Eq{"username": username},
		sq.Eq{"email": email},
	})
}

func (ur *UserRepository) FindByID(ctx context.Context, id string) (domain.User, error) {
	return ur.findOne(ctx, "find_by_id", sq.Eq{"id": id})
}

func (ur *UserRepository) FindByEmail(ctx context.Context, email string) ([]domain.User, error) {
	ctx, span := ur.telemetry.StartRepositorySpan(ctx, "find_by_email", "user", nil)
	defer span.End()

	query, args, err := ur.db.QueryBuilder.Select(userColumns...).
		From(usersTable).
		Where(sq.Eq{"email": email}).
		ToSql()

	if err != nil {
		return nil, err
	}

	rows, err := ur.db.QueryContext(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		return nil, sqlite.TranslateError(err)
	}
	defer rows.Close()

	users := make([]domain.User, 0)

	if err := ur.scanner.ScanRowsToSlice(rows, &users); err != nil {
		return nil, err
	}

	return users, nil
}

func (ur *UserRepository) Create(ctx context.Context, user domain.User) (domain.User, error) {
	ctx, span := ur.telemetry.StartRepositorySpan(ctx, "create", "user", map[string]interface{}{"user.id": user.ID})
	defer span.End()

	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = user.CreatedAt
	}

	query, args, err := ur.db.QueryBuilder.Insert(usersTable).
		Columns(userColumns...).
		Values(user.ID, user.Name, user.Username, user.Email, user.PasswordHash,
			nullable(user.SessionToken), nullable(user.PhotoURL), nullable(user.PhoneNumber),
			user.CreatedAt, user.UpdatedAt).
		ToSql()

	if err != nil {
		return domain.User{}, err
	}

	if _, err := ur.db.ExecContext(ctx, query, args...); err != nil {
		span.RecordError(err)
		slog.Error("Error creating user", "user_id", user.ID, "error", err)
		return domain.User{}, sqlite.TranslateError(err)
	}

	return user, nil
}

// Update writes every field in changes with one UPDATE statement.
func (ur *UserRepository) Update(ctx context.Context, id string, changes domain.UserChanges) error {
	ctx, span := ur.telemetry.StartRepositorySpan(ctx, "update", "user", map[string]interface{}{"user.id": id})
	defer span.End()

	fields := changes.ToMap()
	fields["updated_at"] = time.Now().UTC()

	query, args, err := ur.db.QueryBuilder.Update(usersTable).
		SetMap(fields).
		Where(sq.Eq{"id": id}).
		ToSql()

	if err != nil {
		return err
	}

	result, err := ur.db.ExecContext(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		slog.Error("Error updating user", "user_id", id, "error", err)
		return sqlite.TranslateError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return domain.ErrNotFound
	}

	return nil
}

func nullable(value *string) interface{} {
	if value == nil {
		return nil
	}

	return *value
}
