package repository

import (
	"context"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	database "identityapp/internal/adapter/database/postgres"
	"identityapp/internal/core/domain"
	"identityapp/internal/core/port"
	tel "identityapp/internal/core/telemetry"
)

var userColumns = []string{
	"id", "name", "username", "email", "password_hash",
	"session_token", "photo_url", "phone_number", "created_at", "updated_at",
}

type UserRepository struct {
	db        *database.DB
	telemetry port.Telemetry
}

func NewUserRepository(db *database.DB, telemetry port.Telemetry) port.UserRepository {
	if telemetry == nil {
		telemetry = tel.NewNoOpProbe()
	}

	return &UserRepository{db: db, telemetry: telemetry}
}

func scanUser(row pgx.Row) (domain.User, error) {
	var data domain.User

	err := row.Scan(
		&data.ID,
		&data.Name,
		&data.Username,
		&data.Email,
		&data.PasswordHash,
		&data.SessionToken,
		&data.PhotoURL,
		&data.PhoneNumber,
		&data.CreatedAt,
		&data.UpdatedAt,
	)

	return data, err
}

func (ur *UserRepository) findOne(ctx context.Context, operation string, where sq.Sqlizer) (domain.User, error) {
	ctx, span := ur.telemetry.StartRepositorySpan(ctx, operation, "user", nil)
	defer span.End()

	sql, args, err := ur.db.QueryBuilder.Select(userColumns...).
		From("users").
		Where(where).
		Limit(1).
		ToSql()

	if err != nil {
		return domain.User{}, err
	}

	data, err := scanUser(ur.db.QueryRow(ctx, sql, args...))
	if err != nil {
		return domain.User{}, database.TranslateError(err)
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

	sql, args, err := ur.db.QueryBuilder.Select(userColumns...).
		From("users").
		Where(sq.Eq{"email": email}).
		ToSql()

	if err != nil {
		return nil, err
	}

	rows, err := ur.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, database.TranslateError(err)
	}
	defer rows.Close()

	users := make([]domain.User, 0)

	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	return users, rows.Err()
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

	sql, args, err := ur.db.QueryBuilder.Insert("users").
		Columns(userColumns...).
		Values(user.ID, user.Name, user.Username, user.Email, user.PasswordHash,
			user.SessionToken, user.PhotoURL, user.PhoneNumber, user.CreatedAt, user.UpdatedAt).
		Suffix("RETURNING created_at").
		ToSql()

	if err != nil {
		return domain.User{}, err
	}

	if err := ur.db.QueryRow(ctx, sql, args...).Scan(&user.CreatedAt); err != nil {
		span.RecordError(err)
		slog.Error("Error creating user", "user_id", user.ID, "error", err)
		return domain.User{}, database.TranslateError(err)
	}

	return user, nil
}

// Update writes every field in changes with one UPDATE statement.
func (ur *UserRepository) Update(ctx context.Context, id string, changes domain.UserChanges) error {
	ctx, span := ur.telemetry.StartRepositorySpan(ctx, "update", "user", map[string]interface{}{"user.id": id})
	defer span.End()

	fields := changes.ToMap()
	fields["updated_at"] = time.Now().UTC()

	sql, args, err := ur.db.QueryBuilder.Update("users").
		SetMap(fields).
		Where(sq.Eq{"id": id}).
		ToSql()

	if err != nil {
		return err
	}

	tag, err := ur.db.Exec(ctx, sql, args...)
	if err != nil {
		span.RecordError(err)
		slog.Error("Error updating user", "user_id", id, "error", err)
		return database.TranslateError(err)
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}

	return nil
}
