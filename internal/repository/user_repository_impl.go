package repository

import (
	"context"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jnst/user-notification-service/internal/model"
)

const (
	userEntity = "user"

	// bumpUpdatedAt keeps updated_at strictly increasing even when two
	// updates land within the clock's resolution.
	bumpUpdatedAt = "GREATEST(clock_timestamp(), updated_at + INTERVAL '1 microsecond')"
)

var userColumns = []string{"id", "name", "email", "phone", "created_at", "updated_at"}

// UserRepositoryImpl implements UserRepository using PostgreSQL.
type UserRepositoryImpl struct {
	db DBTX
}

// NewUserRepositoryImpl creates a new UserRepository implementation.
func NewUserRepositoryImpl(db DBTX) UserRepository {
	return &UserRepositoryImpl{db: db}
}

// Create inserts a new user. Email uniqueness is enforced by the users_email_key index.
func (r *UserRepositoryImpl) Create(ctx context.Context, user *model.User) (*model.User, error) {
	query := `INSERT INTO users (id, name, email, phone)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + strings.Join(userColumns, ", ")

	row := querier(ctx, r.db).QueryRow(ctx, query, user.ID, user.Name, user.Email, nullIfEmpty(user.Phone))

	created, err := scanUser(row)
	if err != nil {
		return nil, mapError(err, userEntity, user.Email)
	}

	return created, nil
}

// GetByID retrieves a user by ID.
func (r *UserRepositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return r.getOne(ctx, "id = ?", id)
}

// GetByEmail retrieves a user by email.
func (r *UserRepositoryImpl) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getOne(ctx, "email = ?", email)
}

func (r *UserRepositoryImpl) getOne(ctx context.Context, pred string, key any) (*model.User, error) {
	query, args, err := psql.Select(userColumns...).From("users").Where(pred, key).ToSql()
	if err != nil {
		return nil, err
	}

	user, err := scanUser(querier(ctx, r.db).QueryRow(ctx, query, args...))
	if err != nil {
		return nil, mapError(err, userEntity, key)
	}

	return user, nil
}

// List returns users, newest first.
func (r *UserRepositoryImpl) List(ctx context.Context, params model.ListUsersParams) ([]*model.User, error) {
	builder := psql.Select(userColumns...).From("users").OrderBy("created_at DESC", "id")
	if params.Limit > 0 {
		builder = builder.Limit(params.Limit)
	}
	if params.Offset > 0 {
		builder = builder.Offset(params.Offset)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := querier(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "users", "list")
	}
	defer rows.Close()

	users := make([]*model.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, mapError(err, "users", "list")
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, mapError(err, "users", "list")
	}

	return users, nil
}

// Update applies a partial update. Fields left nil keep their stored value;
// an empty phone clears it.
func (r *UserRepositoryImpl) Update(ctx context.Context, id uuid.UUID, params *model.UpdateUserParams) (*model.User, error) {
	builder := psql.Update("users")
	if params.Name != nil {
		builder = builder.Set("name", *params.Name)
	}
	if params.Email != nil {
		builder = builder.Set("email", *params.Email)
	}
	if params.Phone != nil {
		builder = builder.Set("phone", nullIfEmpty(params.Phone))
	}

	query, args, err := builder.
		Set("updated_at", sq.Expr(bumpUpdatedAt)).
		Where("id = ?", id).
		Suffix("RETURNING " + strings.Join(userColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, err
	}

	user, err := scanUser(querier(ctx, r.db).QueryRow(ctx, query, args...))
	if err != nil {
		return nil, mapError(err, userEntity, id)
	}

	return user, nil
}

// Delete removes a user and returns the deleted row.
func (r *UserRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `DELETE FROM users WHERE id = $1 RETURNING ` + strings.Join(userColumns, ", ")

	user, err := scanUser(querier(ctx, r.db).QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapError(err, userEntity, id)
	}

	return user, nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}

	return &u, nil
}

func nullIfEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}

	return s
}
