package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/hitoshi/idfinder/internal/model"
)

// 同じsubで同時に初回サインインした場合、後続の作成はやり直して既存の利用者を取得する。
const maxResolveAttempts = 2

var errIdentityTaken = errors.New("identity was registered concurrently")

// PostgresUserRepo はPostgreSQLを使用した利用者リポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// ResolveIdentity はidentitiesを引いて利用者を特定し、無ければ作成する。
// 特定と作成はそれぞれ1トランザクションで行う。
func (r *PostgresUserRepo) ResolveIdentity(ctx context.Context, identity model.ExternalIdentity) (*model.User, bool, error) {
	var lastErr error
	for range maxResolveAttempts {
		user, created, err := r.resolveOnce(ctx, identity)
		if errors.Is(err, errIdentityTaken) {
			lastErr = err
			continue
		}
		return user, created, err
	}
	return nil, false, fmt.Errorf("failed to resolve identity: %w", lastErr)
}

func (r *PostgresUserRepo) resolveOnce(ctx context.Context, identity model.ExternalIdentity) (*model.User, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// 登録済みならIdP側のプロフィールに追従させる
	user := &model.User{}
	err = tx.QueryRowContext(ctx,
		`UPDATE users u
		 SET email = $3, name = $4, updated_at = now()
		 FROM identities i
		 WHERE i.user_id = u.id AND i.provider = $1 AND i.provider_user_id = $2
		 RETURNING u.id, u.email, u.name, u.created_at`,
		identity.Provider, identity.Subject, identity.Email, identity.Name,
	).Scan(&user.ID, &user.Email, &user.Name, &user.CreatedAt)
	switch {
	case err == nil:
		if err := tx.Commit(); err != nil {
			return nil, false, fmt.Errorf("failed to commit profile sync: %w", err)
		}
		return user, false, nil
	case !errors.Is(err, sql.ErrNoRows):
		return nil, false, fmt.Errorf("failed to find identity: %w", err)
	}

	user = &model.User{ID: uuid.NewString(), Email: identity.Email, Name: identity.Name}
	if err := tx.QueryRowContext(ctx,
		`INSERT INTO users (id, email, name) VALUES ($1, $2, $3) RETURNING created_at`,
		user.ID, user.Email, user.Name,
	).Scan(&user.CreatedAt); err != nil {
		return nil, false, fmt.Errorf("failed to insert user: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO identities (id, user_id, provider, provider_user_id)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (provider, provider_user_id) DO NOTHING`,
		uuid.NewString(), user.ID, identity.Provider, identity.Subject,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert identity: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, false, fmt.Errorf("failed to insert identity: %w", err)
	} else if n == 0 {
		return nil, false, errIdentityTaken
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit new user: %w", err)
	}
	return user, true, nil
}

var _ UserRepository = (*PostgresUserRepo)(nil)
