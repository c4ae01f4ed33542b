// Package repository はサインイン状態の永続化インターフェースを定義する。
// 届出そのものは外部の届出APIが保持し、ここでは扱わない。
package repository

import (
	"context"

	"github.com/hitoshi/idfinder/internal/model"
)

// UserRepository は利用者の永続化インターフェース。
type UserRepository interface {
	// ResolveIdentity はIdPの識別情報に紐づく利用者を返す。
	// 未登録なら利用者と紐付けを作成し、登録済みならメールアドレスと名前を同期する。
	// createdは今回新規作成した場合にtrueとなる。
	ResolveIdentity(ctx context.Context, identity model.ExternalIdentity) (user *model.User, created bool, err error)
}

// SessionRepository はセッションの永続化インターフェース。
type SessionRepository interface {
	Create(ctx context.Context, session *model.Session) error
	// FindUser は有効なセッションの所有者を返す。セッションが無いか期限切れの場合はnilを返す。
	FindUser(ctx context.Context, sessionID string) (*model.User, error)
	// DeleteByID は指定IDのセッションを削除する。存在しない場合もエラーにならない。
	DeleteByID(ctx context.Context, id string) error
}
