package model

import "time"

// User はサインイン済みの利用者。届出の所有者とは紐付けない。
type User struct {
	ID        string
	Email     string
	Name      string
	CreatedAt time.Time
}

// ExternalIdentity はIdPが返した利用者の識別情報。
// Subject はIdP内で不変のID（Cognitoのsub）で、EmailとNameはサインインのたびに変わり得る。
type ExternalIdentity struct {
	Provider string
	Subject  string
	Email    string
	Name     string
}

// Session はローカルのサインインセッション。サインアウト時に削除される。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired はnow時点でセッションが期限切れかどうかを返す。
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
