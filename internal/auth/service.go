// Package auth はサインインの二段階フロー、セッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/idfinder/internal/model"
	"github.com/hitoshi/idfinder/internal/repository"
)

// CompleteLoginで返される定義済みエラー。
var (
	ErrStateMismatch  = errors.New("oauth state mismatch")
	ErrMissingCode    = errors.New("authorization code is missing")
	ErrProviderDenied = errors.New("identity provider returned an error")
)

// OAuthUserInfo はIdPから取得したユーザー情報を表す。
type OAuthUserInfo struct {
	ProviderUserID string
	Email          string
	Name           string
	Provider       string
}

// OAuthProvider はリダイレクト型のIdPのインターフェース。
type OAuthProvider interface {
	// LoginURL は認可URLを生成する。
	LoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error)
	// LogoutURL はIdP側のサインアウトURLを生成する。
	LogoutURL() string
}

// CallbackParams はリダイレクト先で受け取るパラメータ。
type CallbackParams struct {
	Code             string
	State            string
	ExpectedState    string // ログイン開始時にCookieへ保存したstate
	Error            string
	ErrorDescription string
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service はサインイン状態を扱う。
// 現在のユーザーは呼び出しごとにセッションから解決し、結果を保持しない。
type Service struct {
	oauth       OAuthProvider
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	oauth OAuthProvider,
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	config ServiceConfig,
) *Service {
	return &Service{
		oauth:       oauth,
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		config:      config,
	}
}

// BeginLogin はサインインを開始し、遷移先となる認可URLを返す。
// 呼び出し元は応答をリダイレクトとして返し、制御はCompleteLoginで再開する。
func (s *Service) BeginLogin(state string) string {
	return s.oauth.LoginURL(state)
}

// CompleteLogin はリダイレクト先で呼び出され、セッションを発行する。
// 初回サインインの利用者はこの時点で登録される。
func (s *Service) CompleteLogin(ctx context.Context, params CallbackParams) (*model.Session, error) {
	if params.Error != "" {
		return nil, fmt.Errorf("%w: %s %s", ErrProviderDenied, params.Error, params.ErrorDescription)
	}
	if params.ExpectedState == "" ||
		subtle.ConstantTimeCompare([]byte(params.State), []byte(params.ExpectedState)) != 1 {
		return nil, ErrStateMismatch
	}
	if params.Code == "" {
		return nil, ErrMissingCode
	}

	info, err := s.oauth.ExchangeCode(ctx, params.Code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	user, created, err := s.userRepo.ResolveIdentity(ctx, model.ExternalIdentity{
		Provider: info.Provider,
		Subject:  info.ProviderUserID,
		Email:    info.Email,
		Name:     info.Name,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("user signed in",
		slog.String("user_id", user.ID),
		slog.String("provider", info.Provider),
		slog.Bool("new_user", created),
	)
	return session, nil
}

// Logout はローカルのセッションを破棄し、IdP側のサインアウトURLを返す。
// セッションIDが空の場合もサインアウトURLは返す。
func (s *Service) Logout(ctx context.Context, sessionID string) (string, error) {
	if sessionID != "" {
		if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
			return "", fmt.Errorf("failed to delete session: %w", err)
		}
		slog.Info("user logged out", slog.String("session_id", sessionID))
	}
	return s.oauth.LogoutURL(), nil
}

// CurrentUser はセッションから現在のユーザーを返す。
// 未サインインは通常の状態のため、セッションが無い場合や取得に失敗した場合はnilを返す。
func (s *Service) CurrentUser(ctx context.Context, sessionID string) *model.User {
	if sessionID == "" {
		return nil
	}

	user, err := s.sessionRepo.FindUser(ctx, sessionID)
	if err != nil {
		slog.Warn("failed to resolve session user", slog.String("error", err.Error()))
		return nil
	}
	return user
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := GenerateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := time.Now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// GenerateToken は暗号的に安全な32バイトの16進文字列を生成する。
// セッションIDとOAuthのstateに使用する。
func GenerateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
