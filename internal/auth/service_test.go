package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/idfinder/internal/model"
	"github.com/hitoshi/idfinder/internal/repository"
)

// --- モック定義 ---

type mockUserRepo struct {
	resolveFn func(ctx context.Context, identity model.ExternalIdentity) (*model.User, bool, error)
	resolved  []model.ExternalIdentity
}

func (m *mockUserRepo) ResolveIdentity(ctx context.Context, identity model.ExternalIdentity) (*model.User, bool, error) {
	m.resolved = append(m.resolved, identity)
	if m.resolveFn != nil {
		return m.resolveFn(ctx, identity)
	}
	return nil, false, errors.New("unexpected ResolveIdentity call")
}

type mockSessionRepo struct {
	createFn     func(ctx context.Context, session *model.Session) error
	findUserFn   func(ctx context.Context, id string) (*model.User, error)
	deleteByIDFn func(ctx context.Context, id string) error
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error {
	if m.createFn != nil {
		return m.createFn(ctx, session)
	}
	return nil
}

func (m *mockSessionRepo) FindUser(ctx context.Context, id string) (*model.User, error) {
	if m.findUserFn != nil {
		return m.findUserFn(ctx, id)
	}
	return nil, nil
}

func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

type mockOAuthProvider struct {
	exchangeCalls  int
	exchangeCodeFn func(ctx context.Context, code string) (*OAuthUserInfo, error)
}

func (m *mockOAuthProvider) LoginURL(state string) string {
	return "https://auth.example.com/oauth2/authorize?state=" + state
}

func (m *mockOAuthProvider) ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error) {
	m.exchangeCalls++
	if m.exchangeCodeFn != nil {
		return m.exchangeCodeFn(ctx, code)
	}
	return nil, errors.New("unexpected ExchangeCode call")
}

func (m *mockOAuthProvider) LogoutURL() string {
	return "https://auth.example.com/logout?client_id=abc"
}

var _ repository.UserRepository = (*mockUserRepo)(nil)
var _ repository.SessionRepository = (*mockSessionRepo)(nil)
var _ OAuthProvider = (*mockOAuthProvider)(nil)

func cognitoUser(sub string) func(context.Context, string) (*OAuthUserInfo, error) {
	return func(context.Context, string) (*OAuthUserInfo, error) {
		return &OAuthUserInfo{
			ProviderUserID: sub,
			Email:          "test@example.com",
			Name:           "Test User",
			Provider:       ProviderCognito,
		}, nil
	}
}

func resolvesTo(userID string, created bool) func(context.Context, model.ExternalIdentity) (*model.User, bool, error) {
	return func(_ context.Context, identity model.ExternalIdentity) (*model.User, bool, error) {
		return &model.User{ID: userID, Email: identity.Email, Name: identity.Name}, created, nil
	}
}

// --- テスト ---

func TestBeginLogin_ReturnsAuthorizeURL(t *testing.T) {
	svc := NewService(&mockOAuthProvider{}, nil, nil, ServiceConfig{SessionMaxAge: 86400})

	got := svc.BeginLogin("test-state")
	want := "https://auth.example.com/oauth2/authorize?state=test-state"
	if got != want {
		t.Errorf("BeginLogin() = %q, want %q", got, want)
	}
}

func TestCompleteLogin_ResolvesIdentityAndCreatesSession(t *testing.T) {
	tests := []struct {
		name    string
		created bool
	}{
		{"初回サインイン", true},
		{"登録済みの利用者", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var createdSession *model.Session
			provider := &mockOAuthProvider{exchangeCodeFn: cognitoUser("sub-123")}
			userRepo := &mockUserRepo{resolveFn: resolvesTo("user-1", tt.created)}
			sessionRepo := &mockSessionRepo{
				createFn: func(_ context.Context, session *model.Session) error {
					createdSession = session
					return nil
				},
			}
			svc := NewService(provider, userRepo, sessionRepo, ServiceConfig{SessionMaxAge: 86400})

			session, err := svc.CompleteLogin(context.Background(), CallbackParams{Code: "auth-code", State: "s1", ExpectedState: "s1"})
			if err != nil {
				t.Fatalf("CompleteLogin() error = %v", err)
			}
			if session == nil || len(session.ID) != 64 {
				t.Fatalf("64文字のセッションIDを期待: %+v", session)
			}

			want := model.ExternalIdentity{Provider: ProviderCognito, Subject: "sub-123", Email: "test@example.com", Name: "Test User"}
			if len(userRepo.resolved) != 1 || userRepo.resolved[0] != want {
				t.Errorf("ResolveIdentity calls = %+v, want %+v", userRepo.resolved, want)
			}
			if createdSession == nil || createdSession.UserID != "user-1" {
				t.Fatalf("セッションが作成されていない: %+v", createdSession)
			}
			if createdSession.ExpiresAt.Before(time.Now().Add(23 * time.Hour)) {
				t.Errorf("有効期限が短すぎる: %v", createdSession.ExpiresAt)
			}
			if createdSession.Expired(time.Now()) {
				t.Error("作成直後のセッションは有効であるべき")
			}
		})
	}
}

func TestCompleteLogin_RejectsBadCallback(t *testing.T) {
	tests := []struct {
		name    string
		params  CallbackParams
		wantErr error
	}{
		{"stateの不一致", CallbackParams{Code: "c", State: "a", ExpectedState: "b"}, ErrStateMismatch},
		{"期待するstateが空", CallbackParams{Code: "c", State: "", ExpectedState: ""}, ErrStateMismatch},
		{"codeが空", CallbackParams{State: "s", ExpectedState: "s"}, ErrMissingCode},
		{"IdPのエラー", CallbackParams{Error: "access_denied", State: "s", ExpectedState: "s"}, ErrProviderDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &mockOAuthProvider{exchangeCodeFn: cognitoUser("sub")}
			userRepo := &mockUserRepo{}
			svc := NewService(provider, userRepo, &mockSessionRepo{}, ServiceConfig{SessionMaxAge: 60})

			_, err := svc.CompleteLogin(context.Background(), tt.params)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
			if provider.exchangeCalls != 0 || len(userRepo.resolved) != 0 {
				t.Error("不正なコールバックでトークン交換や利用者の登録を行ってはならない")
			}
		})
	}
}

func TestCompleteLogin_Failures(t *testing.T) {
	dbErr := errors.New("db error")
	tests := []struct {
		name     string
		exchange func(context.Context, string) (*OAuthUserInfo, error)
		resolve  func(context.Context, model.ExternalIdentity) (*model.User, bool, error)
		create   func(context.Context, *model.Session) error
	}{
		{
			name: "トークン交換の失敗",
			exchange: func(context.Context, string) (*OAuthUserInfo, error) {
				return nil, errors.New("oauth exchange failed")
			},
		},
		{
			name:     "利用者の解決に失敗",
			exchange: cognitoUser("sub-err"),
			resolve: func(context.Context, model.ExternalIdentity) (*model.User, bool, error) {
				return nil, false, dbErr
			},
		},
		{
			name:     "セッションの保存に失敗",
			exchange: cognitoUser("sub-err"),
			resolve:  resolvesTo("u1", false),
			create:   func(context.Context, *model.Session) error { return dbErr },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(
				&mockOAuthProvider{exchangeCodeFn: tt.exchange},
				&mockUserRepo{resolveFn: tt.resolve},
				&mockSessionRepo{createFn: tt.create},
				ServiceConfig{SessionMaxAge: 86400},
			)
			session, err := svc.CompleteLogin(context.Background(), CallbackParams{Code: "c", State: "s", ExpectedState: "s"})
			if err == nil || session != nil {
				t.Fatalf("CompleteLogin() = %+v, %v; want error", session, err)
			}
		})
	}
}

func TestLogout_DeletesSessionAndReturnsProviderURL(t *testing.T) {
	var deleted string
	sessionRepo := &mockSessionRepo{
		deleteByIDFn: func(ctx context.Context, id string) error {
			deleted = id
			return nil
		},
	}
	svc := NewService(&mockOAuthProvider{}, nil, sessionRepo, ServiceConfig{SessionMaxAge: 86400})

	logoutURL, err := svc.Logout(context.Background(), "session-to-delete")
	if err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if deleted != "session-to-delete" {
		t.Errorf("deleted session ID = %q", deleted)
	}
	if logoutURL != "https://auth.example.com/logout?client_id=abc" {
		t.Errorf("logoutURL = %q", logoutURL)
	}
}

func TestLogout_EmptySessionID_StillReturnsURL(t *testing.T) {
	sessionRepo := &mockSessionRepo{
		deleteByIDFn: func(context.Context, string) error {
			t.Error("空のセッションIDで削除を行ってはならない")
			return nil
		},
	}
	svc := NewService(&mockOAuthProvider{}, nil, sessionRepo, ServiceConfig{SessionMaxAge: 86400})

	logoutURL, err := svc.Logout(context.Background(), "")
	if err != nil || logoutURL == "" {
		t.Errorf("Logout() = %q, %v", logoutURL, err)
	}
}

func TestLogout_DeleteError_ReturnsError(t *testing.T) {
	sessionRepo := &mockSessionRepo{
		deleteByIDFn: func(context.Context, string) error { return errors.New("db down") },
	}
	svc := NewService(&mockOAuthProvider{}, nil, sessionRepo, ServiceConfig{SessionMaxAge: 86400})

	if _, err := svc.Logout(context.Background(), "sid"); err == nil {
		t.Fatal("expected error")
	}
}

func TestCurrentUser_ValidSession_ReturnsUser(t *testing.T) {
	sessionRepo := &mockSessionRepo{
		findUserFn: func(_ context.Context, id string) (*model.User, error) {
			if id != "session-valid" {
				return nil, nil
			}
			return &model.User{ID: "user-id-123", Email: "user@example.com", Name: "Test User"}, nil
		},
	}
	svc := NewService(nil, nil, sessionRepo, ServiceConfig{SessionMaxAge: 86400})

	user := svc.CurrentUser(context.Background(), "session-valid")
	if user == nil || user.ID != "user-id-123" {
		t.Fatalf("CurrentUser() = %+v", user)
	}
}

func TestCurrentUser_ReturnsNilOnAnyFailure(t *testing.T) {
	tests := []struct {
		name      string
		sessionID string
		findUser  func(context.Context, string) (*model.User, error)
	}{
		{name: "セッションIDが空", sessionID: ""},
		{
			name:      "期限切れまたは未登録",
			sessionID: "expired",
			findUser:  func(context.Context, string) (*model.User, error) { return nil, nil },
		},
		{
			name:      "取得エラー",
			sessionID: "sid",
			findUser:  func(context.Context, string) (*model.User, error) { return nil, errors.New("db down") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			repo := &mockSessionRepo{findUserFn: func(ctx context.Context, id string) (*model.User, error) {
				called = true
				if tt.findUser == nil {
					return nil, nil
				}
				return tt.findUser(ctx, id)
			}}
			svc := NewService(nil, nil, repo, ServiceConfig{SessionMaxAge: 60})
			if got := svc.CurrentUser(context.Background(), tt.sessionID); got != nil {
				t.Errorf("CurrentUser() = %+v, want nil", got)
			}
			if tt.sessionID == "" && called {
				t.Error("空のセッションIDでDBを参照してはならない")
			}
		})
	}
}

func TestGenerateToken_UniqueHex(t *testing.T) {
	a, err := GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	b, _ := GenerateToken()
	if len(a) != 64 || a == b {
		t.Errorf("トークンが不正: %q %q", a, b)
	}
}
