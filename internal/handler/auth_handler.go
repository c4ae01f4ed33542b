// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/idfinder/internal/auth"
	"github.com/hitoshi/idfinder/internal/middleware"
	"github.com/hitoshi/idfinder/internal/model"
)

const (
	oauthStateCookie = "oauth_state"
	oauthStateMaxAge = 600
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
// 現在のユーザーはセッションミドルウェアが解決するため含めない。
type AuthServiceInterface interface {
	BeginLogin(state string) string
	CompleteLogin(ctx context.Context, params auth.CallbackParams) (*model.Session, error)
	Logout(ctx context.Context, sessionID string) (string, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL       string // サインイン完了後のリダイレクト先
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はサインイン関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Login はstateをCookieに保存し、IdPの認可URLへリダイレクトする。
// GET /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := auth.GenerateToken()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/auth",
		MaxAge:   oauthStateMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.service.BeginLogin(state), http.StatusFound)
}

// Callback はIdPからのリダイレクトを受け取り、セッションCookieを発行する。
// GET /auth/callback?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := auth.CallbackParams{
		Code:             q.Get("code"),
		State:            q.Get("state"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	}
	if c, err := r.Cookie(oauthStateCookie); err == nil {
		params.ExpectedState = c.Value
	}

	// stateは成否にかかわらず1回限り
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	session, err := h.service.CompleteLogin(r.Context(), params)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrStateMismatch), errors.Is(err, auth.ErrMissingCode), errors.Is(err, auth.ErrProviderDenied):
			slog.Warn("sign-in rejected", slog.String("error", err.Error()))
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewAuthFailedError(err.Error()))
		default:
			slog.Error("sign-in callback failed", slog.String("error", err.Error()))
			middleware.WriteErrorResponse(w, http.StatusBadGateway, model.NewAuthFailedError("IdPとの通信に失敗しました"))
		}
		return
	}

	http.SetCookie(w, h.sessionCookie(session.ID, h.config.SessionMaxAge))
	http.Redirect(w, r, h.config.BaseURL, http.StatusFound)
}

// Logout はローカルのセッションを破棄し、IdPのサインアウトURLを返す。
// フロントエンドは返されたURLへ遷移してIdP側のセッションも終了させる。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	logoutURL, err := h.service.Logout(r.Context(), middleware.SessionIDFromRequest(r))
	if err != nil {
		// 削除に失敗してもCookieはクリアする
		slog.Error("failed to logout", slog.String("error", err.Error()))
	}

	http.SetCookie(w, h.sessionCookie("", -1))
	writeJSON(w, http.StatusOK, map[string]string{"logout_url": logoutURL})
}

// Me は現在のユーザーを返す。未サインインの場合は {"user": null}。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	var body struct {
		User *userResponse `json:"user"`
	}
	if u := middleware.UserFromContext(r.Context()); u != nil {
		body.User = &userResponse{ID: u.ID, Email: u.Email, Name: u.Name}
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *AuthHandler) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    value,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}
