package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ProviderCognito はidentitiesテーブルに記録するプロバイダー名。
const ProviderCognito = "cognito"

// DefaultScopes はホストUIへ要求するスコープ。基本的な識別情報のみに限定する。
var DefaultScopes = []string{"openid", "email"}

// CognitoConfig はCognitoホストUIの設定。
type CognitoConfig struct {
	// Domain はホストUIのドメイン（例: https://idfinder.auth.us-east-1.amazoncognito.com）。
	Domain       string
	ClientID     string
	ClientSecret string
	// RedirectSignIn はサインイン完了後のコールバックURL。
	RedirectSignIn string
	// RedirectSignOut はサインアウト完了後の遷移先URL。
	RedirectSignOut string
	Scopes          []string
	HTTPClient      *http.Client

	// テスト用にオーバーライド可能なURL
	AuthorizeURL string
	TokenURL     string
	UserInfoURL  string
	LogoutURL    string
}

// CognitoProvider はCognitoホストUIの認可コードフローによる認証を提供する。
type CognitoProvider struct {
	config CognitoConfig
}

// NewCognitoProvider はCognitoProviderを生成する。
func NewCognitoProvider(config CognitoConfig) *CognitoProvider {
	domain := strings.TrimRight(config.Domain, "/")
	if config.AuthorizeURL == "" {
		config.AuthorizeURL = domain + "/oauth2/authorize"
	}
	if config.TokenURL == "" {
		config.TokenURL = domain + "/oauth2/token"
	}
	if config.UserInfoURL == "" {
		config.UserInfoURL = domain + "/oauth2/userInfo"
	}
	if config.LogoutURL == "" {
		config.LogoutURL = domain + "/logout"
	}
	if len(config.Scopes) == 0 {
		config.Scopes = DefaultScopes
	}
	if config.HTTPClient == nil {
		config.HTTPClient = http.DefaultClient
	}
	return &CognitoProvider{config: config}
}

// LoginURL はホストUIの認可URLを生成する。
func (p *CognitoProvider) LoginURL(state string) string {
	params := url.Values{
		"client_id":     {p.config.ClientID},
		"redirect_uri":  {p.config.RedirectSignIn},
		"response_type": {"code"},
		"scope":         {strings.Join(p.config.Scopes, " ")},
		"state":         {state},
	}
	return p.config.AuthorizeURL + "?" + params.Encode()
}

// LogoutURL はホストUIのサインアウトURLを生成する。
func (p *CognitoProvider) LogoutURL() string {
	params := url.Values{
		"client_id":  {p.config.ClientID},
		"logout_uri": {p.config.RedirectSignOut},
	}
	return p.config.LogoutURL + "?" + params.Encode()
}

type cognitoTokenResponse struct {
	IDToken     string `json:"id_token"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type cognitoUserInfo struct {
	Sub      string `json:"sub"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
// id_tokenのクレームは署名検証を行わずに読み取る。
// id_tokenからsubが得られない場合はuserInfoエンドポイントを利用する。
func (p *CognitoProvider) ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error) {
	tokens, err := p.exchangeToken(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}

	if info, ok := claimsFromIDToken(tokens.IDToken); ok {
		return info, nil
	}

	if tokens.AccessToken == "" {
		return nil, errors.New("token response contains neither id_token claims nor access_token")
	}
	userInfo, err := p.fetchUserInfo(ctx, tokens.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}

	return &OAuthUserInfo{
		ProviderUserID: userInfo.Sub,
		Email:          userInfo.Email,
		Name:           firstNonEmpty(userInfo.Name, userInfo.Username, userInfo.Email),
		Provider:       ProviderCognito,
	}, nil
}

func (p *CognitoProvider) exchangeToken(ctx context.Context, code string) (*cognitoTokenResponse, error) {
	data := url.Values{
		"grant_type":   {"authorization_code"},
		"client_id":    {p.config.ClientID},
		"code":         {code},
		"redirect_uri": {p.config.RedirectSignIn},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if p.config.ClientSecret != "" {
		req.SetBasicAuth(p.config.ClientID, p.config.ClientSecret)
	}

	resp, err := p.config.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token exchange failed with status %d: %s", resp.StatusCode, string(body))
	}

	var tokens cognitoTokenResponse
	if err := json.Unmarshal(body, &tokens); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	return &tokens, nil
}

func (p *CognitoProvider) fetchUserInfo(ctx context.Context, accessToken string) (*cognitoUserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.UserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create user info request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.config.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("user info request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read user info response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user info fetch failed with status %d: %s", resp.StatusCode, string(body))
	}

	var info cognitoUserInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("failed to parse user info response: %w", err)
	}
	if info.Sub == "" {
		return nil, errors.New("empty sub in user info response")
	}
	return &info, nil
}

// claimsFromIDToken はid_tokenのクレームからユーザー情報を取り出す。
func claimsFromIDToken(idToken string) (*OAuthUserInfo, bool) {
	if idToken == "" {
		return nil, false
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		return nil, false
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, false
	}

	email := stringClaim(claims, "email")
	return &OAuthUserInfo{
		ProviderUserID: sub,
		Email:          email,
		Name:           firstNonEmpty(stringClaim(claims, "name"), stringClaim(claims, "cognito:username"), email),
		Provider:       ProviderCognito,
	}, true
}

func stringClaim(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// compile-time interface check
var _ OAuthProvider = (*CognitoProvider)(nil)
