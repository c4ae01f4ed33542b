// Package security は外部URLの検証と表示テキストの無害化を提供する。
package security

import (
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// ErrBlockedURL は内部ネットワークを指す、または形式が許可されないURLを表す。
var ErrBlockedURL = errors.New("blocked url")

// SSRFGuardService は外部URLに関する防御機能のインターフェース。
// 届出の写真URLの検証と、IdPへの通信に使うHTTPクライアントの生成で使用される。
type SSRFGuardService interface {
	// NewSafeClient は内部ネットワークへの接続を拒否するHTTPクライアントを生成する。
	NewSafeClient(timeout time.Duration) *http.Client

	// ValidateURL はURLを静的に検証する。拒否した場合はErrBlockedURLをラップして返す。
	ValidateURL(rawURL string) error
}

var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"), // クラウドのメタデータIPを含む
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
}

// blockedHostSuffixes は名前解決せずに拒否する内部向けドメイン。
var blockedHostSuffixes = []string{".localhost", ".local", ".internal"}

type ssrfGuard struct{}

// NewSSRFGuard はSSRFGuardServiceの実装を生成する。
func NewSSRFGuard() *ssrfGuard {
	return &ssrfGuard{}
}

// NewSafeClient はhttpsの443番ポートにのみ接続するクライアントを返す。
// safeurlは名前解決後のIPをダイヤル時に検証するため、DNS再バインディングも拒否される。
func (g *ssrfGuard) NewSafeClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("https").
		SetAllowedPorts(443).
		Build()

	return safeurl.Client(config).Client
}

// ValidateURL は利用者入力のURLを名前解決せずに検証する。
func (g *ssrfGuard) ValidateURL(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return fmt.Errorf("%w: empty URL", ErrBlockedURL)
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBlockedURL, err)
	}

	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
	default:
		return fmt.Errorf("%w: disallowed scheme %q", ErrBlockedURL, parsed.Scheme)
	}
	if parsed.User != nil {
		return fmt.Errorf("%w: credentials in URL", ErrBlockedURL)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("%w: empty host", ErrBlockedURL)
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		if isBlockedAddr(addr) {
			return fmt.Errorf("%w: address %s", ErrBlockedURL, addr)
		}
		return nil
	}
	if isBlockedHostname(host) {
		return fmt.Errorf("%w: host %s", ErrBlockedURL, host)
	}
	return nil
}

// isBlockedAddr はIPv4射影アドレスをIPv4として判定する。
func isBlockedAddr(addr netip.Addr) bool {
	addr = addr.Unmap().WithZone("")
	if addr.IsUnspecified() {
		return true
	}
	return slices.ContainsFunc(blockedPrefixes, func(p netip.Prefix) bool {
		return p.Contains(addr)
	})
}

func isBlockedHostname(host string) bool {
	lower := strings.TrimSuffix(strings.ToLower(host), ".")
	if lower == "localhost" {
		return true
	}
	return slices.ContainsFunc(blockedHostSuffixes, func(suffix string) bool {
		return strings.HasSuffix(lower, suffix)
	})
}
