// Package security はIdPとの通信とIdP由来のプロフィール値の検証を提供する。
package security

import (
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// ErrUnsafeURL は外部URLとして扱えないURLを表す。
var ErrUnsafeURL = errors.New("unsafe URL")

// OutboundGuard は公開鍵取得用クライアントの生成とアバターURLの検証を担う。
type OutboundGuard interface {
	// NewSafeClient はhttps:443の公開アドレスにのみ接続するHTTPクライアントを返す。
	NewSafeClient(timeout time.Duration) *http.Client

	// ValidateURL はDNS解決をせずにURLを検証する。失敗時はErrUnsafeURLをラップする。
	ValidateURL(rawURL string) error
}

type outboundGuard struct{}

// NewOutboundGuard はOutboundGuardを生成する。
func NewOutboundGuard() *outboundGuard {
	return &outboundGuard{}
}

// NewSafeClient は接続時に解決後のIPを検査するクライアントを返す。
// JWKSエンドポイントが内部アドレスに解決された場合も接続しない。
func (g *outboundGuard) NewSafeClient(timeout time.Duration) *http.Client {
	cfg := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("https").
		SetAllowedPorts(443).
		Build()

	return safeurl.Client(cfg).Client
}

// ValidateURL はアバターURLとして保存してよいかを判定する。
// httpsかつ443番ポート、認証情報なし、ホストが公開アドレスであること。
func (g *outboundGuard) ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsafeURL, err)
	}

	switch {
	case !strings.EqualFold(u.Scheme, "https"):
		return fmt.Errorf("%w: scheme %q", ErrUnsafeURL, u.Scheme)
	case u.User != nil:
		return fmt.Errorf("%w: userinfo present", ErrUnsafeURL)
	case u.Hostname() == "":
		return fmt.Errorf("%w: no host", ErrUnsafeURL)
	case u.Port() != "" && u.Port() != "443":
		return fmt.Errorf("%w: port %s", ErrUnsafeURL, u.Port())
	}

	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if addr, err := netip.ParseAddr(host); err == nil {
		if !isPublicAddr(addr) {
			return fmt.Errorf("%w: non-public address %s", ErrUnsafeURL, addr)
		}
		return nil
	}
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return fmt.Errorf("%w: host %s", ErrUnsafeURL, host)
	}
	return nil
}

// isPublicAddr はループバック・リンクローカル（メタデータIPを含む）・プライベート・
// 0.0.0.0/8のいずれでもないユニキャストアドレスの場合にtrueを返す。
func isPublicAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	if addr.Is4() && addr.As4()[0] == 0 {
		return false
	}
	return addr.IsGlobalUnicast() && !addr.IsPrivate()
}
