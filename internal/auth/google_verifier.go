package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hitoshi/idgate/internal/model"
)

const (
	// DefaultGoogleJWKSURL はGoogleのIDトークン署名鍵の公開エンドポイント。
	DefaultGoogleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"

	googleIssuer       = "https://accounts.google.com"
	googleIssuerLegacy = "accounts.google.com"
)

// ErrInvalidAssertion はIdPアサーションの検証に失敗したことを表す。
var ErrInvalidAssertion = errors.New("invalid identity assertion")

// CredentialVerifier はIdPが発行したアサーションを検証するインターフェース。
type CredentialVerifier interface {
	// Verify はアサーションの署名、audience、有効期限を検証し、プロフィール情報を返す。
	// 検証に失敗した場合はErrInvalidAssertionをラップしたエラーを返す。
	Verify(ctx context.Context, assertion string) (*model.IdentityClaims, error)
}

// GoogleVerifierConfig はGoogleVerifierの設定。
type GoogleVerifierConfig struct {
	ClientID string

	// 以下はテスト用にオーバーライド可能
	JWKSURL    string
	HTTPClient *http.Client
	Now        func() time.Time
}

// GoogleVerifier はGoogle Identity ServicesのIDトークンを検証する。
// 公開鍵は初回検証時に取得し、未知のkidを受け取った時点で再取得する。
type GoogleVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewGoogleVerifier はGoogleVerifierを生成する。
// ctxは公開鍵取得に使うHTTPクライアントを保持するため、サーバーの生存期間と同じものを渡す。
func NewGoogleVerifier(ctx context.Context, config GoogleVerifierConfig) (*GoogleVerifier, error) {
	if config.ClientID == "" {
		return nil, errors.New("google client ID is required")
	}
	if config.JWKSURL == "" {
		config.JWKSURL = DefaultGoogleJWKSURL
	}
	if config.HTTPClient != nil {
		ctx = oidc.ClientContext(ctx, config.HTTPClient)
	}

	keySet := oidc.NewRemoteKeySet(ctx, config.JWKSURL)

	// Googleはissに2種類の値を使うため、issuerはVerify内で個別に検証する
	verifier := oidc.NewVerifier(googleIssuer, keySet, &oidc.Config{
		ClientID:             config.ClientID,
		SupportedSigningAlgs: []string{oidc.RS256},
		SkipIssuerCheck:      true,
		Now:                  config.Now,
	})

	return &GoogleVerifier{verifier: verifier}, nil
}

// googleClaims はGoogle IDトークンのうち利用するクレーム。
type googleClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// Verify はIDトークンを検証し、プロフィール情報を返す。
func (v *GoogleVerifier) Verify(ctx context.Context, assertion string) (*model.IdentityClaims, error) {
	assertion = strings.TrimSpace(assertion)
	if assertion == "" {
		return nil, fmt.Errorf("%w: empty assertion", ErrInvalidAssertion)
	}

	idToken, err := v.verifier.Verify(ctx, assertion)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAssertion, err)
	}

	if idToken.Issuer != googleIssuer && idToken.Issuer != googleIssuerLegacy {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrInvalidAssertion, idToken.Issuer)
	}
	if idToken.Subject == "" {
		return nil, fmt.Errorf("%w: missing sub claim", ErrInvalidAssertion)
	}

	var claims googleClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: failed to parse claims: %v", ErrInvalidAssertion, err)
	}
	if claims.Email == "" {
		return nil, fmt.Errorf("%w: missing email claim", ErrInvalidAssertion)
	}
	if !claims.EmailVerified {
		return nil, fmt.Errorf("%w: email is not verified", ErrInvalidAssertion)
	}

	return &model.IdentityClaims{
		Subject:       idToken.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
		Picture:       claims.Picture,
		Issuer:        idToken.Issuer,
	}, nil
}

// compile-time interface check
var _ CredentialVerifier = (*GoogleVerifier)(nil)
