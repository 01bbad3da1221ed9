package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionTTL はセッショントークンの有効期間。
const SessionTTL = 24 * time.Hour

// HMAC鍵として受け付ける最小バイト数
const minSecretLength = 32

// ErrInvalidSession はセッショントークンが無効または期限切れであることを表す。
var ErrInvalidSession = errors.New("invalid session token")

// SessionClaims はセッショントークンのペイロード。
type SessionClaims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// IssuedSession は発行したトークンとその失効時刻。
type IssuedSession struct {
	Token     string
	ExpiresAt time.Time
}

// SessionManager はHS256で署名したステートレスなセッショントークンを発行・検証する。
type SessionManager struct {
	secret []byte
	now    func() time.Time
}

// NewSessionManager はSessionManagerを生成する。nowがnilの場合はtime.Nowを使う。
func NewSessionManager(secret string, now func() time.Time) (*SessionManager, error) {
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("session secret must be at least %d bytes", minSecretLength)
	}
	if now == nil {
		now = time.Now
	}
	return &SessionManager{secret: []byte(secret), now: now}, nil
}

// Issue はユーザーIDとメールアドレスを埋め込んだトークンを発行する。
// jtiを毎回払い出すため、同一秒内の発行でも異なるトークンになる。
func (m *SessionManager) Issue(userID, email string) (*IssuedSession, error) {
	issuedAt := m.now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(SessionTTL)

	claims := SessionClaims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session token: %w", err)
	}
	return &IssuedSession{Token: signed, ExpiresAt: expiresAt}, nil
}

// Parse はトークンの署名と有効期限を検証し、クレームを返す。
// 失敗時は常にErrInvalidSessionをラップしたエラーを返す。
func (m *SessionManager) Parse(token string) (*SessionClaims, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidSession)
	}

	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: missing userId claim", ErrInvalidSession)
	}
	return claims, nil
}
