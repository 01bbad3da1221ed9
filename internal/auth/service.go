// Package auth はIdPアサーションの検証、ユーザーのアップサート、セッショントークンの発行と検証を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/idgate/internal/metrics"
	"github.com/hitoshi/idgate/internal/model"
	"github.com/hitoshi/idgate/internal/repository"
)

// ProfileNormalizer はIdPのプロフィール情報を保存前に正規化する。
type ProfileNormalizer interface {
	DisplayName(name, fallback string) string
	AvatarURL(raw string) string
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	verifier CredentialVerifier
	users    repository.UserRepository
	sessions *SessionManager
	profile  ProfileNormalizer
	recorder metrics.Recorder
	now      func() time.Time
}

// NewService はServiceを生成する。recorderがnilの場合はメトリクスを記録しない。
func NewService(
	verifier CredentialVerifier,
	users repository.UserRepository,
	sessions *SessionManager,
	profile ProfileNormalizer,
	recorder metrics.Recorder,
) *Service {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Service{
		verifier: verifier,
		users:    users,
		sessions: sessions,
		profile:  profile,
		recorder: recorder,
		now:      time.Now,
	}
}

// Login はIdPアサーションを検証し、ユーザーをアップサートしてセッショントークンを発行する。
// 既存ユーザーはlast_loginのみ更新し、名前・メール・画像は初回登録時の値を保持する。
func (s *Service) Login(ctx context.Context, assertion string) (*model.LoginResult, error) {
	started := time.Now()
	claims, err := s.verifier.Verify(ctx, assertion)
	s.recorder.RecordProviderVerify(time.Since(started))
	if err != nil {
		s.recorder.RecordLogin(metrics.LoginInvalidAssertion)
		slog.Warn("identity assertion rejected", slog.String("error", err.Error()))
		return nil, model.NewInvalidGoogleTokenError(err)
	}

	user, created, err := s.upsertUser(ctx, claims)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeEmailConflict {
			s.recorder.RecordLogin(metrics.LoginEmailConflict)
		} else {
			s.recorder.RecordLogin(metrics.LoginError)
		}
		return nil, err
	}

	issued, err := s.sessions.Issue(user.ID, user.Email)
	if err != nil {
		s.recorder.RecordLogin(metrics.LoginError)
		return nil, fmt.Errorf("failed to issue session: %w", err)
	}

	s.recorder.RecordLogin(metrics.LoginSuccess)
	if created {
		s.recorder.RecordUserCreated()
		slog.Info("new user created",
			slog.String("user_id", user.ID),
			slog.String("email", user.Email),
		)
	} else {
		slog.Info("existing user logged in", slog.String("user_id", user.ID))
	}

	return &model.LoginResult{
		Token:     issued.Token,
		ExpiresAt: issued.ExpiresAt,
		User:      user,
		Created:   created,
	}, nil
}

// upsertUser はsubjectでユーザーを検索し、存在しなければ作成、存在すればlast_loginを更新する。
// 同一subjectの初回ログインが並行して作成に負けた場合は、勝者の行を再取得して更新側に回る。
func (s *Service) upsertUser(ctx context.Context, claims *model.IdentityClaims) (*model.User, bool, error) {
	now := s.now().UTC().Truncate(time.Microsecond)

	existing, err := s.users.FindByGoogleID(ctx, claims.Subject)
	if err != nil {
		return nil, false, fmt.Errorf("failed to find user: %w", err)
	}
	if existing != nil {
		if err := s.touchLastLogin(ctx, existing, now); err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	user := &model.User{
		ID:        uuid.NewString(),
		GoogleID:  claims.Subject,
		Email:     claims.Email,
		Name:      s.profile.DisplayName(claims.Name, claims.Email),
		Picture:   s.profile.AvatarURL(claims.Picture),
		CreatedAt: now,
		LastLogin: now,
	}

	createErr := s.users.Create(ctx, user)
	if createErr == nil {
		return user, true, nil
	}
	if !errors.Is(createErr, repository.ErrDuplicateKey) {
		return nil, false, fmt.Errorf("failed to create user: %w", createErr)
	}

	// 両方の一意制約に抵触した場合、どちらの制約名が報告されるかは不定のため必ず再検索する
	winner, err := s.users.FindByGoogleID(ctx, claims.Subject)
	if err != nil {
		return nil, false, fmt.Errorf("failed to find user after conflict: %w", err)
	}
	if winner != nil {
		slog.Info("concurrent first login resolved",
			slog.String("user_id", winner.ID),
		)
		if err := s.touchLastLogin(ctx, winner, now); err != nil {
			return nil, false, err
		}
		return winner, false, nil
	}

	if errors.Is(createErr, repository.ErrDuplicateEmail) {
		slog.Warn("email already linked to another account",
			slog.String("email", claims.Email),
		)
		return nil, false, model.NewEmailConflictError(createErr)
	}
	return nil, false, fmt.Errorf("failed to create user: %w", createErr)
}

func (s *Service) touchLastLogin(ctx context.Context, user *model.User, at time.Time) error {
	if err := s.users.UpdateLastLogin(ctx, user.ID, at); err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	user.LastLogin = at
	return nil
}

// VerifySession はセッショントークンを検証し、現在のユーザーをストアから再取得する。
// 署名不正・期限切れ・ユーザー削除済みはいずれも無効なセッションとして扱う。
func (s *Service) VerifySession(ctx context.Context, token string) (*model.User, error) {
	claims, err := s.sessions.Parse(token)
	if err != nil {
		s.recorder.RecordSessionVerify(metrics.VerifyInvalid)
		return nil, model.NewInvalidSessionError(err)
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		s.recorder.RecordSessionVerify(metrics.VerifyError)
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		s.recorder.RecordSessionVerify(metrics.VerifyInvalid)
		return nil, model.NewInvalidSessionError(fmt.Errorf("user %s no longer exists", claims.UserID))
	}

	s.recorder.RecordSessionVerify(metrics.VerifyValid)
	return user, nil
}
