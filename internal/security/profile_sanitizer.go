package security

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// maxDisplayNameRunes は表示名として保存する最大文字数。
const maxDisplayNameRunes = 200

// ProfileSanitizer はIdPから受け取ったプロフィール情報を保存前に正規化する。
// 表示名はダッシュボードに描画されるため、マークアップを全て除去する。
type ProfileSanitizer struct {
	policy *bluemonday.Policy
	guard  OutboundGuard
}

// NewProfileSanitizer はProfileSanitizerを生成する。
// 表示名にはbluemondayのStrictPolicy（全タグ除去）を適用する。
func NewProfileSanitizer(guard OutboundGuard) *ProfileSanitizer {
	return &ProfileSanitizer{
		policy: bluemonday.StrictPolicy(),
		guard:  guard,
	}
}

// DisplayName は表示名からタグを除去し、空白を正規化する。
// 結果が空になった場合はfallback（通常はメールアドレス）を返す。
func (s *ProfileSanitizer) DisplayName(name, fallback string) string {
	// StrictPolicyはエンティティをエスケープして返すため、保存用に元へ戻す
	cleaned := html.UnescapeString(s.policy.Sanitize(name))
	cleaned = strings.Join(strings.Fields(cleaned), " ")

	if cleaned == "" {
		return fallback
	}
	if utf8.RuneCountInString(cleaned) > maxDisplayNameRunes {
		cleaned = string([]rune(cleaned)[:maxDisplayNameRunes])
	}
	return cleaned
}

// AvatarURL は公開httpsのURLのみを通し、それ以外は空文字列を返す。
func (s *ProfileSanitizer) AvatarURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if err := s.guard.ValidateURL(raw); err != nil {
		return ""
	}
	return raw
}
