// Package token はアクセストークン・リフレッシュトークンの発行と検証を提供する。
// 署名はHS256（共有シークレット）で行い、有効性の判定はこのパッケージのみが担う。
package token

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind はトークンの種別を表す。署名対象のtypクレームとして埋め込まれる。
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// DefaultRefreshTTL はリフレッシュトークンのデフォルト有効期間（7日）。
const DefaultRefreshTTL = 7 * 24 * time.Hour

// MinTTL はトークン有効期間の下限。expクレームは秒単位のため、これ未満は受け付けない。
const MinTTL = time.Second

// ErrInvalidToken は署名・構造が不正なトークンを解析しようとした場合のエラー。
var ErrInvalidToken = errors.New("invalid token")

// Claims はトークンに埋め込むクレーム。
// Roleはアクセストークンのみが持つ。
type Claims struct {
	Role string `json:"role,omitempty"`
	Kind Kind   `json:"typ"`
	jwt.RegisteredClaims
}

// Config はCodecの設定。
type Config struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration // 0の場合はDefaultRefreshTTL
}

// Codec はトークンの発行と検証を行う。
// 生成後は不変で、複数goroutineから同時に利用できる。
type Codec struct {
	key        []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	parser     *jwt.Parser
}

// NewCodec はCodecを生成する。
func NewCodec(cfg Config) (*Codec, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("token signing secret is required")
	}
	if cfg.AccessTTL < MinTTL {
		return nil, fmt.Errorf("access token TTL must be at least %v: %v", MinTTL, cfg.AccessTTL)
	}
	if cfg.RefreshTTL == 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	if cfg.RefreshTTL < MinTTL {
		return nil, fmt.Errorf("refresh token TTL must be at least %v: %v", MinTTL, cfg.RefreshTTL)
	}

	c := &Codec{
		key:        []byte(cfg.Secret),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        time.Now,
	}
	c.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return c.now() }),
	)
	return c, nil
}

// WithClock は内部時計を差し替える。テスト用。
// 並行利用を始める前に呼び出すこと。
func (c *Codec) WithClock(now func() time.Time) *Codec {
	if now != nil {
		c.now = now
	}
	return c
}

// AccessTTL はアクセストークンの有効期間を返す。
func (c *Codec) AccessTTL() time.Duration {
	return c.accessTTL
}

// IssueAccessToken はemailをsubject、"ROLE_"+大文字のroleをroleクレームとするアクセストークンを発行する。
func (c *Codec) IssueAccessToken(email, role string) (string, error) {
	return c.issue(email, KindAccess, "ROLE_"+strings.ToUpper(role), c.accessTTL)
}

// IssueRefreshToken はemailのみをsubjectとするリフレッシュトークンを発行する。
func (c *Codec) IssueRefreshToken(email string) (string, error) {
	return c.issue(email, KindRefresh, "", c.refreshTTL)
}

func (c *Codec) issue(email string, kind Kind, role string, ttl time.Duration) (string, error) {
	if email == "" {
		return "", fmt.Errorf("token subject is required")
	}
	now := c.now()
	claims := Claims{
		Role: role,
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiryCeil(now.Add(ttl))),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", kind, err)
	}
	return signed, nil
}

// expiryCeil はexpを次の秒に切り上げる。NumericDateは秒未満を切り捨てるため、
// そのままでは有効期間が最大1秒短くなる。
func expiryCeil(t time.Time) time.Time {
	if truncated := t.Truncate(time.Second); !truncated.Equal(t) {
		return truncated.Add(time.Second)
	}
	return t
}

// Validate はアクセストークンとして有効かどうかを返す。
// 構造不正、署名不正、非対応アルゴリズム、期限切れ、種別違いのいずれでもfalseを返し、panicしない。
func (c *Codec) Validate(tokenString string) bool {
	return c.validateKind(tokenString, KindAccess)
}

// ValidateRefresh はリフレッシュトークンとして有効かどうかを返す。
func (c *Codec) ValidateRefresh(tokenString string) bool {
	return c.validateKind(tokenString, KindRefresh)
}

func (c *Codec) validateKind(tokenString string, want Kind) bool {
	claims, err := c.parse(tokenString)
	if err != nil {
		slog.Warn("token rejected",
			slog.String("kind", string(want)),
			slog.String("reason", rejectReason(err)),
		)
		return false
	}
	if claims.Kind != want {
		slog.Warn("token rejected",
			slog.String("kind", string(want)),
			slog.String("reason", "kind mismatch"),
			slog.String("actual_kind", string(claims.Kind)),
		)
		return false
	}
	return true
}

// IsExpired はトークンが期限切れかどうかを返す。
// 解析に失敗した場合でも期限切れ以外の理由ならfalseを返すため、
// 呼び出し側は先にValidateで不正トークンを除外すること。
func (c *Codec) IsExpired(tokenString string) bool {
	claims, err := c.parse(tokenString)
	if err != nil {
		return errors.Is(err, jwt.ErrTokenExpired)
	}
	return !c.now().Before(claims.ExpiresAt.Time)
}

// Subject はsubjectクレーム（email）を返す。
// 署名・構造・期限のいずれかが不正な場合はErrInvalidTokenを返す。
func (c *Codec) Subject(tokenString string) (string, error) {
	claims, err := c.parse(tokenString)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: empty subject", ErrInvalidToken)
	}
	return claims.Subject, nil
}

// Role はroleクレームを返す。リフレッシュトークンや解析不能な場合はfalse。
func (c *Codec) Role(tokenString string) (string, bool) {
	claims, err := c.parse(tokenString)
	if err != nil || claims.Role == "" {
		return "", false
	}
	return claims.Role, true
}

// Expiry は失効管理に用いる有効期限を返す。
// 署名が正しければ期限切れでも値を返し、解析不能な場合はfalseを返す。
func (c *Codec) Expiry(tokenString string) (time.Time, bool) {
	claims, err := c.parse(tokenString)
	if err != nil && !errors.Is(err, jwt.ErrTokenExpired) {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

func (c *Codec) parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	if _, err := c.parser.ParseWithClaims(tokenString, claims, c.keyFunc); err != nil {
		return claims, err
	}
	return claims, nil
}

func (c *Codec) keyFunc(t *jwt.Token) (interface{}, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
	}
	return c.key, nil
}

// rejectReason はログ用に拒否理由を分類する。
func rejectReason(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "expired"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "signature"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "malformed"
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return "unverifiable"
	default:
		return "invalid"
	}
}
