package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/suppleit/internal/metrics"
	"github.com/hitoshi/suppleit/internal/model"
)

// RevocationChecker は失効済みトークンの照会に必要な操作。
type RevocationChecker interface {
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// MemberFinder は会員の検索に必要な操作。repository.MemberRepositoryの部分集合。
type MemberFinder interface {
	FindByEmail(ctx context.Context, email string) (*model.Member, error)
}

// PublicRule は認証処理を行わずに通過させるパスの規則。
// Methodが空の場合は全メソッドに一致する。
type PublicRule struct {
	Method string
	Prefix string
}

func (p PublicRule) matches(r *http.Request) bool {
	if p.Method != "" && p.Method != r.Method {
		return false
	}
	return strings.HasPrefix(r.URL.Path, p.Prefix)
}

// DefaultPublicRules はRequestGateが素通しするパスの既定値。
// ログアウトは失効済みトークンでの再呼び出しを成功扱いにするため含める。
var DefaultPublicRules = []PublicRule{
	{Prefix: "/api/social/login/"},
	{Method: http.MethodGet, Prefix: "/api/notice"},
	{Method: http.MethodGet, Prefix: "/api/reviews"},
	{Method: http.MethodPost, Prefix: "/api/auth/login"},
	{Method: http.MethodPost, Prefix: "/api/auth/refresh"},
	{Method: http.MethodPost, Prefix: "/api/auth/find/password"},
	{Method: http.MethodPost, Prefix: "/api/auth/logout"},
}

// RequestGate はリクエストごとにBearerトークンから呼び出し元を確立する。
// トークンが無いリクエストは未認証のまま通し、拒否は後段のポリシーに任せる。
type RequestGate struct {
	tokens      TokenValidator
	revocations RevocationChecker
	members     MemberFinder
	public      []PublicRule
	metrics     metrics.MetricsCollector
}

// NewRequestGate はRequestGateを生成する。publicがnilの場合はDefaultPublicRulesを使う。
func NewRequestGate(
	tokens TokenValidator,
	revocations RevocationChecker,
	members MemberFinder,
	public []PublicRule,
	mc metrics.MetricsCollector,
) *RequestGate {
	if public == nil {
		public = DefaultPublicRules
	}
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &RequestGate{
		tokens:      tokens,
		revocations: revocations,
		members:     members,
		public:      public,
		metrics:     mc,
	}
}

// Middleware はRequestGateをHTTPミドルウェアとして返す。
// 失効済み・無効なトークンは401で即座に拒否し、ハンドラーには到達させない。
// 認証処理中の想定外のエラーやpanicも500ではなく401として返す。
func (g *RequestGate) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if g.isPublic(r) {
				next.ServeHTTP(w, r)
				return
			}

			identity, err := g.resolve(r)
			if err != nil {
				g.reject(w, r, err)
				return
			}

			if identity != nil {
				r = r.WithContext(ContextWithIdentity(r.Context(), identity))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (g *RequestGate) isPublic(r *http.Request) bool {
	for _, rule := range g.public {
		if rule.matches(r) {
			return true
		}
	}
	return false
}

// resolve はトークンの失効確認、検証、会員の解決を順に行う。
// トークンが無い場合と会員が見つからない場合は(nil, nil)を返す。
func (g *RequestGate) resolve(r *http.Request) (identity *Identity, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			identity = nil
			err = fmt.Errorf("panic during authentication: %v", rec)
		}
	}()

	tok, ok := bearerToken(r.Header)
	if !ok {
		return nil, nil
	}

	ctx := r.Context()
	revoked, err := g.revocations.IsRevoked(ctx, tok)
	if err != nil {
		return nil, fmt.Errorf("revocation check failed: %w", err)
	}
	if revoked {
		return nil, model.NewRevokedTokenError()
	}

	if !g.tokens.Validate(tok) {
		return nil, model.NewInvalidTokenError("アクセストークンが無効または期限切れです。")
	}

	email, err := g.tokens.Subject(tok)
	if err != nil {
		return nil, fmt.Errorf("failed to read token subject: %w", err)
	}

	member, err := g.members.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve member: %w", err)
	}
	if member == nil {
		slog.Warn("token subject has no member, continuing unauthenticated",
			slog.String("email", email),
		)
		return nil, nil
	}

	return NewIdentity(member), nil
}

func (g *RequestGate) reject(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	reason := "error"
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case model.ErrCodeRevokedToken:
			reason = "revoked"
		case model.ErrCodeInvalidToken:
			reason = "invalid"
		}
	} else {
		apiErr = model.NewUnauthorizedError()
		apiErr.Message = fmt.Sprintf("認証処理に失敗しました: %v", err)
		slog.Error("authentication failed unexpectedly",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}

	g.metrics.RecordGateRejection(reason)
	WriteErrorResponse(w, http.StatusUnauthorized, apiErr)
}
