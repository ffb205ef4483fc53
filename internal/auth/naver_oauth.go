package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/hitoshi/suppleit/internal/model"
)

const (
	defaultNaverAuthURL     = "https://nid.naver.com/oauth2.0/authorize"
	defaultNaverTokenURL    = "https://nid.naver.com/oauth2.0/token"
	defaultNaverUserInfoURL = "https://openapi.naver.com/v1/nid/me"
)

// NaverOAuthConfig はNaver OAuthプロバイダーの設定。
type NaverOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// テスト用にオーバーライド可能なURL
	AuthURL     string
	TokenURL    string
	UserInfoURL string
}

// NaverOAuthProvider はNaverログインによる認証を提供する。
type NaverOAuthProvider struct {
	config NaverOAuthConfig
	client *http.Client
}

// NewNaverOAuthProvider はNaverOAuthProviderを生成する。
// clientがnilの場合はhttp.DefaultClientを使う。
func NewNaverOAuthProvider(config NaverOAuthConfig, client *http.Client) *NaverOAuthProvider {
	if config.AuthURL == "" {
		config.AuthURL = defaultNaverAuthURL
	}
	if config.TokenURL == "" {
		config.TokenURL = defaultNaverTokenURL
	}
	if config.UserInfoURL == "" {
		config.UserInfoURL = defaultNaverUserInfoURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &NaverOAuthProvider{config: config, client: client}
}

// Endpoints は外部通信先のURLを返す。起動時の検証に使う。
func (p *NaverOAuthProvider) Endpoints() []string {
	return []string{p.config.TokenURL, p.config.UserInfoURL}
}

// GetLoginURL はNaverログインの認証URLを生成する。
func (p *NaverOAuthProvider) GetLoginURL(state string) string {
	params := url.Values{
		"client_id":     {p.config.ClientID},
		"redirect_uri":  {p.config.RedirectURL},
		"response_type": {"code"},
		"state":         {state},
	}
	return p.config.AuthURL + "?" + params.Encode()
}

type naverTokenResponse struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// naverProfileResponse はNaverのプロフィールAPIのレスポンス。本体はresponse配下にある。
type naverProfileResponse struct {
	ResultCode string `json:"resultcode"`
	Message    string `json:"message"`
	Response   struct {
		ID       string `json:"id"`
		Email    string `json:"email"`
		Nickname string `json:"nickname"`
		Name     string `json:"name"`
	} `json:"response"`
}

// ExchangeCode は認可コードをアクセストークンに交換し、ユーザー情報を取得する。
// Naverはエラー時も200を返すことがあるため、errorフィールドも検査する。
func (p *NaverOAuthProvider) ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error) {
	var tokenResp naverTokenResponse
	err := postForm(ctx, p.client, p.config.TokenURL, url.Values{
		"code":          {code},
		"client_id":     {p.config.ClientID},
		"client_secret": {p.config.ClientSecret},
		"grant_type":    {"authorization_code"},
	}, &tokenResp)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange naver token: %w", err)
	}
	if tokenResp.Error != "" {
		return nil, fmt.Errorf("naver token error: %s: %s", tokenResp.Error, tokenResp.ErrorDescription)
	}
	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("empty access token in naver response")
	}

	var profile naverProfileResponse
	if err := getJSONWithBearer(ctx, p.client, p.config.UserInfoURL, tokenResp.AccessToken, &profile); err != nil {
		return nil, fmt.Errorf("failed to fetch naver profile: %w", err)
	}
	if profile.ResultCode != "00" {
		return nil, fmt.Errorf("naver profile error: %s %s", profile.ResultCode, profile.Message)
	}
	if profile.Response.ID == "" {
		return nil, fmt.Errorf("empty id in naver profile response")
	}

	name := profile.Response.Nickname
	if name == "" {
		name = profile.Response.Name
	}

	return &OAuthUserInfo{
		ProviderUserID: profile.Response.ID,
		Email:          profile.Response.Email,
		Name:           name,
		Provider:       model.SocialNaver,
	}, nil
}

// compile-time interface check
var _ OAuthProvider = (*NaverOAuthProvider)(nil)
