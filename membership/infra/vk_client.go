package infra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"membership-gateway/membership/domain"

	"go.uber.org/zap"
)

const (
	DefaultAPIVersion = "5.131"
	DefaultAPILang    = "0"

	methodUsersGet       = "users.get"
	methodGroupsIsMember = "groups.isMember"

	maxBodyBytes = 1 << 20
)

// StatusError é devolvido quando a API externa responde fora de 2xx.
// É falha de transporte, não erro de domínio.
type StatusError struct {
	Method     string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("vk %s: unexpected status %d", e.Method, e.StatusCode)
}

// TokenWaiter limita chamadas por token de acesso antes de sair para a rede.
type TokenWaiter interface {
	Wait(ctx context.Context, token string) error
}

// VKClient implementa domain.Upstream sobre a API HTTP+JSON do VK.
type VKClient struct {
	baseURL    *url.URL
	httpClient *http.Client
	version    string
	lang       string
	limiter    TokenWaiter
	logger     *zap.Logger
}

type VKOption func(*VKClient)

func WithHTTPClient(c *http.Client) VKOption {
	return func(v *VKClient) { v.httpClient = c }
}

func WithAPIVersion(version string) VKOption {
	return func(v *VKClient) { v.version = version }
}

func WithAPILang(lang string) VKOption {
	return func(v *VKClient) { v.lang = lang }
}

func WithTokenLimiter(l TokenWaiter) VKOption {
	return func(v *VKClient) { v.limiter = l }
}

func WithLogger(l *zap.Logger) VKOption {
	return func(v *VKClient) { v.logger = l }
}

func NewVKClient(baseURL string, opts ...VKOption) (*VKClient, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse vk api url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("vk api url must be absolute: %q", baseURL)
	}

	c := &VKClient{
		baseURL:    u,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		version:    DefaultAPIVersion,
		lang:       DefaultAPILang,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type vkUser struct {
	LastName  string `json:"last_name"`
	FirstName string `json:"first_name"`
	Nickname  string `json:"nickname"`
}

type vkError struct {
	Code    int    `json:"error_code"`
	Message string `json:"error_msg"`
}

// FetchUser busca um usuário pelo id. Lista vazia vira UserNotFound.
func (c *VKClient) FetchUser(ctx context.Context, userID, accessToken string) (domain.UserProfile, error) {
	c.logger.Info("fetching user", zap.String("user_id", userID))

	params := url.Values{}
	params.Set("user_ids", userID)
	params.Set("field", "nickname")

	body, err := c.call(ctx, methodUsersGet, params, accessToken)
	if err != nil {
		return domain.UserProfile{}, err
	}

	var payload struct {
		Response []vkUser `json:"response"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return domain.UserProfile{}, fmt.Errorf("decode %s: %w", methodUsersGet, err)
	}
	// um objeto "error" não traz "response" e cai aqui também.
	if len(payload.Response) == 0 {
		return domain.UserProfile{}, domain.NewUserNotFound(userID)
	}

	u := payload.Response[0]
	return domain.UserProfile{LastName: u.LastName, FirstName: u.FirstName, Nickname: u.Nickname}, nil
}

// CheckMembership consulta se o usuário participa do grupo.
//
// A API responde 200 tanto para sucesso quanto para parâmetro inválido, então
// o corpo é lido em duas etapas: primeiro procura o objeto "error", depois
// decodifica a flag numérica.
func (c *VKClient) CheckMembership(ctx context.Context, userID, groupID, accessToken string) (bool, error) {
	c.logger.Info("checking membership", zap.String("user_id", userID), zap.String("group_id", groupID))

	params := url.Values{}
	params.Set("user_id", userID)
	params.Set("group_id", groupID)

	body, err := c.call(ctx, methodGroupsIsMember, params, accessToken)
	if err != nil {
		return false, err
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return false, fmt.Errorf("decode %s: %w", methodGroupsIsMember, err)
	}

	if raw, ok := doc["error"]; ok {
		var vkErr vkError
		if err := json.Unmarshal(raw, &vkErr); err != nil {
			return false, fmt.Errorf("decode %s error: %w", methodGroupsIsMember, err)
		}
		return false, domain.NewInvalidParameters(vkErr.Message)
	}

	raw, ok := doc["response"]
	if !ok {
		return false, fmt.Errorf("decode %s: missing response", methodGroupsIsMember)
	}
	var flag int
	if err := json.Unmarshal(raw, &flag); err != nil {
		return false, fmt.Errorf("decode %s response: %w", methodGroupsIsMember, err)
	}
	return flag == 1, nil
}

func (c *VKClient) call(ctx context.Context, method string, params url.Values, accessToken string) ([]byte, error) {
	if err := c.waitTurn(ctx, accessToken); err != nil {
		return nil, fmt.Errorf("vk %s: rate limit wait: %w", method, err)
	}

	params.Set("access_token", accessToken)
	params.Set("v", c.version)
	params.Set("lang", c.lang)

	u := c.baseURL.JoinPath(method)
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("vk %s: build request: %w", method, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vk %s: %w", method, scrubToken(err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &StatusError{Method: method, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("vk %s: read body: %w", method, err)
	}
	return body, nil
}

// waitTurn espera a vez do token no limiter. A espera fica limitada ao mesmo
// timeout do http.Client: o contexto do voo não é cancelado pelo chamador.
func (c *VKClient) waitTurn(ctx context.Context, accessToken string) error {
	if c.limiter == nil {
		return nil
	}
	if d := c.httpClient.Timeout; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	return c.limiter.Wait(ctx, accessToken)
}

// scrubToken remove a URL (que carrega o access_token) de erros do http.Client.
func scrubToken(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return fmt.Errorf("%s: %w", uerr.Op, uerr.Err)
	}
	return err
}
