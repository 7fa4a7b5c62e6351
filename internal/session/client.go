package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/invman/internal/model"
)

// ユーザーに表示するフォールバックメッセージ。
const (
	MsgLoginFailed        = "Login failed. Please try again."
	MsgRegistrationFailed = "Registration failed. Please try again."
	MsgRequestFailed      = "Request failed. Please try again."
)

const defaultTimeout = 10 * time.Second

// State はクライアントが保持する認証状態のスナップショット。
type State struct {
	Token string
	User  *model.UserSummary
}

// Authenticated はトークンを保持しているかどうかを返す。
func (s State) Authenticated() bool {
	return s.Token != ""
}

// Error はAPI呼び出しの失敗を表す。Messageはそのままユーザーに表示できる。
type Error struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Product はAPIが返す商品情報。
type Product struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	SKU       string    `json:"sku"`
	Price     float64   `json:"price"`
	Quantity  int       `json:"quantity"`
	Image     *string   `json:"image"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type authResponse struct {
	Message string            `json:"message"`
	Token   string            `json:"token"`
	User    model.UserSummary `json:"user"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// Option はClientの設定を変更する。
type Option func(*Client)

// WithHTTPTransport は下位のRoundTripperを差し替える。
func WithHTTPTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.transport = rt
	}
}

// WithTimeout はリクエストのタイムアウトを設定する。
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// Client はAPIサーバーとのセッションを管理する。
// 状態の読み取りは同期的に行え、変更は購読者へ同期的に通知される。
type Client struct {
	baseURL   string
	storage   Storage
	transport http.RoundTripper
	timeout   time.Duration

	// public はログイン・登録用、authorized は保存済みトークンを付与する
	public     *http.Client
	authorized *http.Client

	mu    sync.RWMutex
	state State

	subMu  sync.Mutex
	subs   map[int]func(State)
	nextID int
}

// NewClient はClientを生成し、storageから前回の状態を復元する。
// baseURLはAPIのルート（例: http://localhost:3001/api）。
func NewClient(ctx context.Context, baseURL string, storage Storage, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		storage: storage,
		timeout: defaultTimeout,
		subs:    make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.public = &http.Client{Transport: c.transport, Timeout: c.timeout}
	c.authorized = &http.Client{
		Transport: &BearerTransport{Base: c.transport, Token: c.Token},
		Timeout:   c.timeout,
	}

	state, err := c.restore(ctx)
	if err != nil {
		return nil, err
	}
	c.state = state
	return c, nil
}

// restore はstorageから状態を読み込む。
// トークンとユーザー情報が揃っていない場合は両方を破棄して未認証で開始する。
func (c *Client) restore(ctx context.Context) (State, error) {
	token, err := c.storage.Get(ctx, KeyToken)
	if err != nil {
		return State{}, fmt.Errorf("failed to load session token: %w", err)
	}
	rawUser, err := c.storage.Get(ctx, KeyUser)
	if err != nil {
		return State{}, fmt.Errorf("failed to load session user: %w", err)
	}
	if token == nil && rawUser == nil {
		return State{}, nil
	}

	var user model.UserSummary
	if len(token) == 0 || rawUser == nil || json.Unmarshal(rawUser, &user) != nil {
		if err := c.storage.Delete(ctx, KeyToken, KeyUser); err != nil {
			return State{}, fmt.Errorf("failed to clear inconsistent session: %w", err)
		}
		return State{}, nil
	}
	return State{Token: string(token), User: &user}, nil
}

// Login はメールアドレスとパスワードでログインし、成功時にセッションを保存する。
// 失敗した場合は既存の状態を変更しない。
func (c *Client) Login(ctx context.Context, email, password string) (*model.UserSummary, error) {
	body := map[string]string{"email": email, "password": password}
	return c.authenticate(ctx, "/auth/login", body, MsgLoginFailed)
}

// Register はユーザーを登録し、成功時にセッションを保存する。
// 失敗した場合は既存の状態を変更しない。
func (c *Client) Register(ctx context.Context, name, email, password string) (*model.UserSummary, error) {
	body := map[string]string{"name": name, "email": email, "password": password}
	return c.authenticate(ctx, "/auth/register", body, MsgRegistrationFailed)
}

func (c *Client) authenticate(ctx context.Context, path string, body any, fallback string) (*model.UserSummary, error) {
	var resp authResponse
	if err := c.do(ctx, c.public, http.MethodPost, path, body, &resp, fallback); err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, &Error{Message: fallback, Err: errors.New("response has no token")}
	}

	user := resp.User
	if err := c.commit(ctx, State{Token: resp.Token, User: &user}); err != nil {
		return nil, err
	}
	return &user, nil
}

// commit はstateを永続化してから保持し、購読者に通知する。
func (c *Client) commit(ctx context.Context, state State) error {
	rawUser, err := json.Marshal(state.User)
	if err != nil {
		return fmt.Errorf("failed to encode session user: %w", err)
	}
	if err := c.storage.Set(ctx, map[string][]byte{
		KeyToken: []byte(state.Token),
		KeyUser:  rawUser,
	}); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	c.mu.Lock()
	c.state = state
	c.mu.Unlock()

	c.publish(state)
	return nil
}

// Logout はローカルのセッションを破棄する。サーバーへの通知は行わない。
// storageの削除に失敗しても、メモリ上の状態は未認証になる。
func (c *Client) Logout(ctx context.Context) error {
	err := c.storage.Delete(ctx, KeyToken, KeyUser)

	c.mu.Lock()
	c.state = State{}
	c.mu.Unlock()

	c.publish(State{})
	if err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// State は現在の状態を返す。
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// CurrentUser は現在のユーザーを返す。未認証の場合はnil。
func (c *Client) CurrentUser() *model.UserSummary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state.User == nil {
		return nil
	}
	u := *c.state.User
	return &u
}

// IsAuthenticated はトークンを保持しているかどうかを返す。
func (c *Client) IsAuthenticated() bool {
	return c.State().Authenticated()
}

// Token は保存済みトークンを返す。未認証の場合は空文字列。
func (c *Client) Token() string {
	return c.State().Token
}

// Subscribe は状態変化の購読を登録し、現在の状態を即座に通知する。
// 戻り値の関数を呼ぶと購読を解除する。
func (c *Client) Subscribe(fn func(State)) (unsubscribe func()) {
	c.subMu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.subMu.Unlock()

	fn(c.State())

	var once sync.Once
	return func() {
		once.Do(func() {
			c.subMu.Lock()
			delete(c.subs, id)
			c.subMu.Unlock()
		})
	}
}

// publish は登録順に購読者へ通知する。
func (c *Client) publish(state State) {
	c.subMu.Lock()
	ids := make([]int, 0, len(c.subs))
	for id := range c.subs {
		ids = append(ids, id)
	}
	c.subMu.Unlock()

	slices.Sort(ids)
	for _, id := range ids {
		c.subMu.Lock()
		fn, ok := c.subs[id]
		c.subMu.Unlock()
		if ok {
			fn(state)
		}
	}
}

// Profile はサーバーから現在のユーザー情報を取得する。
func (c *Client) Profile(ctx context.Context) (*model.UserSummary, error) {
	var user model.UserSummary
	if err := c.do(ctx, c.authorized, http.MethodGet, "/auth/profile", nil, &user, MsgRequestFailed); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListProducts は全商品を取得する。
func (c *Client) ListProducts(ctx context.Context) ([]Product, error) {
	var products []Product
	if err := c.do(ctx, c.authorized, http.MethodGet, "/products", nil, &products, MsgRequestFailed); err != nil {
		return nil, err
	}
	return products, nil
}

// LatestProducts は最新の商品を取得する。
func (c *Client) LatestProducts(ctx context.Context) ([]Product, error) {
	var products []Product
	if err := c.do(ctx, c.authorized, http.MethodGet, "/products/latest", nil, &products, MsgRequestFailed); err != nil {
		return nil, err
	}
	return products, nil
}

// do はリクエストを1回だけ送信し、成功時にoutへデコードする。
func (c *Client) do(ctx context.Context, hc *http.Client, method, path string, in, out any, fallback string) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := hc.Do(req)
	if err != nil {
		return &Error{Message: fallback, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return responseError(resp, fallback)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{StatusCode: resp.StatusCode, Message: fallback, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

// responseError は失敗レスポンスをErrorに変換する。
// 400/401/403はサーバーのメッセージをそのまま使い、それ以外はfallbackを使う。
func responseError(resp *http.Response, fallback string) error {
	e := &Error{
		StatusCode: resp.StatusCode,
		Message:    fallback,
		Err:        fmt.Errorf("unexpected status %d", resp.StatusCode),
	}

	switch resp.StatusCode {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		var body errorResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&body); err == nil && body.Message != "" {
			e.Message = body.Message
		}
	}
	return e
}
