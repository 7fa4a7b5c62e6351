package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/invman/internal/model"
)

var alice = model.UserSummary{ID: "u-1", Name: "Alice", Email: "a@x.com"}

// fakeAPI はテスト用のAPIサーバー。
type fakeAPI struct {
	status      int
	body        any
	calls       atomic.Int32
	lastAuth    atomic.Value
	lastRequest atomic.Value
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.calls.Add(1)
	f.lastAuth.Store(r.Header.Get("Authorization"))
	f.lastRequest.Store(r.Method + " " + r.URL.Path)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(f.status)
	if f.body != nil {
		json.NewEncoder(w).Encode(f.body)
	}
}

func newTestClient(t *testing.T, api *fakeAPI, storage Storage) *Client {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	if storage == nil {
		storage = NewMemoryStorage()
	}
	c, err := NewClient(context.Background(), srv.URL+"/api", storage)
	require.NoError(t, err)
	return c
}

func successBody(token string) map[string]any {
	return map[string]any{"message": "Login successful", "token": token, "user": alice}
}

func errorBody(msg string) map[string]any {
	return map[string]any{"code": "X", "message": msg, "category": "client", "action": "retry"}
}

func TestClient_Login_Success(t *testing.T) {
	api := &fakeAPI{status: http.StatusOK, body: successBody("tok-1")}
	storage := NewMemoryStorage()
	c := newTestClient(t, api, storage)

	var seen []State
	c.Subscribe(func(s State) { seen = append(seen, s) })

	user, err := c.Login(context.Background(), "a@x.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, alice, *user)
	assert.Equal(t, "POST /api/auth/login", api.lastRequest.Load())

	assert.True(t, c.IsAuthenticated())
	assert.Equal(t, "tok-1", c.Token())
	assert.Equal(t, &alice, c.CurrentUser())

	token, err := storage.Get(context.Background(), KeyToken)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", string(token))
	rawUser, err := storage.Get(context.Background(), KeyUser)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"u-1","name":"Alice","email":"a@x.com"}`, string(rawUser))

	// 購読時の初期状態 + ログイン後の状態
	require.Len(t, seen, 2)
	assert.False(t, seen[0].Authenticated())
	assert.Equal(t, "tok-1", seen[1].Token)
}

func TestClient_Register_Success(t *testing.T) {
	api := &fakeAPI{status: http.StatusCreated, body: successBody("tok-r")}
	c := newTestClient(t, api, nil)

	user, err := c.Register(context.Background(), "Alice", "a@x.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", user.Name)
	assert.Equal(t, "POST /api/auth/register", api.lastRequest.Load())
	assert.Equal(t, "tok-r", c.Token())
}

func TestClient_ErrorSurfacing(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     any
		call     func(c *Client) error
		expected string
	}{
		{
			name:   "login 400 uses server message",
			status: http.StatusBadRequest,
			body:   errorBody("Invalid credentials"),
			call: func(c *Client) error {
				_, err := c.Login(context.Background(), "a@x.com", "bad")
				return err
			},
			expected: "Invalid credentials",
		},
		{
			name:   "login 500 falls back",
			status: http.StatusInternalServerError,
			body:   errorBody("database exploded"),
			call: func(c *Client) error {
				_, err := c.Login(context.Background(), "a@x.com", "secret1")
				return err
			},
			expected: MsgLoginFailed,
		},
		{
			name:   "register 400 uses server message",
			status: http.StatusBadRequest,
			body:   errorBody("User already exists"),
			call: func(c *Client) error {
				_, err := c.Register(context.Background(), "A", "a@x.com", "secret1")
				return err
			},
			expected: "User already exists",
		},
		{
			name:   "register 429 falls back",
			status: http.StatusTooManyRequests,
			body:   errorBody("Too many requests"),
			call: func(c *Client) error {
				_, err := c.Register(context.Background(), "A", "a@x.com", "secret1")
				return err
			},
			expected: MsgRegistrationFailed,
		},
		{
			name:   "register 400 without message falls back",
			status: http.StatusBadRequest,
			body:   map[string]string{"code": "X"},
			call: func(c *Client) error {
				_, err := c.Register(context.Background(), "A", "a@x.com", "secret1")
				return err
			},
			expected: MsgRegistrationFailed,
		},
		{
			name:   "profile 401 uses server message",
			status: http.StatusUnauthorized,
			body:   errorBody("Access token required"),
			call: func(c *Client) error {
				_, err := c.Profile(context.Background())
				return err
			},
			expected: "Access token required",
		},
		{
			name:   "profile 403 uses server message",
			status: http.StatusForbidden,
			body:   errorBody("Invalid token"),
			call: func(c *Client) error {
				_, err := c.Profile(context.Background())
				return err
			},
			expected: "Invalid token",
		},
		{
			name:   "products 404 falls back",
			status: http.StatusNotFound,
			body:   errorBody("User not found"),
			call: func(c *Client) error {
				_, err := c.ListProducts(context.Background())
				return err
			},
			expected: MsgRequestFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{status: tt.status, body: tt.body}
			c := newTestClient(t, api, nil)

			err := tt.call(c)
			require.Error(t, err)
			var apiErr *Error
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.expected, err.Error())
			// 自動リトライしない
			assert.Equal(t, int32(1), api.calls.Load())
		})
	}
}

func TestClient_Login_FailureKeepsPriorState(t *testing.T) {
	storage := NewMemoryStorage()
	require.NoError(t, storage.Set(context.Background(), map[string][]byte{
		KeyToken: []byte("old-token"),
		KeyUser:  []byte(`{"id":"u-1","name":"Alice","email":"a@x.com"}`),
	}))
	api := &fakeAPI{status: http.StatusBadRequest, body: errorBody("Invalid credentials")}
	c := newTestClient(t, api, storage)

	notified := 0
	unsubscribe := c.Subscribe(func(State) { notified++ })
	defer unsubscribe()

	_, err := c.Login(context.Background(), "a@x.com", "wrong")
	require.Error(t, err)

	assert.Equal(t, "old-token", c.Token())
	assert.Equal(t, &alice, c.CurrentUser())
	assert.Equal(t, 1, notified, "only the initial delivery")

	token, err := storage.Get(context.Background(), KeyToken)
	require.NoError(t, err)
	assert.Equal(t, "old-token", string(token))
}

func TestClient_NetworkErrorFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewClient(context.Background(), url+"/api", NewMemoryStorage())
	require.NoError(t, err)

	_, err = c.Login(context.Background(), "a@x.com", "secret1")
	require.Error(t, err)
	assert.Equal(t, MsgLoginFailed, err.Error())
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Zero(t, apiErr.StatusCode)
	assert.NotNil(t, errors.Unwrap(err))
	assert.False(t, c.IsAuthenticated())
}

func TestClient_Logout(t *testing.T) {
	api := &fakeAPI{status: http.StatusOK, body: successBody("tok-1")}
	storage := NewMemoryStorage()
	c := newTestClient(t, api, storage)

	_, err := c.Login(context.Background(), "a@x.com", "secret1")
	require.NoError(t, err)
	calls := api.calls.Load()

	var last State
	c.Subscribe(func(s State) { last = s })
	require.NoError(t, c.Logout(context.Background()))

	assert.False(t, c.IsAuthenticated())
	assert.Nil(t, c.CurrentUser())
	assert.False(t, last.Authenticated())
	assert.Nil(t, last.User)
	// サーバーには通知しない
	assert.Equal(t, calls, api.calls.Load())

	token, err := storage.Get(context.Background(), KeyToken)
	require.NoError(t, err)
	assert.Nil(t, token)
}

func TestClient_RestoresFromStorage(t *testing.T) {
	storage := NewMemoryStorage()
	require.NoError(t, storage.Set(context.Background(), map[string][]byte{
		KeyToken: []byte("saved"),
		KeyUser:  []byte(`{"id":"u-1","name":"Alice","email":"a@x.com"}`),
	}))

	c := newTestClient(t, &fakeAPI{status: http.StatusOK}, storage)
	assert.True(t, c.IsAuthenticated())
	assert.Equal(t, "saved", c.Token())
	assert.Equal(t, &alice, c.CurrentUser())
}

func TestClient_InconsistentStorageStartsUnauthenticated(t *testing.T) {
	tests := []struct {
		name   string
		values map[string][]byte
	}{
		{"token only", map[string][]byte{KeyToken: []byte("t")}},
		{"user only", map[string][]byte{KeyUser: []byte(`{"id":"1"}`)}},
		{"corrupt user", map[string][]byte{KeyToken: []byte("t"), KeyUser: []byte("{not json")}},
		{"empty token", map[string][]byte{KeyToken: []byte(""), KeyUser: []byte(`{"id":"1"}`)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage := NewMemoryStorage()
			require.NoError(t, storage.Set(context.Background(), tt.values))

			c := newTestClient(t, &fakeAPI{status: http.StatusOK}, storage)
			assert.False(t, c.IsAuthenticated())
			assert.Nil(t, c.CurrentUser())

			for _, key := range []string{KeyToken, KeyUser} {
				v, err := storage.Get(context.Background(), key)
				require.NoError(t, err)
				assert.Nil(t, v, key)
			}
		})
	}
}

func TestClient_AuthorizedRequestsCarryBearer(t *testing.T) {
	products := []Product{{ID: "1", Name: "Laptop", SKU: "LAP-001", Price: 999.99, Quantity: 10}}
	api := &fakeAPI{status: http.StatusOK, body: products}
	storage := NewMemoryStorage()
	require.NoError(t, storage.Set(context.Background(), map[string][]byte{
		KeyToken: []byte("bearer-tok"),
		KeyUser:  []byte(`{"id":"u-1","name":"Alice","email":"a@x.com"}`),
	}))
	c := newTestClient(t, api, storage)

	got, err := c.ListProducts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, products[0].SKU, got[0].SKU)
	assert.Nil(t, got[0].Image)
	assert.Equal(t, "Bearer bearer-tok", api.lastAuth.Load())
	assert.Equal(t, "GET /api/products", api.lastRequest.Load())

	_, err = c.LatestProducts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "GET /api/products/latest", api.lastRequest.Load())
}

func TestClient_UnauthenticatedRequestsOmitBearer(t *testing.T) {
	api := &fakeAPI{status: http.StatusUnauthorized, body: errorBody("Access token required")}
	c := newTestClient(t, api, nil)

	_, err := c.Profile(context.Background())
	require.Error(t, err)
	assert.Equal(t, "", api.lastAuth.Load())
}

func TestClient_Profile(t *testing.T) {
	api := &fakeAPI{status: http.StatusOK, body: alice}
	storage := NewMemoryStorage()
	require.NoError(t, storage.Set(context.Background(), map[string][]byte{
		KeyToken: []byte("t"),
		KeyUser:  []byte(`{"id":"u-1","name":"Alice","email":"a@x.com"}`),
	}))
	c := newTestClient(t, api, storage)

	user, err := c.Profile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, alice, *user)
	assert.Equal(t, "GET /api/auth/profile", api.lastRequest.Load())
}

func TestClient_SubscribeUnsubscribe(t *testing.T) {
	api := &fakeAPI{status: http.StatusOK, body: successBody("tok")}
	c := newTestClient(t, api, nil)

	var order []string
	unsubA := c.Subscribe(func(State) { order = append(order, "a") })
	c.Subscribe(func(State) { order = append(order, "b") })
	order = nil

	_, err := c.Login(context.Background(), "a@x.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, order)

	unsubA()
	unsubA()
	order = nil
	require.NoError(t, c.Logout(context.Background()))
	assert.Equal(t, []string{"b"}, order)
}

func TestClient_CurrentUserReturnsCopy(t *testing.T) {
	api := &fakeAPI{status: http.StatusOK, body: successBody("tok")}
	c := newTestClient(t, api, nil)
	_, err := c.Login(context.Background(), "a@x.com", "secret1")
	require.NoError(t, err)

	u := c.CurrentUser()
	u.Name = "Mallory"
	assert.Equal(t, "Alice", c.CurrentUser().Name)
}

func TestClient_PersistsAcrossRestartWithSQLite(t *testing.T) {
	path := t.TempDir() + "/session.db"
	api := &fakeAPI{status: http.StatusOK, body: successBody("durable")}
	srv := httptest.NewServer(api)
	defer srv.Close()

	storage, err := OpenSQLiteStorage(path)
	require.NoError(t, err)
	c, err := NewClient(context.Background(), srv.URL+"/api", storage)
	require.NoError(t, err)
	_, err = c.Login(context.Background(), "a@x.com", "secret1")
	require.NoError(t, err)
	require.NoError(t, storage.Close())

	reopened, err := OpenSQLiteStorage(path)
	require.NoError(t, err)
	defer reopened.Close()
	restarted, err := NewClient(context.Background(), srv.URL+"/api", reopened)
	require.NoError(t, err)

	assert.Equal(t, "durable", restarted.Token())
	assert.Equal(t, &alice, restarted.CurrentUser())
}

func TestBearerTransport_KeepsExplicitHeader(t *testing.T) {
	api := &fakeAPI{status: http.StatusOK}
	srv := httptest.NewServer(api)
	defer srv.Close()

	hc := &http.Client{Transport: &BearerTransport{Token: func() string { return "stored" }}}
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer explicit")

	resp, err := hc.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "Bearer explicit", api.lastAuth.Load())
	assert.Equal(t, "Bearer explicit", req.Header.Get("Authorization"))
}

func TestBearerTransport_DoesNotMutateRequest(t *testing.T) {
	api := &fakeAPI{status: http.StatusOK}
	srv := httptest.NewServer(api)
	defer srv.Close()

	hc := &http.Client{Transport: &BearerTransport{Token: func() string { return "stored" }}}
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := hc.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "Bearer stored", api.lastAuth.Load())
	assert.Empty(t, req.Header.Get("Authorization"))
}
