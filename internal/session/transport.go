package session

import "net/http"

// BearerTransport は保存済みトークンをAuthorizationヘッダーに付与するRoundTripper。
// トークンが無い場合やヘッダーが既に設定されている場合はリクエストを変更しない。
type BearerTransport struct {
	Base  http.RoundTripper
	Token func() string
}

// RoundTrip はhttp.RoundTripperを実装する。
func (t *BearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	token := t.Token()
	if token == "" || req.Header.Get("Authorization") != "" {
		return base.RoundTrip(req)
	}

	// RoundTripperは元のリクエストを変更してはならない
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+token)
	return base.RoundTrip(clone)
}
