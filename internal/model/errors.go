// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// Messageはクライアントにそのまま表示されるため、内部情報を含めてはならない。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, product, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeDuplicateEmail     = "DUPLICATE_EMAIL"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeTokenRequired      = "TOKEN_REQUIRED"
	ErrCodeInvalidToken       = "INVALID_TOKEN"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeProductNotFound    = "PRODUCT_NOT_FOUND"
	ErrCodeDuplicateSKU       = "DUPLICATE_SKU"
	ErrCodeInvalidImage       = "INVALID_IMAGE"
	ErrCodeImageTooLarge      = "IMAGE_TOO_LARGE"
	ErrCodeRateLimited        = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// NewValidationError は入力不備エラーを生成する。
// messageはそのままクライアントに返される。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  message,
		Category: "validation",
		Action:   "Fill in all required fields and try again.",
	}
}

// NewDuplicateEmailError は登録済みメールアドレスでの再登録エラーを生成する。
func NewDuplicateEmailError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateEmail,
		Message:  "User already exists",
		Category: "auth",
		Action:   "Sign in with the existing account or use another email address.",
	}
}

// NewInvalidCredentialsError は認証失敗エラーを生成する。
// メールアドレス不一致とパスワード不一致で同一のエラーを返すこと。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Invalid credentials",
		Category: "auth",
		Action:   "Check your email and password.",
	}
}

// NewTokenRequiredError はAuthorizationヘッダー未指定エラーを生成する。
func NewTokenRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeTokenRequired,
		Message:  "Access token required",
		Category: "auth",
		Action:   "Sign in to continue.",
	}
}

// NewInvalidTokenError は署名不正・形式不正・期限切れトークンのエラーを生成する。
func NewInvalidTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidToken,
		Message:  "Invalid token",
		Category: "auth",
		Action:   "Sign in again.",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "User not found",
		Category: "auth",
		Action:   "Sign in again.",
	}
}

// NewProductNotFoundError は商品が見つからない場合のエラーを生成する。
func NewProductNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeProductNotFound,
		Message:  "Product not found",
		Category: "product",
		Action:   "Reload the product list.",
	}
}

// NewDuplicateSKUError はSKU重複エラーを生成する。
// 認証と異なり、商品側ではどのフィールドが重複したかを明示する。
func NewDuplicateSKUError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateSKU,
		Message:  "SKU already exists",
		Category: "product",
		Action:   "Use a different SKU.",
	}
}

// NewInvalidImageError は画像以外のファイルがアップロードされた場合のエラーを生成する。
func NewInvalidImageError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidImage,
		Message:  "Only image files are allowed!",
		Category: "validation",
		Action:   "Upload a PNG, JPEG, GIF or WebP image.",
	}
}

// NewImageTooLargeError は画像サイズ上限超過エラーを生成する。
func NewImageTooLargeError(maxBytes int64) *APIError {
	return &APIError{
		Code:     ErrCodeImageTooLarge,
		Message:  "Image exceeds the maximum size",
		Category: "validation",
		Action:   fmt.Sprintf("Upload an image smaller than %d bytes.", maxBytes),
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "Too many requests. Please try again later.",
		Category: "system",
		Action:   "Please wait and retry after the specified time.",
	}
}

// NewInternalError は内部エラーを生成する。
// 詳細はログにのみ記録し、クライアントには汎用メッセージを返す。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "Server error",
		Category: "system",
		Action:   "Please wait a moment and try again.",
	}
}
