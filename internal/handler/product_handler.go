package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/invman/internal/model"
)

// multipartOverhead は画像以外のフォーム項目とマルチパート境界に許容するサイズ。
const multipartOverhead = 1 << 20

// ProductServiceInterface は商品ハンドラーが必要とするサービスインターフェース。
type ProductServiceInterface interface {
	List(ctx context.Context) ([]*model.Product, error)
	Latest(ctx context.Context) ([]*model.Product, error)
	Get(ctx context.Context, id string) (*model.Product, error)
	Create(ctx context.Context, in model.ProductInput) (*model.Product, error)
	Update(ctx context.Context, id string, in model.ProductInput) (*model.Product, error)
	Delete(ctx context.Context, id string) error
}

// ImageStore は商品画像の保存先インターフェース。upload.Storeが満たす。
type ImageStore interface {
	Save(r io.Reader, declaredType string) (string, error)
	Remove(publicPath string) error
	MaxSize() int64
}

// ProductHandler は商品管理のHTTPハンドラー。
type ProductHandler struct {
	service ProductServiceInterface
	images  ImageStore
}

// NewProductHandler はProductHandlerを生成する。
func NewProductHandler(service ProductServiceInterface, images ImageStore) *ProductHandler {
	return &ProductHandler{
		service: service,
		images:  images,
	}
}

// productResponse は商品情報のAPIレスポンス。
type productResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	SKU       string    `json:"sku"`
	Price     float64   `json:"price"`
	Quantity  int       `json:"quantity"`
	Image     *string   `json:"image"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// productRequest はJSON形式の商品作成・更新リクエストのボディ。
type productRequest struct {
	Name     *string  `json:"name"`
	SKU      *string  `json:"sku"`
	Price    *float64 `json:"price"`
	Quantity *int     `json:"quantity"`
}

// messageResponse はメッセージのみのレスポンス。
type messageResponse struct {
	Message string `json:"message"`
}

func toProductResponse(p *model.Product) productResponse {
	resp := productResponse{
		ID:        p.ID,
		Name:      p.Name,
		SKU:       p.SKU,
		Price:     p.Price,
		Quantity:  p.Quantity,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
	if p.Image != "" {
		image := p.Image
		resp.Image = &image
	}
	return resp
}

func toProductResponses(products []*model.Product) []productResponse {
	results := make([]productResponse, len(products))
	for i, p := range products {
		results[i] = toProductResponse(p)
	}
	return results
}

// ListProducts は全商品を返す。
// GET /api/products
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponses(products))
}

// LatestProducts は最近作成された商品を返す。
// GET /api/products/latest
func (h *ProductHandler) LatestProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.Latest(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponses(products))
}

// GetProduct は商品1件を返す。
// GET /api/products/{id}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(p))
}

// CreateProduct は商品を作成する。JSONまたはmultipart/form-dataを受け付ける。
// POST /api/products
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	in, err := h.parseInput(w, r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	p, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.discardImage(in)
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductResponse(p))
}

// UpdateProduct は商品を部分更新する。
// PUT /api/products/{id}
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	in, err := h.parseInput(w, r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	p, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.discardImage(in)
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(p))
}

// DeleteProduct は商品を削除する。
// DELETE /api/products/{id}
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Product deleted successfully"})
}

// parseInput はContent-Typeに応じてリクエストを商品入力に変換する。
func (h *ProductHandler) parseInput(w http.ResponseWriter, r *http.Request) (model.ProductInput, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		return h.parseMultipart(w, r)
	}

	var req productRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return model.ProductInput{}, err
	}
	return model.ProductInput{
		Name:     req.Name,
		SKU:      req.SKU,
		Price:    req.Price,
		Quantity: req.Quantity,
	}, nil
}

// parseMultipart はフォーム項目と画像ファイルを読み込む。
// 画像は保存済みの公開パスとしてInputに設定される。
func (h *ProductHandler) parseMultipart(w http.ResponseWriter, r *http.Request) (model.ProductInput, error) {
	var in model.ProductInput

	maxSize := h.images.MaxSize()
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)
	if err := r.ParseMultipartForm(multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return in, model.NewImageTooLargeError(maxSize)
		}
		return in, model.NewValidationError("Invalid request body")
	}
	defer r.MultipartForm.RemoveAll()

	in.Name = formValue(r.MultipartForm, "name")
	in.SKU = formValue(r.MultipartForm, "sku")

	if raw := formValue(r.MultipartForm, "price"); raw != nil {
		price, err := strconv.ParseFloat(strings.TrimSpace(*raw), 64)
		if err != nil {
			return in, model.NewValidationError("Price must be a non-negative number")
		}
		in.Price = &price
	}
	if raw := formValue(r.MultipartForm, "quantity"); raw != nil {
		quantity, err := strconv.Atoi(strings.TrimSpace(*raw))
		if err != nil {
			return in, model.NewValidationError("Quantity must be a non-negative integer")
		}
		in.Quantity = &quantity
	}

	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return in, nil
	}
	if err != nil {
		return in, model.NewValidationError("Invalid request body")
	}
	defer file.Close()

	path, err := h.images.Save(file, header.Header.Get("Content-Type"))
	if err != nil {
		return in, err
	}
	in.Image = &path
	return in, nil
}

// discardImage は保存に失敗したリクエストでアップロードされた画像を削除する。
func (h *ProductHandler) discardImage(in model.ProductInput) {
	if in.Image == nil {
		return
	}
	if err := h.images.Remove(*in.Image); err != nil {
		slog.Warn("failed to discard uploaded image",
			slog.String("path", *in.Image),
			slog.String("error", err.Error()),
		)
	}
}

// formValue はフォーム項目を返す。未送信または空文字の場合はnilを返す。
func formValue(form *multipart.Form, key string) *string {
	values, ok := form.Value[key]
	if !ok || len(values) == 0 || values[0] == "" {
		return nil
	}
	v := values[0]
	return &v
}
