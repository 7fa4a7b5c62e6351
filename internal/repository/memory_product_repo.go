package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/hitoshi/invman/internal/model"
)

// MemoryProductRepo はプロセスメモリ上で商品を保持するリポジトリ。
// 登録順を保持するため、スライスで管理する。
type MemoryProductRepo struct {
	mu       sync.RWMutex
	products []*model.Product
}

// NewMemoryProductRepo はMemoryProductRepoを生成する。
// seedに渡された商品は初期データとして登録順に格納される。
func NewMemoryProductRepo(seed ...*model.Product) *MemoryProductRepo {
	r := &MemoryProductRepo{}
	for _, p := range seed {
		c := *p
		r.products = append(r.products, &c)
	}
	return r
}

// List は全商品を登録順で返す。
func (r *MemoryProductRepo) List(_ context.Context) ([]*model.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.snapshot(), nil
}

// ListLatest は作成日時の降順で最大limit件の商品を返す。
// 保持しているスライスの順序は変更しない。
func (r *MemoryProductRepo) ListLatest(_ context.Context, limit int) ([]*model.Product, error) {
	r.mu.RLock()
	products := r.snapshot()
	r.mu.RUnlock()

	sort.SliceStable(products, func(i, j int) bool {
		return products[i].CreatedAt.After(products[j].CreatedAt)
	})
	if limit >= 0 && len(products) > limit {
		products = products[:limit]
	}
	return products, nil
}

// FindByID は指定IDの商品を取得する。見つからない場合はnilを返す。
func (r *MemoryProductRepo) FindByID(_ context.Context, id string) (*model.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i := r.indexOf(id); i >= 0 {
		c := *r.products[i]
		return &c, nil
	}
	return nil, nil
}

// Create は商品を作成する。SKUが重複する場合はErrConflictを返す。
func (r *MemoryProductRepo) Create(_ context.Context, product *model.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.skuTaken(product.SKU, "") {
		return ErrConflict
	}
	c := *product
	r.products = append(r.products, &c)
	return nil
}

// Update は商品を上書き更新する。
func (r *MemoryProductRepo) Update(_ context.Context, product *model.Product) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(product.ID)
	if i < 0 {
		return false, nil
	}
	if r.skuTaken(product.SKU, product.ID) {
		return true, ErrConflict
	}
	c := *product
	r.products[i] = &c
	return true, nil
}

// Delete は指定IDの商品を削除する。
func (r *MemoryProductRepo) Delete(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return false, nil
	}
	r.products = append(r.products[:i], r.products[i+1:]...)
	return true, nil
}

// ListImagePaths は商品が参照している画像パスの一覧を返す。
func (r *MemoryProductRepo) ListImagePaths(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var paths []string
	for _, p := range r.products {
		if p.Image != "" {
			paths = append(paths, p.Image)
		}
	}
	return paths, nil
}

// snapshot は呼び出し側がロックを保持している前提で商品のコピーを返す。
func (r *MemoryProductRepo) snapshot() []*model.Product {
	out := make([]*model.Product, len(r.products))
	for i, p := range r.products {
		c := *p
		out[i] = &c
	}
	return out
}

func (r *MemoryProductRepo) indexOf(id string) int {
	for i, p := range r.products {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// skuTaken はexceptID以外の商品が指定SKUを使用しているかを返す。
func (r *MemoryProductRepo) skuTaken(sku, exceptID string) bool {
	for _, p := range r.products {
		if p.SKU == sku && p.ID != exceptID {
			return true
		}
	}
	return false
}

// compile-time interface check
var _ ProductRepository = (*MemoryProductRepo)(nil)
