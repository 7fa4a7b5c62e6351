// Package product は商品在庫のビジネスロジックを提供する。
package product

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/invman/internal/model"
	"github.com/hitoshi/invman/internal/repository"
	"github.com/hitoshi/invman/internal/security"
)

// LatestLimit はダッシュボードに表示する最新商品数。
const LatestLimit = 3

// Service は商品のCRUDを提供する。
type Service struct {
	repo      repository.ProductRepository
	sanitizer security.TextSanitizer
	now       func() time.Time
	newID     func() string
}

// NewService はServiceを生成する。
func NewService(repo repository.ProductRepository, sanitizer security.TextSanitizer) *Service {
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
}

// List は全商品を返す。
func (s *Service) List(ctx context.Context) ([]*model.Product, error) {
	products, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

// Latest は作成日時が新しい順に最大LatestLimit件の商品を返す。
func (s *Service) Latest(ctx context.Context) ([]*model.Product, error) {
	products, err := s.repo.ListLatest(ctx, LatestLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list latest products: %w", err)
	}
	return products, nil
}

// Get は指定IDの商品を返す。存在しない場合はPRODUCT_NOT_FOUNDを返す。
func (s *Service) Get(ctx context.Context, id string) (*model.Product, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find product: %w", err)
	}
	if p == nil {
		return nil, model.NewProductNotFoundError()
	}
	return p, nil
}

// Create は商品を作成する。
// name, sku, price, quantityはすべて必須。SKUが既存商品と重複する場合はDUPLICATE_SKUを返す。
func (s *Service) Create(ctx context.Context, in model.ProductInput) (*model.Product, error) {
	if in.Name == nil || in.SKU == nil || in.Price == nil || in.Quantity == nil {
		return nil, model.NewValidationError("All fields are required")
	}

	now := s.now()
	p := &model.Product{
		ID:        s.newID(),
		Name:      s.sanitizer.Sanitize(*in.Name),
		SKU:       strings.TrimSpace(*in.SKU),
		Price:     *in.Price,
		Quantity:  *in.Quantity,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if in.Image != nil {
		p.Image = *in.Image
	}
	if err := validate(p); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, p); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, model.NewDuplicateSKUError()
		}
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	slog.Info("product created",
		slog.String("product_id", p.ID),
		slog.String("sku", p.SKU),
	)
	return p, nil
}

// Update は指定されたフィールドのみを更新する。
// SKUは自身を除く商品と重複してはならない。存在しない場合はPRODUCT_NOT_FOUNDを返す。
func (s *Service) Update(ctx context.Context, id string, in model.ProductInput) (*model.Product, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updated := *current
	if in.Name != nil {
		updated.Name = s.sanitizer.Sanitize(*in.Name)
	}
	if in.SKU != nil {
		updated.SKU = strings.TrimSpace(*in.SKU)
	}
	if in.Price != nil {
		updated.Price = *in.Price
	}
	if in.Quantity != nil {
		updated.Quantity = *in.Quantity
	}
	if in.Image != nil {
		updated.Image = *in.Image
	}
	updated.UpdatedAt = s.now()

	if err := validate(&updated); err != nil {
		return nil, err
	}

	found, err := s.repo.Update(ctx, &updated)
	if errors.Is(err, repository.ErrConflict) {
		return nil, model.NewDuplicateSKUError()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	if !found {
		return nil, model.NewProductNotFoundError()
	}

	slog.Info("product updated", slog.String("product_id", id))
	return &updated, nil
}

// Delete は指定IDの商品を削除する。存在しない場合はPRODUCT_NOT_FOUNDを返す。
// 参照されなくなった画像はクリーンアップジョブが削除する。
func (s *Service) Delete(ctx context.Context, id string) error {
	found, err := s.repo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if !found {
		return model.NewProductNotFoundError()
	}

	slog.Info("product deleted", slog.String("product_id", id))
	return nil
}

// validate は商品の値を検証する。
func validate(p *model.Product) error {
	if p.Name == "" || p.SKU == "" {
		return model.NewValidationError("All fields are required")
	}
	if math.IsNaN(p.Price) || math.IsInf(p.Price, 0) || p.Price < 0 {
		return model.NewValidationError("Price must be a non-negative number")
	}
	if p.Quantity < 0 {
		return model.NewValidationError("Quantity must be a non-negative integer")
	}
	return nil
}

// DemoProducts はインメモリストアの初期データとなるデモ商品を返す。
func DemoProducts() []*model.Product {
	day := func(d int) time.Time {
		return time.Date(2024, time.January, d, 0, 0, 0, 0, time.UTC)
	}
	return []*model.Product{
		{
			ID:        "1",
			Name:      "Wireless Bluetooth Headphones",
			SKU:       "WH-001",
			Price:     89.99,
			Quantity:  25,
			Image:     "/assets/products/headphones.svg",
			CreatedAt: day(15),
			UpdatedAt: day(15),
		},
		{
			ID:        "2",
			Name:      "Smart Fitness Watch",
			SKU:       "SFW-002",
			Price:     199.99,
			Quantity:  12,
			Image:     "/assets/products/smartwatch.svg",
			CreatedAt: day(20),
			UpdatedAt: day(20),
		},
		{
			ID:        "3",
			Name:      "Portable Power Bank",
			SKU:       "PPB-003",
			Price:     49.99,
			Quantity:  8,
			Image:     "/assets/products/powerbank.svg",
			CreatedAt: day(25),
			UpdatedAt: day(25),
		},
	}
}
