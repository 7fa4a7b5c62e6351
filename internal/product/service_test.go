package product

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/hitoshi/invman/internal/model"
	"github.com/hitoshi/invman/internal/repository"
	"github.com/hitoshi/invman/internal/security"
)

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }
func intPtr(i int) *int           { return &i }

// newTestService はデモ商品を投入したインメモリストアでServiceを生成する。
func newTestService(t *testing.T) (*Service, *time.Time) {
	t.Helper()
	now := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	seq := 0
	svc := NewService(repository.NewMemoryProductRepo(DemoProducts()...), security.NewTextSanitizer())
	svc.now = func() time.Time { return now }
	svc.newID = func() string {
		seq++
		return fmt.Sprintf("new-%d", seq)
	}
	return svc, &now
}

func validInput() model.ProductInput {
	return model.ProductInput{
		Name:     strPtr("USB-C Cable"),
		SKU:      strPtr("USB-004"),
		Price:    floatPtr(9.99),
		Quantity: intPtr(100),
	}
}

func assertAPIError(t *testing.T, err error, code, message string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError, got %T: %v", err, err)
	}
	if apiErr.Code != code {
		t.Errorf("Code = %q, want %q", apiErr.Code, code)
	}
	if message != "" && apiErr.Message != message {
		t.Errorf("Message = %q, want %q", apiErr.Message, message)
	}
}

func TestDemoProducts(t *testing.T) {
	products := DemoProducts()
	if len(products) != 3 {
		t.Fatalf("len = %d, want 3", len(products))
	}
	wantSKUs := []string{"WH-001", "SFW-002", "PPB-003"}
	for i, p := range products {
		if p.SKU != wantSKUs[i] {
			t.Errorf("products[%d].SKU = %q, want %q", i, p.SKU, wantSKUs[i])
		}
	}
	// 呼び出しごとに独立したスライスを返すこと
	products[0].Name = "changed"
	if DemoProducts()[0].Name != "Wireless Bluetooth Headphones" {
		t.Error("DemoProducts should return fresh values")
	}
}

func TestLatest_ReturnsThreeNewestFirst(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, validInput()); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	latest, err := svc.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	got := []string{}
	for _, p := range latest {
		got = append(got, p.SKU)
	}
	want := []string{"USB-004", "PPB-003", "SFW-002"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("Latest() = %v, want %v", got, want)
	}

	all, _ := svc.List(ctx)
	if len(all) != 4 || all[0].SKU != "WH-001" {
		t.Errorf("List() order should be insertion order, got first %q of %d", all[0].SKU, len(all))
	}
}

func TestCreate_SetsFieldsAndSanitizesName(t *testing.T) {
	svc, now := newTestService(t)
	in := validInput()
	in.Name = strPtr("<b>USB-C</b> Cable")
	in.Image = strPtr("/uploads/abc.png")

	p, err := svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if p.ID != "new-1" || p.Name != "USB-C Cable" || p.Image != "/uploads/abc.png" {
		t.Errorf("product = %+v", p)
	}
	if !p.CreatedAt.Equal(*now) || !p.UpdatedAt.Equal(*now) {
		t.Errorf("timestamps = %v/%v, want %v", p.CreatedAt, p.UpdatedAt, *now)
	}
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(in *model.ProductInput)
		message string
	}{
		{"名前なし", func(in *model.ProductInput) { in.Name = nil }, "All fields are required"},
		{"SKUなし", func(in *model.ProductInput) { in.SKU = nil }, "All fields are required"},
		{"価格なし", func(in *model.ProductInput) { in.Price = nil }, "All fields are required"},
		{"在庫数なし", func(in *model.ProductInput) { in.Quantity = nil }, "All fields are required"},
		{"タグのみの名前", func(in *model.ProductInput) { in.Name = strPtr("<script>x</script>") }, "All fields are required"},
		{"多重エンコードされたタグ", func(in *model.ProductInput) {
			in.Name = strPtr("&amp;amp;lt;script&amp;amp;gt;alert(1)&amp;amp;lt;/script&amp;amp;gt;")
		}, "All fields are required"},
		{"空白のSKU", func(in *model.ProductInput) { in.SKU = strPtr("  ") }, "All fields are required"},
		{"負の価格", func(in *model.ProductInput) { in.Price = floatPtr(-1) }, "Price must be a non-negative number"},
		{"NaNの価格", func(in *model.ProductInput) { in.Price = floatPtr(math.NaN()) }, "Price must be a non-negative number"},
		{"負の在庫数", func(in *model.ProductInput) { in.Quantity = intPtr(-5) }, "Quantity must be a non-negative integer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t)
			in := validInput()
			tt.mutate(&in)

			_, err := svc.Create(context.Background(), in)
			assertAPIError(t, err, model.ErrCodeValidation, tt.message)
		})
	}
}

// 在庫数0・価格0は有効な値として受け付けること
func TestCreate_ZeroValuesAllowed(t *testing.T) {
	svc, _ := newTestService(t)
	in := validInput()
	in.Price = floatPtr(0)
	in.Quantity = intPtr(0)

	if _, err := svc.Create(context.Background(), in); err != nil {
		t.Errorf("Create() error = %v", err)
	}
}

func TestCreate_DuplicateSKU(t *testing.T) {
	svc, _ := newTestService(t)
	in := validInput()
	in.SKU = strPtr("WH-001")

	_, err := svc.Create(context.Background(), in)
	assertAPIError(t, err, model.ErrCodeDuplicateSKU, "SKU already exists")
}

func TestGet(t *testing.T) {
	svc, _ := newTestService(t)

	p, err := svc.Get(context.Background(), "2")
	if err != nil || p.SKU != "SFW-002" {
		t.Errorf("Get(2) = %+v, %v", p, err)
	}

	_, err = svc.Get(context.Background(), "missing")
	assertAPIError(t, err, model.ErrCodeProductNotFound, "Product not found")
}

func TestUpdate_PartialFields(t *testing.T) {
	svc, now := newTestService(t)
	ctx := context.Background()
	*now = now.Add(time.Hour)

	p, err := svc.Update(ctx, "1", model.ProductInput{Quantity: intPtr(30)})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if p.Quantity != 30 || p.Name != "Wireless Bluetooth Headphones" || p.SKU != "WH-001" || p.Price != 89.99 {
		t.Errorf("product = %+v", p)
	}
	if !p.UpdatedAt.Equal(*now) {
		t.Errorf("UpdatedAt = %v, want %v", p.UpdatedAt, *now)
	}
	if p.CreatedAt.Equal(*now) {
		t.Error("CreatedAt must not change")
	}

	stored, _ := svc.Get(ctx, "1")
	if stored.Quantity != 30 {
		t.Errorf("stored quantity = %d, want 30", stored.Quantity)
	}
}

func TestUpdate_SKU(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	// 自身のSKUのままでの更新は重複扱いしない
	if _, err := svc.Update(ctx, "1", model.ProductInput{SKU: strPtr("WH-001"), Name: strPtr("Headphones")}); err != nil {
		t.Errorf("Update() with own SKU error = %v", err)
	}

	_, err := svc.Update(ctx, "1", model.ProductInput{SKU: strPtr("SFW-002")})
	assertAPIError(t, err, model.ErrCodeDuplicateSKU, "SKU already exists")
}

func TestUpdate_Missing(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Update(context.Background(), "missing", model.ProductInput{Name: strPtr("x")})
	assertAPIError(t, err, model.ErrCodeProductNotFound, "")
}

func TestDelete(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.Delete(ctx, "3"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	err := svc.Delete(ctx, "3")
	assertAPIError(t, err, model.ErrCodeProductNotFound, "")

	all, _ := svc.List(ctx)
	if len(all) != 2 {
		t.Errorf("len(List()) = %d, want 2", len(all))
	}
}

type failingRepo struct {
	repository.ProductRepository
}

func (failingRepo) List(context.Context) ([]*model.Product, error) {
	return nil, errors.New("db down")
}

func TestList_RepositoryError_IsWrapped(t *testing.T) {
	svc := NewService(failingRepo{}, security.NewTextSanitizer())

	_, err := svc.List(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		t.Error("infrastructure failure should not be an APIError")
	}
}
