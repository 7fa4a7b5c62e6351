package model

import "time"

// Product は在庫管理対象の商品を表す。
// SKUは全商品で一意。Imageはアップロード画像の公開パス（未設定の場合は空文字）。
type Product struct {
	ID        string
	Name      string
	SKU       string
	Price     float64
	Quantity  int
	Image     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProductInput は商品の作成・更新入力を表す。
// 更新時はnilのフィールドを変更しない部分更新として扱う。
type ProductInput struct {
	Name     *string
	SKU      *string
	Price    *float64
	Quantity *int
	Image    *string
}
