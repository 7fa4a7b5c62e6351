package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/invman/internal/model"
)

// PostgresProductRepo はPostgreSQLを使用した商品リポジトリ。
// SKUの一意性はproducts.skuのUNIQUE制約で保証する。
type PostgresProductRepo struct {
	db *sql.DB
}

// NewPostgresProductRepo はPostgresProductRepoを生成する。
func NewPostgresProductRepo(db *sql.DB) *PostgresProductRepo {
	return &PostgresProductRepo{db: db}
}

const productColumns = `id, name, sku, price, quantity, image, created_at, updated_at`

// List は全商品を作成日時の昇順で返す。
func (r *PostgresProductRepo) List(ctx context.Context) ([]*model.Product, error) {
	return r.query(ctx,
		`SELECT `+productColumns+` FROM products ORDER BY created_at ASC, id ASC`,
	)
}

// ListLatest は作成日時の降順で最大limit件の商品を返す。
func (r *PostgresProductRepo) ListLatest(ctx context.Context, limit int) ([]*model.Product, error) {
	return r.query(ctx,
		`SELECT `+productColumns+` FROM products ORDER BY created_at DESC, id ASC LIMIT $1`,
		limit,
	)
}

// FindByID は指定IDの商品を取得する。見つからない場合はnilを返す。
func (r *PostgresProductRepo) FindByID(ctx context.Context, id string) (*model.Product, error) {
	return r.queryOne(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`,
		id,
	)
}

// Create は商品を作成する。SKUが重複する場合はErrConflictを返す。
func (r *PostgresProductRepo) Create(ctx context.Context, p *model.Product) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO products (id, name, sku, price, quantity, image, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.Name, p.SKU, p.Price, p.Quantity, nullString(p.Image), p.CreatedAt, p.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to insert product: %w", err)
	}
	return nil
}

// Update は商品を上書き更新する。
func (r *PostgresProductRepo) Update(ctx context.Context, p *model.Product) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE products
		 SET name = $2, sku = $3, price = $4, quantity = $5, image = $6, updated_at = $7
		 WHERE id = $1`,
		p.ID, p.Name, p.SKU, p.Price, p.Quantity, nullString(p.Image), p.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return true, ErrConflict
	}
	if err != nil {
		return false, fmt.Errorf("failed to update product: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// Delete は指定IDの商品を削除する。
func (r *PostgresProductRepo) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete product: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// ListImagePaths は商品が参照している画像パスの一覧を返す。
func (r *PostgresProductRepo) ListImagePaths(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT image FROM products WHERE image IS NOT NULL AND image <> ''`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list image paths: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("failed to scan image path: %w", err)
		}
		paths = append(paths, path)
	}
	return paths, rows.Err()
}

func (r *PostgresProductRepo) query(ctx context.Context, query string, args ...interface{}) ([]*model.Product, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := []*model.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate products: %w", err)
	}
	return products, nil
}

func (r *PostgresProductRepo) queryOne(ctx context.Context, query string, arg string) (*model.Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx, query, arg))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(s rowScanner) (*model.Product, error) {
	p := &model.Product{}
	var image sql.NullString
	err := s.Scan(&p.ID, &p.Name, &p.SKU, &p.Price, &p.Quantity, &image, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan product: %w", err)
	}
	p.Image = image.String
	return p, nil
}

// nullString は空文字をNULLとして扱うsql.NullStringを返す。
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// compile-time interface check
var _ ProductRepository = (*PostgresProductRepo)(nil)
