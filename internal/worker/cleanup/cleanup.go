// Package cleanup は商品から参照されなくなった画像ファイルを定期削除するジョブを提供する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/invman/internal/metrics"
	"github.com/hitoshi/invman/internal/upload"
)

// DefaultMinAge は削除対象とする画像の最小経過時間。
// アップロード直後で商品保存前のファイルを消さないための猶予。
const DefaultMinAge = time.Hour

// ImageReferences は商品が参照している画像パスを返すインターフェース。
// repository.ProductRepositoryが満たす。
type ImageReferences interface {
	ListImagePaths(ctx context.Context) ([]string, error)
}

// FileStore はアップロード済みファイルの列挙と削除を行うインターフェース。
// upload.Storeが満たす。
type FileStore interface {
	List() ([]upload.File, error)
	Remove(publicPath string) error
}

// CleanupJob は孤立画像を削除するバッチジョブ。
type CleanupJob struct {
	refs    ImageReferences
	files   FileStore
	logger  *slog.Logger
	metrics metrics.MetricsCollector
	now     func() time.Time

	// MinAge より新しいファイルは参照が無くても削除しない。
	MinAge time.Duration
}

// NewCleanupJob はCleanupJobを生成する。collectorがnilの場合はメトリクスを記録しない。
func NewCleanupJob(refs ImageReferences, files FileStore, logger *slog.Logger, collector metrics.MetricsCollector) *CleanupJob {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &CleanupJob{
		refs:    refs,
		files:   files,
		logger:  logger,
		metrics: collector,
		now:     time.Now,
		MinAge:  DefaultMinAge,
	}
}

// Run は孤立画像の削除を1回実行し、削除件数を返す。
// 削除に失敗したファイルはログに残して処理を継続する。
func (j *CleanupJob) Run(ctx context.Context) (int, error) {
	start := time.Now()

	referenced, err := j.refs.ListImagePaths(ctx)
	if err != nil {
		j.logger.Error("cleanup job failed",
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("failed to list referenced images: %w", err)
	}
	inUse := make(map[string]struct{}, len(referenced))
	for _, p := range referenced {
		inUse[p] = struct{}{}
	}

	files, err := j.files.List()
	if err != nil {
		j.logger.Error("cleanup job failed",
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("failed to list upload files: %w", err)
	}

	cutoff := j.now().Add(-j.MinAge)
	deleted := 0
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		if _, ok := inUse[f.Path]; ok {
			continue
		}
		if f.ModTime.After(cutoff) {
			continue
		}
		if err := j.files.Remove(f.Path); err != nil {
			j.logger.Warn("failed to remove orphan image",
				slog.String("path", f.Path),
				slog.String("error", err.Error()),
			)
			continue
		}
		deleted++
	}

	j.metrics.RecordImagesRemoved(deleted)
	j.logger.Info("cleanup job completed",
		slog.Int("deleted_count", deleted),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return deleted, nil
}

// Start は起動直後に1回、その後interval毎にRunを実行する。
// ctxがキャンセルされるまでブロックする。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	j.runOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

func (j *CleanupJob) runOnce(ctx context.Context) {
	if _, err := j.Run(ctx); err != nil && ctx.Err() == nil {
		j.logger.Error("cleanup run failed", slog.String("error", err.Error()))
	}
}
