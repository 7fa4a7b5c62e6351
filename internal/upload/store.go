// Package upload は商品画像のアップロード保存と配信を提供する。
package upload

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/invman/internal/model"
)

// DefaultMaxSize はアップロード画像の最大サイズ（5MiB）。
const DefaultMaxSize int64 = 5 * 1024 * 1024

// URLPrefix は保存した画像の公開パスの接頭辞。
const URLPrefix = "/uploads/"

// sniffLen はContent-Type判定に使うバイト数。
const sniffLen = 512

// imageExtensions は判定したContent-Typeから保存時の拡張子を決める。
// SVGはスクリプトを含み得るためアップロードを受け付けない。
var imageExtensions = map[string]string{
	"image/png":                ".png",
	"image/jpeg":               ".jpg",
	"image/gif":                ".gif",
	"image/webp":               ".webp",
	"image/bmp":                ".bmp",
	"image/x-icon":             ".ico",
	"image/vnd.microsoft.icon": ".ico",
}

// File は保存済み画像ファイルの情報。
type File struct {
	Name    string
	Path    string // 公開パス（/uploads/<name>）
	ModTime time.Time
}

// Store はローカルディレクトリに画像を保存する。
type Store struct {
	dir     string
	maxSize int64
	newName func() string
}

// NewStore はStoreを生成する。maxSizeが0以下の場合はDefaultMaxSizeを使用する。
func NewStore(dir string, maxSize int64) *Store {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Store{
		dir:     dir,
		maxSize: maxSize,
		newName: func() string { return uuid.New().String() },
	}
}

// Dir は保存先ディレクトリを返す。
func (s *Store) Dir() string {
	return s.dir
}

// MaxSize は受け付ける最大バイト数を返す。
func (s *Store) MaxSize() int64 {
	return s.maxSize
}

// EnsureDir は保存先ディレクトリが無ければ作成する。
func (s *Store) EnsureDir() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create upload dir: %w", err)
	}
	return nil
}

// Save は画像を検証して保存し、公開パスを返す。
// 宣言されたContent-Typeと先頭バイトから判定した型の両方が画像である必要がある。
// 画像でない場合はINVALID_IMAGE、サイズ超過はIMAGE_TOO_LARGEを返す。
func (s *Store) Save(r io.Reader, declaredType string) (string, error) {
	if declaredType != "" && !strings.HasPrefix(declaredType, "image/") {
		return "", model.NewInvalidImageError()
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}
	head = head[:n]

	ext, ok := imageExtensions[http.DetectContentType(head)]
	if !ok {
		return "", model.NewInvalidImageError()
	}

	name := s.newName() + ext
	dst := filepath.Join(s.dir, name)

	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}

	// 上限+1バイトまで読み、超過を検出する
	body := io.MultiReader(bytes.NewReader(head), r)
	written, err := io.Copy(f, io.LimitReader(body, s.maxSize+1))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(dst)
		return "", fmt.Errorf("failed to write upload file: %w", err)
	}
	if written > s.maxSize {
		_ = os.Remove(dst)
		return "", model.NewImageTooLargeError(s.maxSize)
	}

	slog.Info("image uploaded",
		slog.String("file", name),
		slog.Int64("bytes", written),
	)
	return URLPrefix + name, nil
}

// Remove は公開パスに対応するファイルを削除する。
// アップロード領域外のパスや存在しないファイルは無視する。
func (s *Store) Remove(publicPath string) error {
	name, ok := s.fileName(publicPath)
	if !ok {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove upload file: %w", err)
	}
	return nil
}

// List は保存済みファイルの一覧を返す。ディレクトリが無い場合は空を返す。
func (s *Store) List() ([]File, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read upload dir: %w", err)
	}

	files := make([]File, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, File{
			Name:    e.Name(),
			Path:    URLPrefix + e.Name(),
			ModTime: info.ModTime(),
		})
	}
	return files, nil
}

// Handler は/uploads/配下の画像を配信するハンドラーを返す。
// ディレクトリ一覧は返さない。
func (s *Store) Handler() http.Handler {
	fs := http.FileServer(http.Dir(s.dir))
	return http.StripPrefix(strings.TrimSuffix(URLPrefix, "/"), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("X-Content-Type-Options", "nosniff")
		fs.ServeHTTP(w, r)
	}))
}

// fileName は公開パスからアップロード領域内のファイル名を取り出す。
func (s *Store) fileName(publicPath string) (string, bool) {
	if !strings.HasPrefix(publicPath, URLPrefix) {
		return "", false
	}
	name := path.Base(publicPath)
	if name != strings.TrimPrefix(publicPath, URLPrefix) || name == "." || name == ".." {
		return "", false
	}
	return name, true
}
