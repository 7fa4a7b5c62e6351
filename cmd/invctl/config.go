package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const defaultAPIURL = "http://localhost:3001/api"

// cliConfig はinvctlの実行時設定。
type cliConfig struct {
	APIURL    string
	StatePath string
}

// defaultConfigDir は設定ファイルとセッションDBの既定ディレクトリを返す。
func defaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".invctl"
	}
	return filepath.Join(home, ".config", "invctl")
}

// loadConfig はYAML設定ファイルを読み込み、明示的に指定されたフラグで上書きする。
// 既定パスの設定ファイルが存在しない場合は無視するが、
// --configで指定されたファイルが存在しない場合はエラーにする。
func loadConfig(flags *pflag.FlagSet) (*cliConfig, error) {
	k := koanf.New(".")

	path, err := flags.GetString("config")
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err == nil || flags.Changed("config") || !errors.Is(err, fs.ErrNotExist) {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config %s: %w", path, err)
		}
	}

	// 変更されたフラグ、またはファイルに無いキーのフラグ既定値を反映する
	if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
		return nil, fmt.Errorf("failed to load flags: %w", err)
	}

	cfg := &cliConfig{
		APIURL:    k.String("api-url"),
		StatePath: k.String("state"),
	}
	if cfg.APIURL == "" {
		return nil, errors.New("api-url must not be empty")
	}
	if cfg.StatePath == "" {
		return nil, errors.New("state must not be empty")
	}
	return cfg, nil
}
