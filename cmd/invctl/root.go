package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hitoshi/invman/internal/session"
)

// NewRootCmd はinvctlのルートコマンドを生成する。
func NewRootCmd() *cobra.Command {
	dir := defaultConfigDir()

	cmd := &cobra.Command{
		Use:   "invctl",
		Short: "invctl - session client for the invman API",
		Long: `invctl signs in to an invman API server, keeps the session token
in a local SQLite file and calls authorized endpoints with it.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", filepath.Join(dir, "config.yaml"), "config file path")
	cmd.PersistentFlags().String("api-url", defaultAPIURL, "API base URL")
	cmd.PersistentFlags().String("state", filepath.Join(dir, "session.db"), "session state file")

	cmd.AddCommand(NewRegisterCmd())
	cmd.AddCommand(NewLoginCmd())
	cmd.AddCommand(NewLogoutCmd())
	cmd.AddCommand(NewWhoamiCmd())
	cmd.AddCommand(NewProfileCmd())
	cmd.AddCommand(NewProductsCmd())
	cmd.AddCommand(NewLatestCmd())

	return cmd
}

// withClient は設定を読み込み、保存済みセッションを復元したClientでfnを実行する。
func withClient(cmd *cobra.Command, fn func(ctx context.Context, c *session.Client) error) error {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.StatePath), 0o700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	storage, err := session.OpenSQLiteStorage(cfg.StatePath)
	if err != nil {
		return err
	}
	defer storage.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	client, err := session.NewClient(ctx, cfg.APIURL, storage)
	if err != nil {
		return err
	}
	return fn(ctx, client)
}
