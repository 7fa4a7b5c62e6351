// Command invman は在庫管理APIサーバーを起動する。
//
//	invman [serve]        APIサーバーを起動する（デフォルト）
//	invman migrate [down] データベースマイグレーションを適用（またはロールバック）する
//	invman healthcheck    稼働中サーバーの /health を確認する
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/invman/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "invman: %v\n", err)
		os.Exit(1)
	}
}
