// Package main はinvmanのセッションクライアントCLI。
//
// サブコマンド:
//
//	register  ユーザーを登録してログインする
//	login     ログインしてセッションを保存する
//	logout    保存済みセッションを破棄する
//	whoami    保存済みのユーザー情報を表示する
//	profile   サーバーからユーザー情報を取得する
//	products  商品一覧を表示する
//	latest    最新の商品を表示する
package main

import (
	"os"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
