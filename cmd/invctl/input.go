package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// readPassword はterm.ReadPasswordのテスト用差し替え口。
var readPassword = term.ReadPassword

// promptPassword はwにプロンプトを表示し、端末からエコーなしでパスワードを読む。
func promptPassword(w io.Writer) (string, error) {
	if _, err := fmt.Fprint(w, "Password: "); err != nil {
		return "", err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if len(pw) == 0 {
		return "", errors.New("password must not be empty")
	}
	return string(pw), nil
}
