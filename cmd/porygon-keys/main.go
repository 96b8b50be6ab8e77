// Porygon APIのアクセスポリシーを管理する運用者向けCLI。
// ポリシーYAMLの検証、SQLiteキーストアへのインポート、登録済みAPIキーの一覧表示を行う。
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
