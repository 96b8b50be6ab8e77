// Porygon APIサービスのエントリポイント。
// APIキーによるアクセスゲートを通したHTTP APIを提供する。
package main

import (
	"context"
	"log"

	"github.com/nao1215/porygon/internal/config"
	"github.com/nao1215/porygon/internal/gateway"
)

func main() {
	cfg := config.Load()

	server, err := gateway.NewServer(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Porygon APIサーバーの初期化に失敗: %v", err)
	}

	log.Printf("Porygon APIサービスを起動します: :%s", cfg.Port)
	if err := server.Run(); err != nil {
		log.Fatalf("Porygon APIサービスの起動に失敗: %v", err)
	}
}
