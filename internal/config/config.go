// Package config はPorygon APIサービスの環境変数による設定を提供する。
package config

import (
	"os"
	"strings"
)

// Config はサービスの起動設定。
type Config struct {
	// Port はHTTPサーバーのリッスンポート。
	Port string
	// PolicyPath はアクセスポリシーを記述したYAMLファイルのパス。
	PolicyPath string
	// DBPath はAPIキーとロールを保存したSQLiteのパス。空の場合はYAMLのみを使う。
	DBPath string
	// AllowedOrigins はCORSで許可するオリジン。"*" は全オリジンを表す。
	AllowedOrigins []string
}

// Load は環境変数から設定を読み込む。
//
//   - PORT: リッスンポート（既定値 8080）
//   - ACCESS_POLICY_PATH: ポリシーYAMLのパス（既定値 config/access.yaml）
//   - ACCESS_DB_PATH: SQLiteキーストアのパス（既定値なし）
//   - CORS_ALLOWED_ORIGINS: カンマ区切りの許可オリジン（既定値 *）
func Load() Config {
	return Config{
		Port:           getEnvOr("PORT", "8080"),
		PolicyPath:     getEnvOr("ACCESS_POLICY_PATH", "config/access.yaml"),
		DBPath:         os.Getenv("ACCESS_DB_PATH"),
		AllowedOrigins: splitList(getEnvOr("CORS_ALLOWED_ORIGINS", "*")),
	}
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// splitList はカンマ区切りの文字列を分割し、空要素を除いて返す。
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
