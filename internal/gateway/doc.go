// Package gateway はPorygon APIサービスのHTTPサーバーを提供する。
//
// 全てのリクエストはAPIキーによるアクセスゲートを通過してからハンドラに渡される。
// 公開パス以外では、ゲートが解決したIdentityがリクエストのコンテキストに設定される。
package gateway
