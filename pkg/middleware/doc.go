// Package middleware はGinベースのPorygon APIで使用する共通ミドルウェアを提供する。
//
// APIキーによる認証・認可（AccessGate）、リクエストIDの付与、
// パニックリカバリ、CORS設定を含む。
package middleware
