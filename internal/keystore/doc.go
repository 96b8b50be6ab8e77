// Package keystore はAPIキーとロールの定義をSQLiteに保存するレジストリを提供する。
//
// サービス起動時に一度だけ読み込み、accessgate.Policyとして返す。
// 実行中のリクエストからデータベースを参照することはない。
package keystore
