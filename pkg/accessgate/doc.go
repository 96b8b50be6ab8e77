// Package accessgate はAPIキーによる認証とエンドポイント単位の認可を提供する。
//
// 呼び出し元が提示したAPIキー（不透明な文字列）を静的なレジストリで
// Identity（ユーザーIDとロール）に解決し、ロールに許可されたエンドポイント
// パターン（"<METHOD> <path>"、"*" は任意の文字列に一致）と照合する。
//
// レジストリはプロセス起動時に一度だけ構築され、以後は読み取り専用となる。
// そのため Gate は複数のゴルーチンからロックなしで同時に使用できる。
package accessgate
