// Package response はPorygon APIで共通のJSONレスポンス形式を提供する。
//
// すべてのレスポンスは {"responseCode", "responseMessage", "results"} の形を持ち、
// エラー時の results は常に null となる。
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Body は標準化されたAPIレスポンス。
type Body[T any] struct {
	// ResponseCode はHTTPステータスコードと同じ値を持つ応答コード。
	ResponseCode int `json:"responseCode"`
	// ResponseMessage は応答メッセージ。
	ResponseMessage string `json:"responseMessage"`
	// Results は応答結果。エラー時はnull。
	Results *T `json:"results"`
}

// OK はステータス200で結果を返す。
func OK[T any](c *gin.Context, message string, results T) {
	c.JSON(http.StatusOK, Body[T]{
		ResponseCode:    http.StatusOK,
		ResponseMessage: message,
		Results:         &results,
	})
}

// Error は results を null としたエラーレスポンスを返す。
// 後続のハンドラは実行されない。
func Error(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, Body[struct{}]{
		ResponseCode:    status,
		ResponseMessage: message,
	})
}
