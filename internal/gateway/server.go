package gateway

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/porygon/internal/config"
	"github.com/nao1215/porygon/internal/keystore"
	"github.com/nao1215/porygon/pkg/accessgate"
	"github.com/nao1215/porygon/pkg/middleware"
	"github.com/nao1215/porygon/pkg/response"
)

// serviceName はヘルスチェックで返すサービス名。
const serviceName = "porygon-api"

// Server はPorygon APIサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// gate はAPIキーの認証と認可を行うアクセスゲート。
	gate *accessgate.Gate
}

// Info は公開エンドポイントで返すサービス情報。
type Info struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Version     string `json:"version"`
}

// NewServer は設定からアクセスポリシーを読み込み、新しいサーバーを生成する。
// DBPathが設定されている場合、ロールとAPIキーはSQLiteキーストアの内容で置き換える。
// キーストアにAPIキーが1件もない場合はエラーを返す。
func NewServer(ctx context.Context, cfg config.Config) (*Server, error) {
	policy, err := loadPolicy(ctx, cfg)
	if err != nil {
		return nil, err
	}

	gate, err := accessgate.New(policy)
	if err != nil {
		return nil, fmt.Errorf("アクセスゲートの構築に失敗: %w", err)
	}
	for _, r := range policy.UnknownRoles() {
		log.Printf("[AccessGate] 未定義のロールが参照されています。このロールのキーは全て403になります: %s", r)
	}
	log.Printf("[AccessGate] ポリシーを読み込みました: roles=%d api_keys=%d header=%s",
		len(policy.Roles), len(policy.APIKeys), gate.Header())

	return newServer(cfg, gate), nil
}

// newServer はミドルウェアとルーティングを設定したサーバーを生成する。
func newServer(cfg config.Config, gate *accessgate.Gate) *Server {
	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestID())
	router.Use(gin.Logger())
	router.Use(middleware.CORS(cfg.AllowedOrigins, gate.Header()))
	router.Use(middleware.AccessGate(gate))

	s := &Server{
		router: router,
		port:   cfg.Port,
		gate:   gate,
	}
	s.setupRoutes()
	return s
}

// loadPolicy はYAMLファイルからポリシーを読み込み、キーストアが指定されていれば重ねる。
func loadPolicy(ctx context.Context, cfg config.Config) (accessgate.Policy, error) {
	policy, err := accessgate.LoadFile(cfg.PolicyPath)
	if err != nil {
		return accessgate.Policy{}, fmt.Errorf("アクセスポリシーの読み込みに失敗: %w", err)
	}
	if cfg.DBPath == "" {
		return policy, nil
	}

	store, err := keystore.Open(ctx, cfg.DBPath)
	if err != nil {
		return accessgate.Policy{}, fmt.Errorf("キーストアのオープンに失敗: %w", err)
	}
	defer store.Close()

	policy, err = store.Load(ctx, policy)
	if err != nil {
		return accessgate.Policy{}, fmt.Errorf("キーストアの読み込みに失敗: %w", err)
	}
	// 空のキーストアで起動すると全リクエストが401になるため起動を中止する
	if len(policy.APIKeys) == 0 {
		return accessgate.Policy{}, fmt.Errorf("キーストア %s にAPIキーが登録されていません。porygon-keys import で登録してください", cfg.DBPath)
	}
	return policy, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// Handler はサーバーのHTTPハンドラーを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	// ヘルスチェック（公開パス）
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": serviceName})
	})

	api := s.router.Group("/api/v1")
	{
		api.GET("/public/info", s.handleInfo())
		api.GET("/porygon/me", s.handleMe())
	}

	// 未登録のルートもゲートを通過した後に404を返す
	s.router.NoRoute(func(c *gin.Context) {
		response.Error(c, http.StatusNotFound, "Not Found.")
	})
}

// handleInfo はサービス情報を返すハンドラを返す。
func (s *Server) handleInfo() gin.HandlerFunc {
	return func(c *gin.Context) {
		response.OK(c, "Success", Info{
			Title:       "Porygon API",
			Description: "API for data analysis and machine learning services",
			Version:     "1.0.0",
		})
	}
}

// handleMe は呼び出し元のIdentityを返すハンドラを返す。
func (s *Server) handleMe() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := accessgate.IdentityFromContext(c.Request.Context())
		if !ok {
			response.Error(c, http.StatusUnauthorized, "Missing authentication credentials.")
			return
		}
		response.OK(c, "Success", id)
	}
}
