package keystore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sort"

	"github.com/nao1215/porygon/pkg/accessgate"
	"github.com/nao1215/porygon/pkg/migration"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store はSQLiteに保存されたAPIキーとロールの定義。
type Store struct {
	// db はSQLiteデータベース接続。
	db *sql.DB
}

// KeyRecord は一覧表示用のAPIキー情報。APIキー自体はマスクされる。
type KeyRecord struct {
	// MaskedKey は先頭数文字以外を伏せたAPIキー。
	MaskedKey string
	// UserID はAPIキーに紐づくユーザーID。
	UserID string
	// Role はユーザーのロール名。
	Role string
	// CreatedAt は登録日時。
	CreatedAt string
}

// Open はSQLiteデータベースを開き、マイグレーションを適用する。
// dsnには "/data/access.db" や ":memory:" などを指定する。
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	// 起動時の読み込みと運用時のインポートのみなので接続は1本で足りる
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("外部キー制約の有効化に失敗: %w", err)
	}
	if err := migration.Run(ctx, db, migrationsFS, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}
	return &Store{db: db}, nil
}

// Close はデータベース接続を閉じる。
func (s *Store) Close() error {
	return s.db.Close()
}

// Load は保存されたロールとAPIキーでbaseのRolesとAPIKeysを置き換えたPolicyを返す。
// ヘッダー名や公開パスなどその他の項目はbaseの値を保つ。
func (s *Store) Load(ctx context.Context, base accessgate.Policy) (accessgate.Policy, error) {
	roles, err := s.loadRoles(ctx)
	if err != nil {
		return accessgate.Policy{}, fmt.Errorf("ロールの読み込みに失敗: %w", err)
	}
	keys, err := s.loadKeys(ctx)
	if err != nil {
		return accessgate.Policy{}, fmt.Errorf("APIキーの読み込みに失敗: %w", err)
	}

	p := base
	p.PublicPaths = append([]string(nil), base.PublicPaths...)
	p.Roles = roles
	p.APIKeys = keys
	if err := p.Validate(); err != nil {
		return accessgate.Policy{}, fmt.Errorf("保存されたポリシーが不正です: %w", err)
	}
	return p, nil
}

// loadRoles はロールとパターンを評価順に読み込む。
func (s *Store) loadRoles(ctx context.Context) (map[string][]string, error) {
	roles := make(map[string][]string)

	nameRows, err := s.db.QueryContext(ctx, "SELECT name FROM roles")
	if err != nil {
		return nil, err
	}
	defer func() { _ = nameRows.Close() }()
	for nameRows.Next() {
		var name string
		if err := nameRows.Scan(&name); err != nil {
			return nil, err
		}
		roles[name] = []string{}
	}
	if err := nameRows.Err(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, "SELECT role, pattern FROM role_endpoints ORDER BY role, position")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var role, pattern string
		if err := rows.Scan(&role, &pattern); err != nil {
			return nil, err
		}
		roles[role] = append(roles[role], pattern)
	}
	return roles, rows.Err()
}

// loadKeys はAPIキーとIdentityの対応を読み込む。
func (s *Store) loadKeys(ctx context.Context) (map[string]accessgate.Identity, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT api_key, user_id, role FROM api_keys")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	keys := make(map[string]accessgate.Identity)
	for rows.Next() {
		var key string
		var id accessgate.Identity
		if err := rows.Scan(&key, &id.UserID, &id.Role); err != nil {
			return nil, err
		}
		keys[key] = id
	}
	return keys, rows.Err()
}

// Import は保存済みのロールとAPIキーを全て削除し、Policyの内容で置き換える。
// 1つのトランザクションで実行するため、失敗した場合は元の内容が残る。
func (s *Store) Import(ctx context.Context, p accessgate.Policy) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("ポリシーが不正です: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, stmt := range []string{"DELETE FROM role_endpoints", "DELETE FROM roles", "DELETE FROM api_keys"} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("既存データの削除に失敗: %w", err)
		}
	}

	names := make([]string, 0, len(p.Roles))
	for name := range p.Roles {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := tx.ExecContext(ctx, "INSERT INTO roles (name) VALUES (?)", name); err != nil {
			return fmt.Errorf("ロール %q の登録に失敗: %w", name, err)
		}
		for i, pattern := range p.Roles[name] {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO role_endpoints (role, position, pattern) VALUES (?, ?, ?)",
				name, i, pattern); err != nil {
				return fmt.Errorf("ロール %q のパターン登録に失敗: %w", name, err)
			}
		}
	}

	for key, id := range p.APIKeys {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO api_keys (api_key, user_id, role) VALUES (?, ?, ?)",
			key, id.UserID, id.Role); err != nil {
			return fmt.Errorf("APIキー %s の登録に失敗: %w", accessgate.MaskKey(key), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("コミットに失敗: %w", err)
	}
	return nil
}

// ListKeys は登録済みのAPIキーをユーザーID順に返す。
func (s *Store) ListKeys(ctx context.Context) ([]KeyRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT api_key, user_id, role, CAST(created_at AS TEXT) FROM api_keys ORDER BY user_id")
	if err != nil {
		return nil, fmt.Errorf("APIキー一覧の取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []KeyRecord
	for rows.Next() {
		var key string
		var r KeyRecord
		if err := rows.Scan(&key, &r.UserID, &r.Role, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("APIキー一覧の読み取りに失敗: %w", err)
		}
		r.MaskedKey = accessgate.MaskKey(key)
		records = append(records, r)
	}
	return records, rows.Err()
}
