package main

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/nao1215/porygon/internal/keystore"
	"github.com/nao1215/porygon/pkg/accessgate"
	"github.com/spf13/cobra"
)

// newRootCmd はporygon-keysのルートコマンドを生成する。
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "porygon-keys",
		Short:         "Porygon APIのアクセスポリシー管理",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newImportCmd())
	rootCmd.AddCommand(newListCmd())
	return rootCmd
}

// newValidateCmd はポリシーYAMLを検証するコマンドを生成する。
func newValidateCmd() *cobra.Command {
	var policyPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "ポリシーYAMLを検証する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := accessgate.LoadFile(policyPath)
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), p)
			return nil
		},
	}
	cmd.Flags().StringVar(&policyPath, "policy", "config/access.yaml", "ポリシーYAMLのパス")
	return cmd
}

// newImportCmd はポリシーYAMLをキーストアへ取り込むコマンドを生成する。
func newImportCmd() *cobra.Command {
	var policyPath, dbPath string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "ポリシーYAMLのロールとAPIキーでキーストアを置き換える",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := accessgate.LoadFile(policyPath)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			store, err := keystore.Open(ctx, dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Import(ctx, p); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s にインポートしました\n", dbPath)
			printSummary(cmd.OutOrStdout(), p)
			return nil
		},
	}
	cmd.Flags().StringVar(&policyPath, "policy", "config/access.yaml", "ポリシーYAMLのパス")
	cmd.Flags().StringVar(&dbPath, "db", "", "キーストアのSQLiteファイルのパス")
	_ = cmd.MarkFlagRequired("db")
	return cmd
}

// newListCmd は登録済みのAPIキーを一覧表示するコマンドを生成する。
func newListCmd() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "キーストアに登録されたAPIキーを表示する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := keystore.Open(ctx, dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.ListKeys(ctx)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "USER_ID\tROLE\tAPI_KEY\tCREATED_AT")
			for _, r := range records {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.UserID, r.Role, r.MaskedKey, r.CreatedAt)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "キーストアのSQLiteファイルのパス")
	_ = cmd.MarkFlagRequired("db")
	return cmd
}

// printSummary はポリシーの概要を出力する。未定義ロールを参照するキーがあれば警告する。
func printSummary(w io.Writer, p accessgate.Policy) {
	names := make([]string, 0, len(p.Roles))
	for name := range p.Roles {
		names = append(names, name)
	}
	sort.Strings(names)

	_, _ = fmt.Fprintf(w, "header: %s\n", p.Header)
	_, _ = fmt.Fprintf(w, "public_paths: %d\n", len(p.PublicPaths))
	_, _ = fmt.Fprintf(w, "roles: %d\n", len(p.Roles))
	for _, name := range names {
		_, _ = fmt.Fprintf(w, "  %s: %d patterns\n", name, len(p.Roles[name]))
	}
	_, _ = fmt.Fprintf(w, "api_keys: %d\n", len(p.APIKeys))
	for _, r := range p.UnknownRoles() {
		_, _ = fmt.Fprintf(w, "warning: undefined role %q is referenced by api_keys\n", r)
	}
}
