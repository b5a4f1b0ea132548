package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func newKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage access keys",
		Long:  "Generate, list, and revoke the shareable access keys that grant starlight sessions.",
	}

	cmd.AddCommand(newKeyGenerateCmd())
	cmd.AddCommand(newKeyListCmd())
	cmd.AddCommand(newKeyRevokeCmd())

	return cmd
}

// ---------- key generate ----------

func newKeyGenerateCmd() *cobra.Command {
	var (
		username   string
		name       string
		role       string
		percentage int
		days       int
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a new access key",
		Long:  "Mint a shareable access key. The code is printed once; share it with the intended holder.",
		Example: `  curio key generate --username alice --days 30
  curio key generate --username bob --role admin --percentage 100 --days 7`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyGenerate(username, name, role, percentage, days)
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Holder username (required)")
	cmd.Flags().StringVar(&name, "name", "", "Display name for the key")
	cmd.Flags().StringVar(&role, "role", "user", "Key role: user or admin")
	cmd.Flags().IntVar(&percentage, "percentage", 100, "Disclosure percentage for percentage-controlled categories (0-100)")
	cmd.Flags().IntVar(&days, "days", 30, "Validity in days")
	cmd.MarkFlagRequired("username")

	return cmd
}

func runKeyGenerate(username, name, role string, percentage, days int) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	key, err := newAuthService(st).GenerateAccessKey(context.Background(), username, name, role, percentage, days)
	if err != nil {
		return err
	}

	fmt.Println("Access key generated:")
	fmt.Println()
	fmt.Printf("  Code:       %s\n", key.Code)
	fmt.Printf("  Role:       %s\n", key.Role)
	fmt.Printf("  Percentage: %d\n", key.Percentage)
	fmt.Printf("  Expires:    %s\n", key.ExpiresAt.Format(time.RFC3339))
	return nil
}

// ---------- key list ----------

func newKeyListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all live access keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyList(jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runKeyList(jsonOutput bool) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	keys, err := st.ListAccessKeys(context.Background(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("list access keys: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(keys)
	}

	if len(keys) == 0 {
		fmt.Println("No live access keys.")
		return nil
	}

	fmt.Printf("%-34s %-12s %-6s %-4s %s\n", "CODE", "USERNAME", "ROLE", "PCT", "EXPIRES")
	for _, k := range keys {
		fmt.Printf("%-34s %-12s %-6s %-4d %s\n",
			k.Code, k.Username, k.Role, k.Percentage, k.ExpiresAt.Format("2006-01-02 15:04"))
	}
	return nil
}

// ---------- key revoke ----------

func newKeyRevokeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revoke <code>",
		Short: "Revoke an access key",
		Long:  "Delete an access key and every session token minted from it.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyRevoke(args[0])
		},
	}
	return cmd
}

func runKeyRevoke(code string) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	if err := newAuthService(st).DeleteAccessKey(context.Background(), code); err != nil {
		return err
	}
	fmt.Printf("Access key %s revoked.\n", code)
	return nil
}
