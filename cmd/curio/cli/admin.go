package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/curiohq/curio/internal/service"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage the admin credential",
		Long:  "Set or hash the password that grants admin tokens through the login endpoint.",
	}

	cmd.AddCommand(newAdminSetPasswordCmd())
	cmd.AddCommand(newAdminHashPasswordCmd())

	return cmd
}

// ---------- admin set-password ----------

func newAdminSetPasswordCmd() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "set-password",
		Short: "Set the admin password",
		Long:  "Store a new admin password hash in the database, replacing any previous one.",
		Example: `  curio admin set-password            # prompts for password
  curio admin set-password --password secret123`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminSetPassword(password)
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "New admin password (prompted if omitted)")

	return cmd
}

func runAdminSetPassword(password string) error {
	if password == "" {
		fmt.Print("New password: ")
		pwBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Println()
		password = string(pwBytes)

		fmt.Print("Confirm password: ")
		confirmBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		fmt.Println()

		if password != string(confirmBytes) {
			return fmt.Errorf("passwords do not match")
		}
	}

	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	if err := newAuthService(st).ForceSetAdminPassword(context.Background(), password); err != nil {
		return err
	}

	fmt.Println("Admin password updated.")
	return nil
}

// ---------- admin hash-password ----------

func newAdminHashPasswordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print the bcrypt hash of a password",
		Long:  "Hash a password for use in the CURIO_ADMIN_PASSWORD_HASH environment variable.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := service.HashPassword(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
	return cmd
}
