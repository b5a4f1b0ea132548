package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/curiohq/curio/internal/seed"
)

func newSeedCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load gallery content from a YAML seed file",
		Long:  "Apply a seed document: replaces each listed category's filters and tag dictionary and upserts its resources.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				path = viper.GetString("seed.path")
			}
			return runSeed(path)
		},
	}

	cmd.Flags().StringVar(&path, "file", "", "Seed file path (default from config: seed.path)")

	return cmd
}

func runSeed(path string) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	doc, err := seed.Load(path)
	if err != nil {
		return err
	}
	if err := seed.Apply(context.Background(), st, doc); err != nil {
		return err
	}

	fmt.Printf("Seeded %d categories from %s\n", len(doc.Categories), path)
	return nil
}
