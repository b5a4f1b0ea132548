package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// Execute creates the root command tree and runs it.
func Execute(version, commit, date string) error {
	rootCmd := newRootCmd(version, commit, date)
	return rootCmd.Execute()
}

func newRootCmd(version, commit, date string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "curio",
		Short: "Curated link gallery with tiered access",
		Long: `Curio serves an admin-curated gallery of external resources organized by
category, tag, and sub-filter, with tiered visibility: anonymous visitors,
access key holders with percentage-based disclosure, and admins.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./curio.yaml)")
	cmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory for the SQLite database (default: ~/.curio)")

	cobra.OnInitialize(initConfig)

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newVersionCmd(version, commit, date))
	cmd.AddCommand(newAdminCmd())
	cmd.AddCommand(newKeyCmd())
	cmd.AddCommand(newSeedCmd())

	return cmd
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("curio")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.curio")
	}

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.cors_origins", []string{"*"})
	viper.SetDefault("server.uploads_dir", "data/uploads")
	viper.SetDefault("ratelimit.general", 300)
	viper.SetDefault("ratelimit.auth", 10)
	viper.SetDefault("categories.admin_only", []string{"Learning"})
	viper.SetDefault("categories.percentage_controlled", []string{"星芒学社"})
	viper.SetDefault("seed.path", "seed.yaml")

	viper.SetEnvPrefix("CURIO")
	viper.AutomaticEnv()
	viper.ReadInConfig() // Ignore error - config file is optional
}
