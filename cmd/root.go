package cmd

import (
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/emanuelstiuj/Mini-Shell/core/config"
)

var cfgPath string

func loadConfig() (*config.Configuration, error) {
	return config.Load(afero.NewOsFs(), cfgPath)
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mini-shell",
	Short: "A small POSIX-flavoured shell",
	Long: `A small POSIX-flavoured shell: sequencing, conditional execution,
pipes, background jobs and redirection over a handful of builtins.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config.yaml (empty uses the built-in default)")
}
