package cmd

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/emanuelstiuj/Mini-Shell/core/server"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve sandboxed shell sessions over SSH",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		configuration, err := loadConfig()
		if err != nil {
			return err
		}

		srv, err := server.New(configuration, cmd.ErrOrStderr())
		if err != nil {
			return err
		}

		go func() {
			if err := srv.ListenAndServe(); err != nil {
				log.Fatal(err)
			}
		}()

		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigs
		log.Printf("got signal %q, terminating", sig)

		if err := srv.Close(); err != nil {
			log.Printf("server shutdown failed: %s", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
