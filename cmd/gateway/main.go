package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/n9te9/federation-executor/server"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of the federation gateway",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("federation-gateway v0.1.0")
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter gateway.yaml in the current directory",
	Run: func(cmd *cobra.Command, args []string) {
		if err := server.Init(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the federation gateway server",
	Run: func(cmd *cobra.Command, args []string) {
		server.Run()
	},
}

func main() {
	rootCmd := &cobra.Command{Use: "gateway"}

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		panic(err)
	}
}
