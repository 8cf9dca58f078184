// Package main is the entry point for the heliokv server and client.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "heliokv",
	Short: "An in-memory key-value store with selectable synchronization",
	Long: `heliokv is an in-memory key-value store served over gRPC and HTTP.
The server can run synchronized, unsynchronized or sequenced so concurrent
clients can observe what mutual exclusion guarantees.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, clientCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "heliokv:", err)
		os.Exit(1)
	}
}
