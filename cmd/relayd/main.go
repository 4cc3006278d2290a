package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/liberchat/relay/internal/server"
)

var version = "0.1.0" // Set at build time using -ldflags.

var rootCmd = &cobra.Command{
	Use:   "relayd",
	Short: "Liberchat relay server",
	Long: `relayd runs the Liberchat presence and broadcast hub: clients connect
over a websocket, register a display name, exchange text and file messages,
and observe a live roster of connected peers.`,
	Run: func(cmd *cobra.Command, args []string) {
		server.New().Start()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the relayd version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("relayd v%s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
