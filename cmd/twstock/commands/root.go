package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "twstock",
	Short: "台灣股票資訊看板後端",
	Long: `twstock Unified CLI

台股看板的 Go 後端：FinMind 資料代理、技術指標、
盤中報價與多條件選股掃描。

Usage:
  go run ./cmd/twstock [command]

Examples:
  go run ./cmd/twstock api
  go run ./cmd/twstock search 台積
  go run ./cmd/twstock screen --stocks 2330,2317 --conditions price_above_ma20`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
