package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "搜尋股票代號或名稱",
	Args:  cobra.ExactArgs(1),
	Example: `  go run ./cmd/twstock search 台積
  go run ./cmd/twstock search 2330`,
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}

	ctx := context.Background()
	if !app.roster.Available(ctx) {
		return fmt.Errorf("無法取得股票清單")
	}

	results := app.roster.Search(ctx, args[0])
	if len(results) == 0 {
		fmt.Println("查無符合的股票")
		return nil
	}

	for _, s := range results {
		fmt.Printf("%-8s %-12s %-12s %s\n", s.StockID, s.StockName, s.IndustryCategory, s.Type)
	}
	return nil
}
