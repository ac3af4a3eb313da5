package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// screenCmd represents the screen command
var screenCmd = &cobra.Command{
	Use:   "screen",
	Short: "多條件技術面選股掃描",
	Long: `對給定的股票清單平行掃描技術面條件，全部成立才列入結果。

Conditions:
  price_above_ma20          收盤價在 20 日均線之上
  price_below_ma20          收盤價在 20 日均線之下
  kd_golden_cross           KD 黃金交叉
  kd_death_cross            KD 死亡交叉
  macd_histogram_positive   MACD 柱狀圖為正
  macd_golden_cross         MACD 黃金交叉
  macd_entangle             MACD 柱狀圖糾纏（盤整）`,
	Example: `  go run ./cmd/twstock screen --stocks 2330,2317,2454 --conditions price_above_ma20,kd_golden_cross`,
	RunE:    runScreen,
}

var (
	screenStocks     string
	screenConditions string
)

func init() {
	rootCmd.AddCommand(screenCmd)

	screenCmd.Flags().StringVar(&screenStocks, "stocks", "", "逗號分隔的股票代號")
	screenCmd.Flags().StringVar(&screenConditions, "conditions", "", "逗號分隔的篩選條件")
	screenCmd.MarkFlagRequired("stocks")
	screenCmd.MarkFlagRequired("conditions")
}

func runScreen(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}

	stockIDs := splitList(screenStocks)
	conditions := splitList(screenConditions)
	if len(stockIDs) == 0 {
		return fmt.Errorf("未提供待掃描股票代碼")
	}

	results := app.screener.Screen(context.Background(), stockIDs, conditions)
	if len(results) == 0 {
		fmt.Println("沒有符合條件的股票")
		return nil
	}

	fmt.Printf("%-8s %-12s %10s %10s %8s %8s %10s\n",
		"代號", "名稱", "收盤", "MA20", "K", "D", "MACD柱")
	for _, r := range results {
		fmt.Printf("%-8s %-12s %10.2f %10.2f %8.2f %8.2f %10.2f\n",
			r.StockID, r.StockName, r.Close, r.MA20, r.K, r.D, r.MACDHist)
	}
	fmt.Printf("\n%d / %d 檔符合全部條件\n", len(results), len(stockIDs))
	return nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
