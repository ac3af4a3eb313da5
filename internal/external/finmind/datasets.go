package finmind

// FinMind dataset names used by the dashboard.
const (
	DatasetStockInfo     = "TaiwanStockInfo"
	DatasetPrice         = "TaiwanStockPrice"
	DatasetInstitutional = "TaiwanStockInstitutionalInvestorsBuySell"
	DatasetShareholding  = "TaiwanStockShareholding"
	DatasetMargin        = "TaiwanStockMarginPurchaseShortSale"
	DatasetHolders       = "TaiwanStockHoldingSharesPer"
	DatasetDividend      = "TaiwanStockDividend"
	DatasetRevenue       = "TaiwanStockMonthRevenue"
	DatasetFinancial     = "TaiwanStockFinancialStatements"
	DatasetBalanceSheet  = "TaiwanStockBalanceSheet"
	DatasetPER           = "TaiwanStockPER"
)

// StockInfo is one roster row from TaiwanStockInfo.
type StockInfo struct {
	StockID          string `json:"stock_id"`
	StockName        string `json:"stock_name"`
	IndustryCategory string `json:"industry_category"`
	Type             string `json:"type"` // twse（上市）/ tpex（上櫃）
}

// PriceRecord is one daily OHLCV row from TaiwanStockPrice.
// FinMind 欄位命名照抄上游：max/min 是高低點，Trading_Volume 是股數。
type PriceRecord struct {
	Date          string  `json:"date"`
	StockID       string  `json:"stock_id"`
	Open          float64 `json:"open"`
	Max           float64 `json:"max"`
	Min           float64 `json:"min"`
	Close         float64 `json:"close"`
	Spread        float64 `json:"spread"`
	TradingVolume float64 `json:"Trading_Volume"`
	TradingMoney  float64 `json:"Trading_money"`
}

// InstitutionalRecord is one row of TaiwanStockInstitutionalInvestorsBuySell.
type InstitutionalRecord struct {
	Date    string  `json:"date"`
	StockID string  `json:"stock_id"`
	Name    string  `json:"name"` // 外資/投信/自營商，中英文格式都可能出現
	Buy     float64 `json:"buy"`
	Sell    float64 `json:"sell"`
}

// ShareholdingRecord is one row of TaiwanStockShareholding.
type ShareholdingRecord struct {
	Date                   string  `json:"date"`
	StockID                string  `json:"stock_id"`
	ForeignInvestmentShares float64 `json:"ForeignInvestmentShares"`
	// 外資持股比例（%）
	ForeignInvestmentSharesRatio float64 `json:"ForeignInvestmentSharesRatio"`
}
