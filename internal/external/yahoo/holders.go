package yahoo

import (
	"context"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ycwu/twstock/backend/internal/chip"
)

// FetchMajorHolders scrapes the ownership-concentration table from the
// Yahoo major-holders page. Returns the scraped weekly samples, newest
// first as the page lists them. A nil error with an empty slice means
// the page had no usable rows.
// ⭐ SSOT: 大戶持股比率抓取只在這個函式
func (c *Client) FetchMajorHolders(ctx context.Context, stockID string) ([]chip.HolderSample, error) {
	html, err := c.fetchHTML(ctx, "/quote/"+stockID+"/major-holders")
	if err != nil {
		return nil, err
	}

	samples := parseMajorHolders(html)
	c.logger.WithFields(map[string]interface{}{
		"stock_id": stockID,
		"count":    len(samples),
	}).Debug("Fetched major holders")
	return samples, nil
}

// parseMajorHolders parses the holder table rows.
// 頁面結構: li.List(n) > div.table-row > 5 欄
// 欄位: 日期 | 大戶比例 | 董監+大戶比例 | 散戶比例 | 總股東數
func parseMajorHolders(html string) []chip.HolderSample {
	var samples []chip.HolderSample

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return samples
	}

	doc.Find(`li[class*="List(n)"]`).Each(func(i int, li *goquery.Selection) {
		row := li.Find(`div[class*="table-row"]`).First()
		if row.Length() == 0 {
			return
		}

		cols := row.Children()
		if cols.Length() < 5 {
			return
		}

		dateText := strings.TrimSpace(cols.Eq(0).Text())
		if dateText == "" {
			return
		}

		major := strings.TrimSpace(strings.TrimSuffix(cols.Eq(1).Text(), "%"))
		if major == "-" {
			// 無資料的列直接略過
			return
		}

		samples = append(samples, chip.HolderSample{
			Date:               strings.ReplaceAll(dateText, "/", "-"),
			MajorRatio:         parseRatio(major),
			DirectorMajorRatio: parseRatio(cols.Eq(2).Text()),
			RetailRatio:        parseRatio(cols.Eq(3).Text()),
		})
	})

	return samples
}

func parseRatio(s string) float64 {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if s == "" || s == "-" {
		return 0
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0
	}
	return v
}
