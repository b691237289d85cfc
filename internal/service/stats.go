package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"pos-service/internal/model"

	"gorm.io/gorm"
)

// StatsService derives dashboard figures and reports from the catalog and
// the movement ledger. It never mutates anything. All historical revenue
// comes from OUT movements and the unit price recorded on them, so the
// numbers stay correct even after catalog price edits.
type StatsService struct {
	db                *gorm.DB
	lowStockThreshold int
	topSellersLimit   int
}

// NewStatsService builds a stats service. The low-stock threshold and top
// sellers limit come from configuration; they are fixed at construction.
func NewStatsService(db *gorm.DB, lowStockThreshold, topSellersLimit int) *StatsService {
	if lowStockThreshold < 1 {
		lowStockThreshold = 5
	}
	if topSellersLimit < 1 {
		topSellersLimit = 5
	}
	return &StatsService{db: db, lowStockThreshold: lowStockThreshold, topSellersLimit: topSellersLimit}
}

// DayStat is one day of the trailing sales series.
type DayStat struct {
	Date    string  `json:"date"`
	Sales   int64   `json:"sales"`
	Revenue float64 `json:"revenue"`
}

// TopSeller ranks a product by total units sold.
type TopSeller struct {
	ProductID uint   `json:"product_id"`
	Name      string `json:"name"`
	TotalSold int64  `json:"total_sold"`
}

// DashboardStats is the point-in-time dashboard snapshot.
type DashboardStats struct {
	TotalProducts        int64            `json:"total_products"`
	TotalStockValue      float64          `json:"total_stock_value"`
	LowStockCount        int64            `json:"low_stock_count"`
	TodaysRevenue        float64          `json:"todays_revenue"`
	CategoryDistribution map[string]int64 `json:"category_distribution"`
	Last7Days            []DayStat        `json:"last_7_days"`
	TopSellers           []TopSeller      `json:"top_sellers"`
}

// DailyReportRow aggregates one calendar day of sales.
type DailyReportRow struct {
	Date           string  `json:"date"`
	TotalOrders    int64   `json:"total_orders"`
	TotalRevenue   float64 `json:"total_revenue"`
	TotalItemsSold int64   `json:"total_items_sold"`
}

// Stats computes the dashboard snapshot. Repeated calls with no intervening
// writes return identical results.
func (s *StatsService) Stats(ctx context.Context) (*DashboardStats, error) {
	db := s.db.WithContext(ctx)

	var products []model.Product
	if err := db.Find(&products).Error; err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}

	stats := &DashboardStats{
		TotalProducts:        int64(len(products)),
		CategoryDistribution: make(map[string]int64),
	}
	for _, p := range products {
		stats.TotalStockValue += p.Price * float64(p.Quantity)
		if p.Quantity < s.lowStockThreshold {
			stats.LowStockCount++
		}
		stats.CategoryDistribution[p.Category]++
	}

	today := startOfDay(time.Now())
	revenue, _, err := s.salesBetween(db, today, today.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	stats.TodaysRevenue = revenue

	// Trailing 7 calendar days ending today, oldest first.
	for i := 6; i >= 0; i-- {
		dayStart := today.AddDate(0, 0, -i)
		dayEnd := dayStart.AddDate(0, 0, 1)
		dayRevenue, daySales, err := s.salesBetween(db, dayStart, dayEnd)
		if err != nil {
			return nil, err
		}
		stats.Last7Days = append(stats.Last7Days, DayStat{
			Date:    dayStart.Format("2006-01-02"),
			Sales:   daySales,
			Revenue: dayRevenue,
		})
	}

	topSellers, err := s.topSellers(db)
	if err != nil {
		return nil, err
	}
	stats.TopSellers = topSellers

	return stats, nil
}

// DailyReport groups all sales by calendar day, newest day first. An order
// is one bill; its lines share the bill reference on their ledger entries.
func (s *StatsService) DailyReport(ctx context.Context) ([]DailyReportRow, error) {
	var movements []model.StockMovement
	err := s.db.WithContext(ctx).
		Where("direction = ?", model.DirectionOut).
		Order("created_at ASC, id ASC").
		Find(&movements).Error
	if err != nil {
		return nil, fmt.Errorf("load sales movements: %w", err)
	}

	type dayAccumulator struct {
		orders  map[string]struct{}
		revenue float64
		items   int64
	}
	days := make(map[string]*dayAccumulator)
	for _, m := range movements {
		date := m.CreatedAt.Local().Format("2006-01-02")
		acc, ok := days[date]
		if !ok {
			acc = &dayAccumulator{orders: make(map[string]struct{})}
			days[date] = acc
		}
		acc.orders[m.Remark] = struct{}{}
		acc.revenue += m.UnitPrice * float64(m.Quantity)
		acc.items += int64(m.Quantity)
	}

	report := make([]DailyReportRow, 0, len(days))
	for date, acc := range days {
		report = append(report, DailyReportRow{
			Date:           date,
			TotalOrders:    int64(len(acc.orders)),
			TotalRevenue:   acc.revenue,
			TotalItemsSold: acc.items,
		})
	}
	sort.Slice(report, func(i, j int) bool { return report[i].Date > report[j].Date })
	return report, nil
}

// salesBetween sums OUT movement revenue and counts movements in
// [from, to). Revenue per movement is quantity times the recorded unit
// price, never the live catalog price.
func (s *StatsService) salesBetween(db *gorm.DB, from, to time.Time) (float64, int64, error) {
	var result struct {
		Revenue float64
		Sales   int64
	}
	err := db.Model(&model.StockMovement{}).
		Select("COALESCE(SUM(quantity * unit_price), 0) AS revenue, COUNT(*) AS sales").
		Where("direction = ? AND created_at >= ? AND created_at < ?", model.DirectionOut, from, to).
		Scan(&result).Error
	if err != nil {
		return 0, 0, fmt.Errorf("sum sales: %w", err)
	}
	return result.Revenue, result.Sales, nil
}

// topSellers ranks products by total units sold, descending, ties broken by
// product id for determinism. Soft-deleted products still appear: their
// ledger history remains aggregatable.
func (s *StatsService) topSellers(db *gorm.DB) ([]TopSeller, error) {
	type sellerRow struct {
		ProductID uint
		TotalSold int64
	}
	var rows []sellerRow
	err := db.Model(&model.StockMovement{}).
		Select("product_id, SUM(quantity) AS total_sold").
		Where("direction = ?", model.DirectionOut).
		Group("product_id").
		Order("total_sold DESC, product_id ASC").
		Limit(s.topSellersLimit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("rank top sellers: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]uint, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ProductID)
	}
	var products []model.Product
	if err := db.Unscoped().Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, fmt.Errorf("resolve product names: %w", err)
	}
	names := make(map[uint]string, len(products))
	for _, p := range products {
		names[p.ID] = p.Name
	}

	sellers := make([]TopSeller, 0, len(rows))
	for _, r := range rows {
		sellers = append(sellers, TopSeller{
			ProductID: r.ProductID,
			Name:      names[r.ProductID],
			TotalSold: r.TotalSold,
		})
	}
	return sellers, nil
}

func startOfDay(t time.Time) time.Time {
	year, month, day := t.Local().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Local().Location())
}
