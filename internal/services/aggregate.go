package services

import (
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"wxshop-dashboard/internal/models"
)

const topProductsLimit = 5

type dayBucket struct {
	revenue decimal.Decimal
	orders  int
}

// counter tallies keys while remembering the order they were first seen in,
// so that sorting by count can fall back to encounter order.
type counter struct {
	order  []string
	counts map[string]int
}

func newCounter() *counter {
	return &counter{counts: make(map[string]int)}
}

func (c *counter) add(key string) {
	if _, ok := c.counts[key]; !ok {
		c.order = append(c.order, key)
	}
	c.counts[key]++
}

func (c *counter) sorted() []string {
	keys := slices.Clone(c.order)
	slices.SortStableFunc(keys, func(a, b string) int {
		return c.counts[b] - c.counts[a]
	})
	return keys
}

// Aggregate derives the daily trend, top products and region distribution
// from a set of validated orders. It never returns nil slices.
func Aggregate(orders []models.Order) models.Stats {
	days := make(map[string]*dayBucket)
	products := newCounter()
	regions := newCounter()

	for _, o := range orders {
		key := o.DayKey()
		bucket, ok := days[key]
		if !ok {
			bucket = &dayBucket{}
			days[key] = bucket
		}
		bucket.revenue = bucket.revenue.Add(o.Amount)
		bucket.orders++

		products.add(o.ProductName)
		regions.add(o.Region)
	}

	return models.Stats{
		DailyTrend:  dailyTrend(days),
		TopProducts: topProducts(products, topProductsLimit),
		RegionDist:  regionDistribution(regions),
	}
}

func dailyTrend(days map[string]*dayBucket) []models.DailyStat {
	keys := make([]string, 0, len(days))
	for k := range days {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	result := make([]models.DailyStat, 0, len(keys))
	for _, k := range keys {
		bucket := days[k]
		result = append(result, models.DailyStat{
			Day:     dayLabel(k),
			Revenue: bucket.revenue.Round(2).InexactFloat64(),
			Orders:  bucket.orders,
		})
	}
	return result
}

// dayLabel drops the year: "2024-01-02" becomes "01-02".
func dayLabel(key string) string {
	if _, rest, ok := strings.Cut(key, "-"); ok {
		return rest
	}
	return key
}

func topProducts(c *counter, limit int) []models.ProductStat {
	keys := c.sorted()
	if len(keys) > limit {
		keys = keys[:limit]
	}
	result := make([]models.ProductStat, 0, len(keys))
	for _, k := range keys {
		result = append(result, models.ProductStat{Name: k, Sales: c.counts[k]})
	}
	return result
}

func regionDistribution(c *counter) []models.RegionStat {
	keys := c.sorted()
	result := make([]models.RegionStat, 0, len(keys))
	for _, k := range keys {
		result = append(result, models.RegionStat{Name: k, Value: c.counts[k]})
	}
	return result
}

// Summarize computes the headline figures shown above the charts.
func Summarize(orders []models.Order, lastSync time.Time) models.Summary {
	total := decimal.Zero
	pending := 0
	for _, o := range orders {
		total = total.Add(o.Amount)
		if o.Status == models.StatusPendingPayment {
			pending++
		}
	}

	s := models.Summary{
		TotalRevenue:  total.Round(2).InexactFloat64(),
		OrderCount:    len(orders),
		PendingOrders: pending,
	}
	if len(orders) > 0 {
		s.AvgOrderValue = total.Div(decimal.NewFromInt(int64(len(orders)))).Round(2).InexactFloat64()
	}
	if !lastSync.IsZero() {
		s.LastSync = &lastSync
	}
	return s
}
