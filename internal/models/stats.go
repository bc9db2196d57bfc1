package models

import "time"

type DailyStat struct {
	Day     string  `json:"date"`
	Revenue float64 `json:"revenue"`
	Orders  int     `json:"orders"`
}

type ProductStat struct {
	Name  string `json:"name"`
	Sales int    `json:"sales"`
}

type RegionStat struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

type Stats struct {
	DailyTrend  []DailyStat   `json:"salesTrend"`
	TopProducts []ProductStat `json:"topProducts"`
	RegionDist  []RegionStat  `json:"geoStats"`
}

type Summary struct {
	TotalRevenue  float64    `json:"total_revenue"`
	OrderCount    int        `json:"order_count"`
	PendingOrders int        `json:"pending_orders"`
	AvgOrderValue float64    `json:"avg_order_value"`
	LastSync      *time.Time `json:"last_sync,omitempty"`
}
