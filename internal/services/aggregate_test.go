package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"wxshop-dashboard/internal/models"
)

func TestAggregate_DailyTrend(t *testing.T) {
	orders := []models.Order{
		order("1", "P", "R", "100", "2024-01-02T23:30:00+08:00"),
		order("2", "P", "R", "50", "2024-01-01T10:00:00Z"),
		order("3", "P", "R", "100", "2024-01-01T11:00:00Z"),
		order("4", "P", "R", "75", "2024-01-02T09:00:00Z"),
	}

	got := Aggregate(orders).DailyTrend
	want := []models.DailyStat{
		{Day: "01-01", Revenue: 150, Orders: 2},
		{Day: "01-02", Revenue: 175, Orders: 2},
	}

	if len(got) != len(want) {
		t.Fatalf("days = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("day[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestAggregate_RevenueRoundedAfterSum(t *testing.T) {
	orders := []models.Order{
		order("1", "P", "R", "0.105", "2024-03-01"),
		order("2", "P", "R", "0.105", "2024-03-01"),
		order("3", "P", "R", "0.1", "2024-03-01"),
	}

	got := Aggregate(orders).DailyTrend[0].Revenue
	if got != 0.31 {
		t.Errorf("revenue = %v, want 0.31", got)
	}
}

func TestAggregate_SumsMatchInput(t *testing.T) {
	g := NewSeededGenerator(99, func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) })
	orders := g.Orders(200)

	stats := Aggregate(orders)

	count := 0
	revenue := decimal.Zero
	for _, d := range stats.DailyTrend {
		count += d.Orders
		revenue = revenue.Add(decimal.NewFromFloat(d.Revenue))
	}
	if count != len(orders) {
		t.Errorf("trend order total = %d, want %d", count, len(orders))
	}

	total := decimal.Zero
	for _, o := range orders {
		total = total.Add(o.Amount)
	}
	if !revenue.Round(2).Equal(total.Round(2)) {
		t.Errorf("trend revenue = %s, want %s", revenue, total)
	}

	regions := 0
	for _, r := range stats.RegionDist {
		regions += r.Value
	}
	if regions != len(orders) {
		t.Errorf("region total = %d, want %d", regions, len(orders))
	}

	for i := 1; i < len(stats.DailyTrend); i++ {
		if stats.DailyTrend[i-1].Day >= stats.DailyTrend[i].Day {
			t.Errorf("trend not ascending at %d: %s then %s", i, stats.DailyTrend[i-1].Day, stats.DailyTrend[i].Day)
		}
	}
}

func TestAggregate_TopProducts(t *testing.T) {
	var orders []models.Order
	add := func(product string, n int) {
		for i := 0; i < n; i++ {
			orders = append(orders, order(fmt.Sprintf("%s-%d", product, i), product, "R", "1", "2024-01-01"))
		}
	}
	add("A", 1)
	add("B", 3)
	add("C", 1)
	add("D", 2)
	add("E", 1)
	add("F", 1)
	add("G", 4)

	got := Aggregate(orders).TopProducts
	want := []models.ProductStat{
		{Name: "G", Sales: 4},
		{Name: "B", Sales: 3},
		{Name: "D", Sales: 2},
		{Name: "A", Sales: 1},
		{Name: "C", Sales: 1},
	}

	if len(got) != len(want) {
		t.Fatalf("products = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("product[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestAggregate_RegionTiesKeepEncounterOrder(t *testing.T) {
	orders := []models.Order{
		order("1", "P", "Sichuan", "1", "2024-01-01"),
		order("2", "P", "Fujian", "1", "2024-01-01"),
		order("3", "P", "Beijing", "1", "2024-01-01"),
		order("4", "P", "Beijing", "1", "2024-01-01"),
	}

	got := Aggregate(orders).RegionDist
	names := []string{"Beijing", "Sichuan", "Fujian"}
	if len(got) != len(names) {
		t.Fatalf("regions = %d, want %d", len(got), len(names))
	}
	for i, name := range names {
		if got[i].Name != name {
			t.Errorf("region[%d] = %s, want %s", i, got[i].Name, name)
		}
	}
}

func TestAggregate_Empty(t *testing.T) {
	stats := Aggregate(nil)

	if stats.DailyTrend == nil || stats.TopProducts == nil || stats.RegionDist == nil {
		t.Fatal("series should be empty slices, not nil")
	}
	if len(stats.DailyTrend)+len(stats.TopProducts)+len(stats.RegionDist) != 0 {
		t.Error("series should be empty")
	}
}

func TestAggregate_DoesNotMutateInput(t *testing.T) {
	orders := []models.Order{
		order("1", "P", "R", "1", "2024-01-02"),
		order("2", "Q", "S", "2", "2024-01-01"),
	}
	Aggregate(orders)

	if orders[0].ID != "1" || orders[1].ID != "2" {
		t.Error("Aggregate should not reorder its input")
	}
}

func TestSummarize(t *testing.T) {
	pending := order("2", "P", "R", "20.00", "2024-01-01")
	pending.Status = models.StatusPendingPayment
	orders := []models.Order{
		order("1", "P", "R", "10.00", "2024-01-01"),
		pending,
		order("3", "P", "R", "0.01", "2024-01-01"),
	}
	sync := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)

	got := Summarize(orders, sync)
	if got.TotalRevenue != 30.01 {
		t.Errorf("total = %v, want 30.01", got.TotalRevenue)
	}
	if got.AvgOrderValue != 10 {
		t.Errorf("avg = %v, want 10", got.AvgOrderValue)
	}
	if got.PendingOrders != 1 || got.OrderCount != 3 {
		t.Errorf("pending=%d count=%d, want 1 3", got.PendingOrders, got.OrderCount)
	}
	if got.LastSync == nil || !got.LastSync.Equal(sync) {
		t.Errorf("last sync = %v, want %v", got.LastSync, sync)
	}

	empty := Summarize(nil, time.Time{})
	if empty.AvgOrderValue != 0 || empty.LastSync != nil {
		t.Errorf("empty summary = %+v, want zero average and no sync", empty)
	}
}
