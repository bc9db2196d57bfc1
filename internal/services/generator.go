package services

import (
	"fmt"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/jaswdr/faker"
	"github.com/lucsky/cuid"
	"github.com/shopspring/decimal"

	"wxshop-dashboard/internal/models"
)

const generatorWindow = 30 * 24 * time.Hour

var (
	catalogue = []string{
		"Summer Silk Dress",
		"Vintage T-Shirt",
		"Wireless Earbuds",
		"Bamboo Cutting Board",
		"Organic Green Tea",
		"Ceramic Vase",
	}
	provinces = []string{"Guangdong", "Zhejiang", "Beijing", "Shanghai", "Jiangsu", "Sichuan", "Fujian"}
)

// Generator synthesizes plausible shop orders for the initial load, the demo
// sync path and the analyze command.
type Generator struct {
	mu   sync.Mutex
	fake faker.Faker
	now  func() time.Time
}

func NewGenerator() *Generator {
	return &Generator{fake: faker.New(), now: time.Now}
}

func NewSeededGenerator(seed int64, now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{fake: faker.NewWithSeed(rand.NewSource(seed)), now: now}
}

// Orders returns count orders dated within the last 30 days, newest first.
// A negative count yields no orders.
func (g *Generator) Orders(count int) []models.Order {
	count = max(count, 0)

	g.mu.Lock()
	defer g.mu.Unlock()

	end := g.now()
	start := end.Add(-generatorWindow)
	orders := make([]models.Order, 0, count)

	for i := 0; i < count; i++ {
		amount := decimal.NewFromFloat(g.fake.Float64(2, 50, 249)).Round(2)
		orders = append(orders, models.Order{
			ID:           "ORD-" + cuid.New(),
			OrderNumber:  fmt.Sprintf("WX%d%d", end.UnixMilli(), i),
			CustomerName: g.fake.Person().Name(),
			ProductName:  g.fake.RandomStringElement(catalogue),
			Amount:       amount,
			Status:       models.AllStatuses[g.fake.IntBetween(0, len(models.AllStatuses)-1)],
			Date:         g.fake.Time().TimeBetween(start, end).UTC(),
			Region:       g.fake.RandomStringElement(provinces),
		})
	}

	SortNewestFirst(orders)
	return orders
}

func SortNewestFirst(orders []models.Order) {
	slices.SortStableFunc(orders, func(a, b models.Order) int {
		return b.Date.Compare(a.Date)
	})
}
