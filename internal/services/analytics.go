package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"wxshop-dashboard/internal/models"
	"wxshop-dashboard/internal/observability"
)

const (
	batchSize  = 10000
	maxWorkers = 10
	csvColumns = 8
)

// CSVHeader is the column layout accepted by LoadFromCSV.
var CSVHeader = []string{"id", "order_number", "customer_name", "product_name", "amount", "status", "date", "province"}

type PrecomputedData struct {
	Stats        models.Stats
	Summary      models.Summary
	LastModified time.Time
}

// Analytics holds the session's order collection, newest first, and the
// statistics derived from it.
type Analytics struct {
	mu          sync.RWMutex
	orders      []models.Order
	precomputed *PrecomputedData
	lastSync    time.Time
	logger      *slog.Logger

	rowsSkipped atomic.Int64

	subMu       sync.Mutex
	subscribers map[int]chan struct{}
	nextSubID   int
}

func NewAnalytics() *Analytics {
	a := &Analytics{
		logger:      slog.Default(),
		subscribers: make(map[int]chan struct{}),
	}
	a.precomputed = a.computeAnalytics(nil)
	return a
}

func (a *Analytics) SetLogger(logger *slog.Logger) {
	a.logger = logger
}

// SetData replaces the whole collection.
func (a *Analytics) SetData(orders []models.Order) {
	a.replace(orders, false)
}

func (a *Analytics) replace(orders []models.Order, loaded bool) {
	data := make([]models.Order, len(orders))
	copy(data, orders)
	SortNewestFirst(data)

	a.mu.Lock()
	a.orders = data
	if loaded {
		a.lastSync = time.Now()
	}
	a.precomputed = a.computeAnalytics(data)
	a.mu.Unlock()

	a.notify()
}

// Prepend merges a freshly synced batch in front of the existing orders.
func (a *Analytics) Prepend(batch []models.Order) {
	incoming := make([]models.Order, len(batch))
	copy(incoming, batch)
	SortNewestFirst(incoming)

	a.mu.Lock()
	merged := make([]models.Order, 0, len(incoming)+len(a.orders))
	merged = append(merged, incoming...)
	merged = append(merged, a.orders...)
	a.orders = merged
	a.lastSync = time.Now()
	a.precomputed = a.computeAnalytics(merged)
	a.mu.Unlock()

	observability.OrdersIngested.WithLabelValues("sync").Add(float64(len(batch)))
	a.logger.Info("orders merged", "new", len(batch), "total", len(merged))
	a.notify()
}

// Seed fills the collection with synthesized orders.
func (a *Analytics) Seed(g *Generator, count int) {
	a.replace(g.Orders(count), true)
	observability.OrdersIngested.WithLabelValues("seed").Add(float64(count))
}

func (a *Analytics) LoadFromCSV(ctx context.Context, filename string) error {
	start := time.Now()
	a.logger.Info("processing CSV file", "filename", filename)

	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	orders, err := a.streamProcessCSV(ctx, file, nil)
	if err != nil {
		return fmt.Errorf("process csv: %w", err)
	}

	a.replace(orders, true)
	observability.OrdersIngested.WithLabelValues("csv").Add(float64(len(orders)))

	duration := time.Since(start)
	a.logger.Info("csv processing complete",
		"records", len(orders),
		"skipped", a.rowsSkipped.Load(),
		"duration", duration,
	)
	return nil
}

// ReadOrdersCSV parses an orders file without touching any store. progress,
// when set, is called with the number of rows handled per batch.
func ReadOrdersCSV(ctx context.Context, r io.Reader, progress func(int)) ([]models.Order, int64, error) {
	a := NewAnalytics()
	orders, err := a.streamProcessCSV(ctx, r, progress)
	return orders, a.rowsSkipped.Load(), err
}

func (a *Analytics) streamProcessCSV(ctx context.Context, r io.Reader, progress func(int)) ([]models.Order, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = false

	// Skip header
	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty file")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	var orders []models.Order
	batch := make([][]string, 0, batchSize)

	flush := func() error {
		parsed, err := a.processBatch(ctx, batch)
		if err != nil {
			return err
		}
		orders = append(orders, parsed...)
		if progress != nil {
			progress(len(batch))
		}
		batch = batch[:0]
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			a.rowsSkipped.Add(1)
			continue
		}

		batch = append(batch, record)
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}

	if len(batch) > 0 {
		if err := flush(); err != nil {
			return nil, err
		}
	}

	if len(orders) == 0 {
		return nil, fmt.Errorf("no valid records found")
	}
	return orders, nil
}

func (a *Analytics) processBatch(ctx context.Context, batch [][]string) ([]models.Order, error) {
	var wg errgroup.Group
	wg.SetLimit(maxWorkers)

	parsed := make([]models.Order, len(batch))
	valid := make([]bool, len(batch))

	for i, record := range batch {
		wg.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			order, err := parseOrderRecord(record)
			if err != nil {
				a.rowsSkipped.Add(1)
				return nil
			}
			parsed[i] = order
			valid[i] = true
			return nil
		})
	}

	if err := wg.Wait(); err != nil {
		return nil, err
	}

	// Keep file order for the valid rows
	result := make([]models.Order, 0, len(batch))
	for i, ok := range valid {
		if ok {
			result = append(result, parsed[i])
		}
	}
	return result, nil
}

func parseOrderRecord(record []string) (models.Order, error) {
	if len(record) < csvColumns {
		return models.Order{}, fmt.Errorf("insufficient columns")
	}

	amount, err := models.ParseAmount(record[4])
	if err != nil {
		return models.Order{}, err
	}

	status, err := models.ParseOrderStatus(record[5])
	if err != nil {
		return models.Order{}, err
	}

	date, err := models.ParseOrderDate(record[6])
	if err != nil {
		return models.Order{}, err
	}

	order := models.Order{
		ID:           strings.TrimSpace(record[0]),
		OrderNumber:  strings.TrimSpace(record[1]),
		CustomerName: strings.TrimSpace(record[2]),
		ProductName:  strings.TrimSpace(record[3]),
		Amount:       amount,
		Status:       status,
		Date:         date,
		Region:       strings.TrimSpace(record[7]),
	}
	if err := order.Validate(); err != nil {
		return models.Order{}, err
	}
	return order, nil
}

func (a *Analytics) computeAnalytics(orders []models.Order) *PrecomputedData {
	return &PrecomputedData{
		Stats:        Aggregate(orders),
		Summary:      Summarize(orders, a.lastSync),
		LastModified: time.Now(),
	}
}

// Subscribe returns a channel that receives a value after every change to the
// collection. Notifications coalesce; call the returned func to unsubscribe.
func (a *Analytics) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	a.subMu.Lock()
	id := a.nextSubID
	a.nextSubID++
	a.subscribers[id] = ch
	a.subMu.Unlock()

	return ch, func() {
		a.subMu.Lock()
		delete(a.subscribers, id)
		a.subMu.Unlock()
	}
}

func (a *Analytics) notify() {
	a.subMu.Lock()
	defer a.subMu.Unlock()
	for _, ch := range a.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Orders returns up to limit of the newest orders; limit <= 0 returns all.
func (a *Analytics) Orders(limit int) []models.Order {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if limit <= 0 || limit > len(a.orders) {
		limit = len(a.orders)
	}
	result := make([]models.Order, limit)
	copy(result, a.orders[:limit])
	return result
}

func (a *Analytics) Stats() models.Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.precomputed.Stats
}

func (a *Analytics) DailyTrend() []models.DailyStat {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.precomputed.Stats.DailyTrend
}

func (a *Analytics) TopProducts() []models.ProductStat {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.precomputed.Stats.TopProducts
}

func (a *Analytics) RegionDistribution() []models.RegionStat {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.precomputed.Stats.RegionDist
}

func (a *Analytics) Summary() models.Summary {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.precomputed.Summary
}

// Utility method for monitoring
func (a *Analytics) Info() map[string]any {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return map[string]any{
		"record_count":   len(a.orders),
		"rows_skipped":   a.rowsSkipped.Load(),
		"last_processed": a.precomputed.LastModified,
		"days":           len(a.precomputed.Stats.DailyTrend),
		"products":       len(a.precomputed.Stats.TopProducts),
		"regions":        len(a.precomputed.Stats.RegionDist),
	}
}
