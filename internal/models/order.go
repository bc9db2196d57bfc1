package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPendingPayment OrderStatus = "Pending Payment"
	StatusPaid           OrderStatus = "Paid"
	StatusShipped        OrderStatus = "Shipped"
	StatusCompleted      OrderStatus = "Completed"
	StatusRefunded       OrderStatus = "Refunded"
)

var AllStatuses = []OrderStatus{
	StatusPendingPayment,
	StatusPaid,
	StatusShipped,
	StatusCompleted,
	StatusRefunded,
}

var ErrInvalidOrder = errors.New("invalid order")

// Amount bounds. The exponent is checked before any arithmetic, since
// comparing or summing a decimal like 1e20000000 rescales it to millions of
// digits.
const (
	minAmountExponent = -8
	maxAmountExponent = 10
)

var maxAmount = decimal.New(1, 10)

func ParseOrderStatus(s string) (OrderStatus, error) {
	for _, status := range AllStatuses {
		if strings.EqualFold(string(status), strings.TrimSpace(s)) {
			return status, nil
		}
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrInvalidOrder, s)
}

func (s OrderStatus) Valid() bool {
	_, err := ParseOrderStatus(string(s))
	return err == nil
}

// Order is one shop transaction. Orders are never mutated once ingested.
type Order struct {
	ID           string          `json:"id"`
	OrderNumber  string          `json:"orderNumber"`
	CustomerName string          `json:"customerName"`
	ProductName  string          `json:"productName"`
	Amount       decimal.Decimal `json:"amount"`
	Status       OrderStatus     `json:"status"`
	Date         time.Time       `json:"date"`
	Region       string          `json:"province"`
}

func (o Order) Validate() error {
	if exp := o.Amount.Exponent(); exp < minAmountExponent || exp > maxAmountExponent {
		return fmt.Errorf("%w: amount exponent %d out of range", ErrInvalidOrder, exp)
	}
	if o.Amount.IsNegative() {
		return fmt.Errorf("%w: negative amount %s", ErrInvalidOrder, o.Amount)
	}
	if o.Amount.GreaterThan(maxAmount) {
		return fmt.Errorf("%w: amount %s exceeds %s", ErrInvalidOrder, o.Amount, maxAmount)
	}
	if o.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidOrder)
	}
	if !o.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidOrder, o.Status)
	}
	if o.ProductName == "" {
		return fmt.Errorf("%w: missing product name", ErrInvalidOrder)
	}
	if o.Region == "" {
		return fmt.Errorf("%w: missing region", ErrInvalidOrder)
	}
	return nil
}

// DayKey is the calendar date of the order in the offset it was recorded with.
func (o Order) DayKey() string {
	return o.Date.Format(time.DateOnly)
}

type orderWire struct {
	ID           string          `json:"id"`
	OrderNumber  string          `json:"orderNumber"`
	CustomerName string          `json:"customerName"`
	ProductName  string          `json:"productName"`
	Amount       decimal.Decimal `json:"amount"`
	Status       string          `json:"status"`
	Date         string          `json:"date"`
	Region       string          `json:"province"`
}

// UnmarshalJSON accepts amount as a JSON string or number.
func (o *Order) UnmarshalJSON(data []byte) error {
	var w orderWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOrder, err)
	}

	status, err := ParseOrderStatus(w.Status)
	if err != nil {
		return err
	}

	date, err := ParseOrderDate(w.Date)
	if err != nil {
		return err
	}

	*o = Order{
		ID:           w.ID,
		OrderNumber:  w.OrderNumber,
		CustomerName: w.CustomerName,
		ProductName:  w.ProductName,
		Amount:       w.Amount,
		Status:       status,
		Date:         date,
		Region:       w.Region,
	}
	return nil
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	time.DateTime,
	time.DateOnly,
}

func ParseOrderDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unparseable date %q", ErrInvalidOrder, s)
}

// ParseAmount parses a monetary amount, tolerating a leading currency sign and
// thousands separators.
func ParseAmount(s string) (decimal.Decimal, error) {
	cleaned := strings.NewReplacer("¥", "", "$", "", ",", "").Replace(strings.TrimSpace(s))
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: unparseable amount %q", ErrInvalidOrder, s)
	}
	return d, nil
}
