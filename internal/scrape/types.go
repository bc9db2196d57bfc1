package scrape

import (
	"fmt"
	"time"
)

// Status is the job phase reported by the scrape backend.
type Status string

const (
	StatusInitializing Status = "INITIALIZING"
	StatusQRReady      Status = "QR_READY"
	StatusScanning     Status = "SCANNING"
	StatusCompleted    Status = "COMPLETED"
	StatusError        Status = "ERROR"
)

type StatusResponse struct {
	Status  Status `json:"status"`
	QRCode  string `json:"qr_code,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

type StartRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// DateRange is the order-date filter handed to the scraper. Start after End is
// passed through as is.
type DateRange struct {
	Start time.Time
	End   time.Time
}

func ParseDateRange(start, end string) (DateRange, error) {
	s, err := time.Parse(time.DateOnly, start)
	if err != nil {
		return DateRange{}, fmt.Errorf("invalid start date %q: %w", start, err)
	}
	e, err := time.Parse(time.DateOnly, end)
	if err != nil {
		return DateRange{}, fmt.Errorf("invalid end date %q: %w", end, err)
	}
	return DateRange{Start: s, End: e}, nil
}

// DefaultDateRange covers the 30 days up to now.
func DefaultDateRange(now time.Time) DateRange {
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return DateRange{Start: end.AddDate(0, 0, -30), End: end}
}

func (r DateRange) Request() StartRequest {
	return StartRequest{
		StartDate: r.Start.Format(time.DateOnly),
		EndDate:   r.End.Format(time.DateOnly),
	}
}

func (r DateRange) String() string {
	return r.Start.Format(time.DateOnly) + " to " + r.End.Format(time.DateOnly)
}
