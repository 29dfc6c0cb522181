// Package export renders orders as a downloadable CSV report.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/yourbite/pos-api/internal/database"
)

const (
	ContentType  = "text/csv; charset=utf-8"
	createdAtFmt = "2006-01-02 15:04:05"
	noDate       = "N/A"
)

var header = []string{"Order Number", "Items", "Quantity", "Total", "Status", "Created At"}

// Filename is the download name for a report generated at now.
func Filename(now time.Time) string {
	return fmt.Sprintf("your-bite-orders-%s.csv", now.Format(time.DateOnly))
}

// WriteOrdersCSV writes one row per order. Creation times are shown in loc.
func WriteOrdersCSV(w io.Writer, orders []database.Order, loc *time.Location) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, o := range orders {
		if err := cw.Write(row(o, loc)); err != nil {
			return fmt.Errorf("write order %s: %w", o.OrderNumber, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func row(o database.Order, loc *time.Location) []string {
	names := make([]string, len(o.Items))
	for i, it := range o.Items {
		names[i] = fmt.Sprintf("%s x%d", it.Name, it.Quantity)
	}
	created := noDate
	if !o.CreatedAt.IsZero() {
		created = o.CreatedAt.In(loc).Format(createdAtFmt)
	}
	return []string{
		o.OrderNumber,
		strings.Join(names, "; "),
		strconv.FormatInt(o.ItemCount(), 10),
		o.Total.StringFixed(2),
		string(o.Status),
		created,
	}
}
