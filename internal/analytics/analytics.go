// Package analytics folds an order list into dashboard figures. Every function
// is pure: callers pass the orders and the current time.
package analytics

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yourbite/pos-api/internal/database"
	"github.com/yourbite/pos-api/internal/enum"
)

var ErrInvalidWindow = errors.New("invalid window")

// dailyDays is how many active days Daily keeps.
const dailyDays = 14

var weekdayNames = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// Window selects how far back a report looks.
type Window string

const (
	WindowAll   Window = enum.WindowAll
	WindowToday Window = enum.WindowToday
	WindowWeek  Window = enum.WindowWeek
	WindowMonth Window = enum.WindowMonth
)

// ParseWindow parses a window name. Empty means all.
func ParseWindow(s string) (Window, error) {
	switch w := Window(s); w {
	case "":
		return WindowAll, nil
	case WindowAll, WindowToday, WindowWeek, WindowMonth:
		return w, nil
	}
	return "", fmt.Errorf("%q: %w", s, ErrInvalidWindow)
}

// Start returns the earliest creation time w includes, measured from local
// midnight of now's day. The zero time means no lower bound.
func (w Window) Start(now time.Time) time.Time {
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	switch w {
	case WindowToday:
		return today
	case WindowWeek:
		return today.AddDate(0, 0, -7)
	case WindowMonth:
		return today.AddDate(0, 0, -30)
	}
	return time.Time{}
}

// FilterByWindow keeps orders created inside w. Orders without a creation
// time are always dropped.
func FilterByWindow(orders []database.Order, w Window, now time.Time) []database.Order {
	start := w.Start(now)
	out := make([]database.Order, 0, len(orders))
	for _, o := range orders {
		if o.CreatedAt.IsZero() {
			continue
		}
		if !start.IsZero() && o.CreatedAt.Before(start) {
			continue
		}
		out = append(out, o)
	}
	return out
}

// --- Summary ---

type Summary struct {
	TotalOrders     int
	TotalSales      decimal.Decimal
	TotalItems      int64
	AvgOrderValue   decimal.Decimal
	RevenueByStatus map[string]decimal.Decimal
	OrdersByStatus  map[string]int
}

func Summarize(orders []database.Order) Summary {
	s := Summary{
		TotalSales:      decimal.Zero,
		AvgOrderValue:   decimal.Zero,
		RevenueByStatus: make(map[string]decimal.Decimal, len(enum.OrderStatuses)),
		OrdersByStatus:  make(map[string]int, len(enum.OrderStatuses)),
	}
	for _, st := range enum.OrderStatuses {
		s.RevenueByStatus[st] = decimal.Zero
		s.OrdersByStatus[st] = 0
	}
	for _, o := range orders {
		s.TotalOrders++
		s.TotalSales = s.TotalSales.Add(o.Total)
		s.TotalItems += o.ItemCount()
		st := string(o.Status)
		s.RevenueByStatus[st] = s.RevenueByStatus[st].Add(o.Total)
		s.OrdersByStatus[st]++
	}
	if s.TotalOrders > 0 {
		s.AvgOrderValue = s.TotalSales.Div(decimal.NewFromInt(int64(s.TotalOrders)))
	}
	return s
}

// --- Time buckets ---

type DayStat struct {
	Date    time.Time // local midnight
	Label   string    // "Jan 2"
	Orders  int
	Revenue decimal.Decimal
	Items   int64
}

// Daily buckets orders by calendar day in loc and returns the most recent
// days with activity, oldest first.
func Daily(orders []database.Order, loc *time.Location) []DayStat {
	byDay := make(map[string]*DayStat)
	for _, o := range orders {
		if o.CreatedAt.IsZero() {
			continue
		}
		t := o.CreatedAt.In(loc)
		y, m, d := t.Date()
		day := time.Date(y, m, d, 0, 0, 0, 0, loc)
		key := day.Format(time.DateOnly)
		ds, ok := byDay[key]
		if !ok {
			ds = &DayStat{Date: day, Label: day.Format("Jan 2"), Revenue: decimal.Zero}
			byDay[key] = ds
		}
		ds.Orders++
		ds.Revenue = ds.Revenue.Add(o.Total)
		ds.Items += o.ItemCount()
	}

	out := make([]DayStat, 0, len(byDay))
	for _, ds := range byDay {
		out = append(out, *ds)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	if len(out) > dailyDays {
		out = out[len(out)-dailyDays:]
	}
	return out
}

type HourStat struct {
	Hour    int
	Label   string // "09:00"
	Orders  int
	Revenue decimal.Decimal
}

// Hourly buckets orders by hour of day in loc. Hours without orders are
// omitted.
func Hourly(orders []database.Order, loc *time.Location) []HourStat {
	var hours [24]HourStat
	for h := range hours {
		hours[h] = HourStat{Hour: h, Label: fmt.Sprintf("%02d:00", h), Revenue: decimal.Zero}
	}
	for _, o := range orders {
		if o.CreatedAt.IsZero() {
			continue
		}
		h := o.CreatedAt.In(loc).Hour()
		hours[h].Orders++
		hours[h].Revenue = hours[h].Revenue.Add(o.Total)
	}

	out := make([]HourStat, 0, 24)
	for _, hs := range hours {
		if hs.Orders > 0 {
			out = append(out, hs)
		}
	}
	return out
}

type WeekdayStat struct {
	Day     string // "Sun"
	Orders  int
	Revenue decimal.Decimal
	Items   int64
}

// Weekly buckets orders by weekday in loc. All seven days are returned,
// Sunday first.
func Weekly(orders []database.Order, loc *time.Location) []WeekdayStat {
	out := make([]WeekdayStat, 7)
	for i, name := range weekdayNames {
		out[i] = WeekdayStat{Day: name, Revenue: decimal.Zero}
	}
	for _, o := range orders {
		if o.CreatedAt.IsZero() {
			continue
		}
		wd := o.CreatedAt.In(loc).Weekday()
		out[wd].Orders++
		out[wd].Revenue = out[wd].Revenue.Add(o.Total)
		out[wd].Items += o.ItemCount()
	}
	return out
}

// --- Items ---

type ItemStat struct {
	Name     string
	Quantity int64
	Revenue  decimal.Decimal
	Orders   int
}

// TopItems aggregates order lines by dish name, highest revenue first. Ties
// keep first-seen order.
func TopItems(orders []database.Order) []ItemStat {
	index := make(map[string]int)
	var out []ItemStat
	for _, o := range orders {
		for _, it := range o.Items {
			i, ok := index[it.Name]
			if !ok {
				i = len(out)
				index[it.Name] = i
				out = append(out, ItemStat{Name: it.Name, Revenue: decimal.Zero})
			}
			out[i].Quantity += int64(it.Quantity)
			out[i].Revenue = out[i].Revenue.Add(it.Subtotal())
			out[i].Orders++
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Revenue.GreaterThan(out[j].Revenue)
	})
	return out
}
