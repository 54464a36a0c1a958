package memory

import (
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Stats summarizes a set of memories.
type Stats struct {
	Total      int          `json:"total"`
	Places     int          `json:"places"`
	Starred    int          `json:"starred"`
	WithImages int          `json:"withImages"`
	ByYear     []YearCount  `json:"byYear"`
	TopMonths  []MonthCount `json:"topMonths"`
}

type YearCount struct {
	Year  int `json:"year"`
	Count int `json:"count"`
}

type MonthCount struct {
	Month string `json:"month"` // YYYY-MM
	Count int    `json:"count"`
}

const topMonthsLimit = 5

// ComputeStats counts memories, distinct places on a 0.1 degree grid, starred,
// with-photo, per-year and the five busiest months.
func ComputeStats(memories []Memory) Stats {
	s := Stats{Total: len(memories)}

	places := make(map[string]bool)
	byYear := make(map[int]int)
	byMonth := make(map[string]int)
	var monthOrder []string

	for _, m := range memories {
		places[placeKey(m.Lat, m.Lng)] = true
		if m.Starred {
			s.Starred++
		}
		if m.HasImages() {
			s.WithImages++
		}
		if len(m.Date) >= 4 {
			if y, err := strconv.Atoi(m.Date[:4]); err == nil {
				byYear[y]++
			}
		}
		if len(m.Date) >= 7 {
			month := m.Date[:7]
			if byMonth[month] == 0 {
				monthOrder = append(monthOrder, month)
			}
			byMonth[month]++
		}
	}
	s.Places = len(places)

	s.ByYear = make([]YearCount, 0, len(byYear))
	for y, c := range byYear {
		s.ByYear = append(s.ByYear, YearCount{Year: y, Count: c})
	}
	sort.Slice(s.ByYear, func(i, j int) bool { return s.ByYear[i].Year < s.ByYear[j].Year })

	s.TopMonths = make([]MonthCount, 0, len(monthOrder))
	for _, month := range monthOrder {
		s.TopMonths = append(s.TopMonths, MonthCount{Month: month, Count: byMonth[month]})
	}
	// Stable: ties keep first-seen order.
	sort.SliceStable(s.TopMonths, func(i, j int) bool { return s.TopMonths[i].Count > s.TopMonths[j].Count })
	if len(s.TopMonths) > topMonthsLimit {
		s.TopMonths = s.TopMonths[:topMonthsLimit]
	}

	return s
}

func placeKey(lat, lng float64) string {
	return fmt.Sprintf("%v,%v", roundTenth(lat), roundTenth(lng))
}

func roundTenth(f float64) float64 {
	// half rounds up
	return math.Floor(f*10+0.5) / 10
}

// Day is one calendar date with its memories.
type Day struct {
	Date     string   `json:"date"`
	Memories []Memory `json:"memories"`
}

// Calendar groups memories by date, dates ascending, memories in display order.
func Calendar(memories []Memory) []Day {
	byDate := make(map[string][]Memory)
	for _, m := range memories {
		byDate[m.Date] = append(byDate[m.Date], m)
	}
	days := make([]Day, 0, len(byDate))
	for date, ms := range byDate {
		days = append(days, Day{Date: date, Memories: SortByOrder(ms)})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date < days[j].Date })
	return days
}

// Month returns the days of one YYYY-MM month that have memories.
func Month(memories []Memory, month string) []Day {
	var out []Day
	for _, d := range Calendar(memories) {
		if len(d.Date) >= 7 && d.Date[:7] == month {
			out = append(out, d)
		}
	}
	return out
}
