// Package ingest turns uploaded spreadsheets into player pools.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/jensholdgaard/cricket-auction/internal/roster"
	"github.com/jensholdgaard/cricket-auction/internal/rules"
)

// Defaults applied to sheet rows.
const (
	DefaultBasePrice int64 = 2_000_000
	SeedBasePrice    int64 = 20_000_000
	SeedRating             = 85

	minRating  = 70
	ratingSpan = 20
)

// ErrNoHeader is returned for an input without a header row.
var ErrNoHeader = errors.New("missing header row")

// Picker chooses an index in [0, n).
type Picker interface {
	IntN(n int) int
}

// RowIssue reports a cell that was missing or unreadable and replaced by a
// default. Row is 1-based and counts data rows only.
type RowIssue struct {
	Row     int    `json:"row"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (i RowIssue) String() string {
	return fmt.Sprintf("row %d: %s: %s", i.Row, i.Field, i.Message)
}

// ParseSheet reads a free-form player sheet. Columns are matched by a
// case-insensitive substring of their header: name, category, country and
// price or amount. Rows are never rejected; missing cells fall back to
// defaults and are reported.
func ParseSheet(r io.Reader, picker Picker) ([]roster.Player, []RowIssue, error) {
	header, rows, err := readAll(r)
	if err != nil {
		return nil, nil, err
	}

	nameCol := column(header, "name")
	categoryCol := column(header, "category")
	countryCol := column(header, "country")
	priceCol := column(header, "price")
	if priceCol < 0 {
		priceCol = column(header, "amount")
	}

	var (
		players []roster.Player
		issues  []RowIssue
	)
	for i, row := range rows {
		n := i + 1
		report := func(field, msg string) {
			issues = append(issues, RowIssue{Row: n, Field: field, Message: msg})
		}

		name := cell(row, nameCol)
		if name == "" {
			name = fmt.Sprintf("Player %d", n)
			report("name", "missing, using "+strconv.Quote(name))
		}

		categoryRaw := cell(row, categoryCol)
		if categoryRaw == "" {
			report("category", "missing, using Batsman")
		}

		countryRaw := cell(row, countryCol)
		country := roster.India
		if countryRaw == "" {
			report("country", "missing, using India")
		} else {
			country = sheetCountry(countryRaw)
		}

		priceRaw := cell(row, priceCol)
		price, ok := sheetPrice(priceRaw)
		switch {
		case priceRaw == "":
			report("price", "missing, using default")
		case !ok:
			report("price", fmt.Sprintf("%q not understood, using default", priceRaw))
		}

		players = append(players, roster.Player{
			ID:         uuid.NewString(),
			Name:       name,
			Category:   sheetCategory(categoryRaw),
			Country:    country,
			BasePrice:  price,
			IsUncapped: price == DefaultBasePrice && country == roster.India,
			Rating:     minRating + picker.IntN(ratingSpan),
			Status:     roster.Available,
		})
	}
	return players, issues, nil
}

// sheetCategory maps free text to a category. Later matches win:
// keeper beats all-rounder beats bowler.
func sheetCategory(raw string) roster.Category {
	s := strings.ToLower(raw)
	switch {
	case strings.Contains(s, "keep"), strings.Contains(s, "wk"):
		return roster.WicketKeeper
	case strings.Contains(s, "all"):
		return roster.AllRounder
	case strings.Contains(s, "bowl"):
		return roster.Bowler
	}
	return roster.Batsman
}

func sheetCountry(raw string) roster.Country {
	if strings.Contains(strings.ToLower(raw), "india") {
		return roster.India
	}
	return roster.Overseas
}

// sheetPrice reads a price cell, ignoring commas and any currency sign. A
// number followed by Cr or L (Lakh, Lac) is scaled by that unit. A bare
// number above 100 is rupees; smaller bare numbers are ambiguous and get
// the default price.
func sheetPrice(raw string) (int64, bool) {
	s := strings.ToLower(strings.ReplaceAll(raw, ",", ""))
	start := strings.IndexFunc(s, isDigit)
	if start < 0 {
		return DefaultBasePrice, false
	}
	end := start
	for end < len(s) && (isDigit(rune(s[end])) || s[end] == '.') {
		end++
	}
	n, err := strconv.ParseFloat(s[start:end], 64)
	if err != nil || n <= 0 {
		return DefaultBasePrice, false
	}

	unit, _, _ := strings.Cut(strings.TrimSpace(s[end:]), " ")
	switch strings.TrimSuffix(unit, ".") {
	case "cr", "crs", "crore", "crores":
		return int64(math.Round(n * float64(rules.Crore))), true
	case "l", "lk", "lakh", "lakhs", "lac", "lacs":
		return int64(math.Round(n * float64(rules.Lakh))), true
	}
	if n > 100 {
		return int64(math.Round(n)), true
	}
	return DefaultBasePrice, false
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

// ParseSeedCSV reads the seed format: player, role, nationality,
// is_wicketkeeper, is_uncapped, auction_set, batting_score, bowling_score,
// allrounder_score. Every player gets the seed base price and rating.
func ParseSeedCSV(r io.Reader) ([]roster.Player, []RowIssue, error) {
	header, rows, err := readAll(r)
	if err != nil {
		return nil, nil, err
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	get := func(row []string, key string) string {
		i, ok := idx[key]
		if !ok {
			return ""
		}
		return cell(row, i)
	}

	var (
		players []roster.Player
		issues  []RowIssue
	)
	for i, row := range rows {
		n := i + 1
		name := get(row, "player")
		if name == "" {
			name = fmt.Sprintf("Player %d", n)
			issues = append(issues, RowIssue{Row: n, Field: "player", Message: "missing, using " + strconv.Quote(name)})
		}
		role := get(row, "role")
		if get(row, "is_wicketkeeper") == "Yes" {
			role = "Wicket Keeper"
		}

		stats := &roster.Stats{}
		for _, s := range []struct {
			key string
			dst *float64
		}{
			{"batting_score", &stats.BattingScore},
			{"bowling_score", &stats.BowlingScore},
			{"allrounder_score", &stats.AllRounderScore},
		} {
			raw := get(row, s.key)
			if raw == "" {
				continue
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				issues = append(issues, RowIssue{Row: n, Field: s.key, Message: fmt.Sprintf("%q is not a number, using 0", raw)})
				continue
			}
			*s.dst = v
		}

		country := roster.Overseas
		if get(row, "nationality") == "Indian" {
			country = roster.India
		}

		players = append(players, roster.Player{
			ID:           uuid.NewString(),
			Name:         name,
			Category:     seedCategory(role),
			Country:      country,
			BasePrice:    SeedBasePrice,
			IsUncapped:   get(row, "is_uncapped") == "Yes",
			Rating:       SeedRating,
			Status:       roster.Available,
			OriginalRole: role,
			AuctionSet:   get(row, "auction_set"),
			Stats:        stats,
		})
	}
	return players, issues, nil
}

// LoadSeedFile reads a seed-format CSV from disk. An empty path yields an
// empty pool.
func LoadSeedFile(path string) ([]roster.Player, []RowIssue, error) {
	if path == "" {
		return nil, nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening seed file: %w", err)
	}
	defer f.Close()
	return ParseSeedCSV(f)
}

// seedCategory maps a seed role. The first match wins.
func seedCategory(role string) roster.Category {
	s := strings.ToLower(role)
	switch {
	case strings.Contains(s, "batter"):
		return roster.Batsman
	case strings.Contains(s, "bowler"):
		return roster.Bowler
	case strings.Contains(s, "all") && strings.Contains(s, "rounder"):
		return roster.AllRounder
	case strings.Contains(s, "keeper"):
		return roster.WicketKeeper
	}
	return roster.Batsman
}

func readAll(r io.Reader) ([]string, [][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("reading csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil, ErrNoHeader
	}
	header := records[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	var rows [][]string
	for _, rec := range records[1:] {
		if blank(rec) {
			continue
		}
		rows = append(rows, rec)
	}
	return header, rows, nil
}

func column(header []string, part string) int {
	for i, h := range header {
		if strings.Contains(strings.ToLower(h), part) {
			return i
		}
	}
	return -1
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
