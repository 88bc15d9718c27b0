// Package audience loads studio roster exports and turns them into cleaned,
// segmented target audiences for reactivation campaigns.
package audience

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/reengage-labs/campaign-cli/internal/model"
)

// RosterOptions configures the roster reader.
type RosterOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
}

// Roster export date formats seen across studio management systems.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"02/01/2006",
	"01/02/2006",
	time.RFC3339,
}

// LoadRoster reads a studio roster XLSX export into student records. The
// first row is the header; columns are matched by name, so export column
// order does not matter. Rows without a name are dropped.
func LoadRoster(path string, opts RosterOptions) ([]model.Student, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "audience: open roster file")
	}

	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}
	if len(sheet.Rows) == 0 {
		return nil, eris.New("audience: roster sheet is empty")
	}

	cols := headerIndex(sheet.Rows[0])
	if _, ok := cols["name"]; !ok {
		return nil, eris.New("audience: roster has no name column")
	}

	var students []model.Student
	for _, row := range sheet.Rows[1:] {
		cells := rowToStrings(row)
		get := func(key string) string {
			idx, ok := cols[key]
			if !ok || idx >= len(cells) {
				return ""
			}
			return strings.TrimSpace(cells[idx])
		}

		name := get("name")
		if name == "" {
			continue
		}

		id := get("id")
		if id == "" {
			id = uuid.NewString()
		}

		fee, _ := strconv.ParseFloat(strings.ReplaceAll(get("monthly_fee"), ",", "."), 64)
		students = append(students, model.Student{
			ID:           id,
			Name:         name,
			Email:        get("email"),
			Phone:        get("phone"),
			RegisteredAt: parseDate(get("registered_at")),
			LastPayment:  parseDate(get("last_payment")),
			LastAccess:   parseDate(get("last_access")),
			PlanType:     get("plan_type"),
			MonthlyFee:   fee,
			Status:       get("status"),
		})
	}

	zap.L().Info("loaded roster",
		zap.String("path", path),
		zap.Int("students", len(students)),
	)
	return students, nil
}

// headerIndex maps normalized header names to column positions. Spaces and
// hyphens collapse to underscores so "Last Payment" matches "last_payment".
func headerIndex(row *xlsx.Row) map[string]int {
	cols := make(map[string]int, len(row.Cells))
	for i, cell := range row.Cells {
		key := strings.ToLower(strings.TrimSpace(cell.String()))
		key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
		if key != "" {
			cols[key] = i
		}
	}
	return cols
}

func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func getSheet(f *xlsx.File, opts RosterOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("audience: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}
	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("audience: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}
	return f.Sheets[opts.SheetIndex], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
