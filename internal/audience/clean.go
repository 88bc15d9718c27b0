package audience

import (
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/reengage-labs/campaign-cli/internal/model"
)

var titleCaser = cases.Title(language.Und)

// CleanReport summarizes one cleaning pass.
type CleanReport struct {
	InputRecords   int     `json:"input_records"`
	CleanedRecords int     `json:"cleaned_records"`
	Removed        int     `json:"removed"`
	Duplicates     int     `json:"duplicates"`
	QualityScore   float64 `json:"quality_score"`
}

// Clean normalizes student records and drops the unusable ones. A record
// survives when it has a name and at least one reachable contact (phone or
// email). Later duplicates of the same phone or email are removed.
func Clean(students []model.Student) ([]model.Student, CleanReport) {
	report := CleanReport{InputRecords: len(students)}

	seen := make(map[string]bool)
	out := make([]model.Student, 0, len(students))
	for _, s := range students {
		s.Name = cleanName(s.Name)
		s.Email = cleanEmail(s.Email)
		s.Phone = cleanPhone(s.Phone)

		if s.Name == "" || (s.Phone == "" && s.Email == "") {
			report.Removed++
			continue
		}

		key := s.Phone
		if key == "" {
			key = s.Email
		}
		if seen[key] {
			report.Duplicates++
			continue
		}
		seen[key] = true
		out = append(out, s)
	}

	report.CleanedRecords = len(out)
	if report.InputRecords > 0 {
		report.QualityScore = float64(report.CleanedRecords) / float64(report.InputRecords)
	}

	zap.L().Info("cleaned roster",
		zap.Int("input", report.InputRecords),
		zap.Int("cleaned", report.CleanedRecords),
		zap.Int("removed", report.Removed),
		zap.Int("duplicates", report.Duplicates),
	)
	return out, report
}

// cleanName NFC-normalizes, collapses whitespace, and title-cases.
func cleanName(name string) string {
	name = norm.NFC.String(strings.TrimSpace(name))
	if name == "" {
		return ""
	}
	return titleCaser.String(strings.Join(strings.Fields(name), " "))
}

func cleanEmail(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	at := strings.Index(email, "@")
	if at < 1 || at == len(email)-1 || !strings.Contains(email[at:], ".") {
		return ""
	}
	return email
}

// cleanPhone keeps digits and a single leading plus. Numbers shorter than
// eight digits cannot be dialed and are dropped.
func cleanPhone(phone string) string {
	var b strings.Builder
	for i, r := range phone {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if len(strings.TrimPrefix(cleaned, "+")) < 8 {
		return ""
	}
	return cleaned
}
