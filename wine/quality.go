package wine

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Grade one row of the quality scale reference
type Grade struct {
	Label int    `json:"label"`
	Tier  string `json:"tier"`
}

var scale = []Grade{
	{Label: 3, Tier: "Very Poor"},
	{Label: 4, Tier: "Poor"},
	{Label: 5, Tier: "Average"},
	{Label: 6, Tier: "Good"},
	{Label: 7, Tier: "Very Good"},
	{Label: 8, Tier: "Excellent"},
}

// Scale returns the quality scale reference, lowest grade first.
func Scale() []Grade {
	out := make([]Grade, len(scale))
	copy(out, scale)
	return out
}

// Tier names a quality label. Labels outside 3..8 saturate to the nearest end.
func Tier(label int) string {
	first, last := scale[0], scale[len(scale)-1]
	switch {
	case label <= first.Label:
		return first.Tier
	case label >= last.Label:
		return last.Tier
	}
	return scale[label-first.Label].Tier
}

// Formatter renders prediction messages and sample values for one locale.
type Formatter struct {
	tag     language.Tag
	printer *message.Printer
}

// NewFormatter creates a formatter for a BCP 47 locale such as "en" or "de-DE".
// Unparseable locales fall back to English.
func NewFormatter(locale string) *Formatter {
	tag, err := language.Parse(locale)
	if err != nil || locale == "" {
		tag = language.English
	}
	return &Formatter{
		tag:     tag,
		printer: message.NewPrinter(tag),
	}
}

// Locale returns the formatter's language tag.
func (f *Formatter) Locale() string {
	return f.tag.String()
}

// Message builds the user-facing prediction line.
func (f *Formatter) Message(label int, score float64, hasScore bool) string {
	msg := f.printer.Sprintf("Predicted Wine Quality: %d (%s)", label, Tier(label))
	if hasScore {
		msg += " " + f.printer.Sprintf("(Confidence: %.2f%%)", score*100)
	}
	return msg
}

// Percent formats a score in [0, 1] as a percentage.
func (f *Formatter) Percent(score float64) string {
	return f.printer.Sprintf("%.2f%%", score*100)
}

// Value formats a measurement for the summary table.
func (f *Formatter) Value(v float64) string {
	return f.printer.Sprintf("%v", v)
}

// ColumnTitle returns the display label of a dataset column.
func (f *Formatter) ColumnTitle(column string) string {
	if field, _, ok := FieldByColumn(column); ok {
		return field.Label
	}
	// Casers keep state between calls, so each title gets its own.
	return cases.Title(f.tag).String(strings.TrimSpace(column))
}
