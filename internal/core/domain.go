package core

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Expense Kind = "expense"
	Income  Kind = "income"

	Actual Book = "transactions"
	Budget Book = "budget"

	// UncategorizedLabel replaces an empty category.
	UncategorizedLabel = "Uncategorized"

	dateLayout = "2006-01-02"
)

type (
	// Kind discriminates expense and income entries. Values outside the
	// known set are kept verbatim so reporting can flag them.
	Kind string

	// Book separates recorded transactions from budget lines. Both hold
	// LedgerEntry values.
	Book string

	Date struct {
		time.Time
	}

	// LedgerEntry is one recorded movement, either actual (transaction) or
	// planned (budget line). Amount is already signed.
	LedgerEntry struct {
		ID          string
		Date        Date
		Kind        Kind
		Category    string
		Subcategory string
		Item        string
		Description string
		Account     string
		Amount      float64
		CreatedAt   time.Time
	}

	// IndexValue is the monthly conversion rate used to express totals in
	// the indexed unit.
	IndexValue struct {
		Year  int
		Month int
		Value decimal.Decimal
	}

	// Range restricts entries to an inclusive span of calendar days.
	// A zero bound means the range is open on that side.
	Range struct {
		Start Date
		End   Date
	}
)

var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotFound          = errors.New("not found")
	ErrInvalidDay        = errors.New("invalid day")
	ErrInvalidMonth      = errors.New("invalid month")
	ErrInvalidDate       = errors.New("invalid date")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidKind       = errors.New("invalid kind")
	ErrInvalidIndexValue = errors.New("invalid index value")
)

// Kinds returns the recognised kinds in default report order.
func Kinds() []Kind {
	return []Kind{Expense, Income}
}

func (k Kind) IsValid() bool {
	switch k {
	case Expense, Income:
		return true
	default:
		return false
	}
}

func (k Kind) String() string {
	return string(k)
}

// ParseBook accepts the book names used in URLs and messages.
func ParseBook(s string) (Book, error) {
	switch Book(strings.ToLower(strings.TrimSpace(s))) {
	case Actual, "":
		return Actual, nil
	case Budget:
		return Budget, nil
	default:
		return "", fmt.Errorf("%w: unknown book %q", ErrInvalidArgument, s)
	}
}

// ParseKind maps the spellings found in ledgers (English and Spanish,
// singular or plural, any case) to a Kind. Unknown input is returned
// trimmed but otherwise untouched.
func ParseKind(s string) Kind {
	raw := strings.TrimSpace(s)
	switch strings.ToLower(raw) {
	case "expense", "expenses", "gasto", "gastos":
		return Expense
	case "income", "incomes", "ingreso", "ingresos":
		return Income
	default:
		return Kind(raw)
	}
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string in the given location.
// A nil location means UTC.
func ParseDate(s string, loc *time.Location) (Date, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(dateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	year, month, day := d.Time.Date()
	if year < 1 || year > 9999 {
		return fmt.Errorf("%w: year %d outside 1..9999", ErrInvalidDate, year)
	}
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Valid reports whether the date carries a usable calendar day.
func (d Date) Valid() bool {
	return d.Validate() == nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// IsEmpty returns true if the date is zero (for optional dates)
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// CivilKey packs the calendar day into a sortable integer (YYYYMMDD).
// It ignores time of day and compares dates in their own location.
func (d Date) CivilKey() int {
	y, m, day := d.Time.Date()
	return y*10000 + int(m)*100 + day
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

// Finite reports whether the amount is a usable number.
func (e LedgerEntry) Finite() bool {
	return !math.IsNaN(e.Amount) && !math.IsInf(e.Amount, 0)
}

// DecimalAmount converts the amount to an exact decimal using the shortest
// representation of the float. ok is false for NaN and infinities.
func (e LedgerEntry) DecimalAmount() (d decimal.Decimal, ok bool) {
	if !e.Finite() {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(e.Amount), true
}

// NormalizedCategory returns the category label used for grouping.
func (e LedgerEntry) NormalizedCategory() string {
	return NormalizeCategory(e.Category)
}

// NormalizeCategory maps blank labels to UncategorizedLabel and leaves
// everything else untouched.
func NormalizeCategory(c string) string {
	if strings.TrimSpace(c) == "" {
		return UncategorizedLabel
	}
	return c
}

func (e LedgerEntry) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDate, err)
	}
	if !e.Kind.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidKind, e.Kind)
	}
	if !e.Finite() {
		return ErrInvalidAmount
	}
	if len(e.Description) > 500 {
		return errors.New("description too long (max 500 characters)")
	}
	return nil
}

// ValidateMonth returns an ErrInvalidArgument-wrapped error for months
// outside 1..12.
func ValidateMonth(month int) error {
	if month < 1 || month > 12 {
		return fmt.Errorf("%w: month %d outside 1..12", ErrInvalidArgument, month)
	}
	return nil
}

func (v IndexValue) Validate() error {
	if err := ValidateMonth(v.Month); err != nil {
		return err
	}
	if v.Year < 1900 || v.Year > 9999 {
		return fmt.Errorf("%w: year %d", ErrInvalidArgument, v.Year)
	}
	if !v.Value.IsPositive() {
		return fmt.Errorf("%w: value must be positive", ErrInvalidIndexValue)
	}
	return nil
}

// Unbounded reports whether neither side of the range is set.
func (r Range) Unbounded() bool {
	return r.Start.IsEmpty() && r.End.IsEmpty()
}

// Contains reports whether d falls inside the range, inclusive on both ends.
func (r Range) Contains(d Date) bool {
	key := d.CivilKey()
	if !r.Start.IsEmpty() && key < r.Start.CivilKey() {
		return false
	}
	if !r.End.IsEmpty() && key > r.End.CivilKey() {
		return false
	}
	return true
}

func (r Range) Validate() error {
	if !r.Start.IsEmpty() && !r.End.IsEmpty() && r.Start.CivilKey() > r.End.CivilKey() {
		return fmt.Errorf("%w: start %s is after end %s", ErrInvalidArgument, r.Start, r.End)
	}
	return nil
}

func (r Range) String() string {
	return r.Start.String() + ".." + r.End.String()
}
