package appointments

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Amount is a money value in minor units (cents). Valid is false when the
// backend sent nothing usable; such amounts count as zero in sums.
type Amount struct {
	Cents int64
	Valid bool
}

// Cents builds a valid amount from minor units.
func Cents(c int64) Amount {
	return Amount{Cents: c, Valid: true}
}

// Units builds a valid amount from whole currency units.
func Units(u int64) Amount {
	return Amount{Cents: u * 100, Valid: true}
}

// ParseAmount accepts "500", "500.5", "1,200.00" and similar decimal text.
func ParseAmount(s string) (Amount, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return Amount{}, fmt.Errorf("appointments: empty amount")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return Amount{}, fmt.Errorf("appointments: invalid amount %q", s)
	}
	cents := math.Round(f * 100)
	if cents >= math.MaxInt64 || cents < math.MinInt64 {
		return Amount{}, fmt.Errorf("appointments: amount %q out of range", s)
	}
	return Amount{Cents: int64(cents), Valid: true}, nil
}

// IsPositive reports whether the amount is valid and greater than zero.
func (a Amount) IsPositive() bool {
	return a.Valid && a.Cents > 0
}

// Add sums two amounts; invalid operands contribute zero.
func (a Amount) Add(b Amount) Amount {
	out := Amount{Valid: true}
	if a.Valid {
		out.Cents += a.Cents
	}
	if b.Valid {
		out.Cents += b.Cents
	}
	return out
}

// String renders the amount with two decimal places.
func (a Amount) String() string {
	if !a.Valid {
		return "0.00"
	}
	sign := ""
	c := a.Cents
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%s%d.%02d", sign, c/100, c%100)
}

// Format renders the amount with a currency prefix, e.g. "KES 500.00".
func (a Amount) Format(currency string) string {
	return currency + " " + a.String()
}

func (a Amount) MarshalJSON() ([]byte, error) {
	if !a.Valid {
		return []byte("null"), nil
	}
	return []byte(a.String()), nil
}

// UnmarshalJSON accepts numbers and numeric strings. Anything else decodes
// to an invalid amount without failing the enclosing document.
func (a *Amount) UnmarshalJSON(data []byte) error {
	*a = Amount{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	text := string(data)
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		text = s
	}
	parsed, err := ParseAmount(text)
	if err != nil {
		return nil
	}
	*a = parsed
	return nil
}
