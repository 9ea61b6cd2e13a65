package ledger

import (
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Date
		fails bool
	}{
		{name: "Valid", input: "2024-02-29", want: NewDate(2024, time.February, 29)},
		{name: "NonLeapFebruary29", input: "2023-02-29", fails: true},
		{name: "WrongLayout", input: "29/02/2024", fails: true},
		{name: "Empty", input: "", fails: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDate(tt.input)
			if tt.fails {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.True(t, got.Equal(tt.want))
		})
	}
}

func TestDateRoundTrip(t *testing.T) {
	d := NewDate(2024, time.January, 31)
	assert.Equal(t, "2024-01-31", d.String())

	parsed, err := ParseDate(d.String())
	assert.NoError(t, err)
	assert.True(t, parsed.Equal(d))
}

func TestDateOfDropsTimeOfDay(t *testing.T) {
	noon := time.Date(2024, time.June, 15, 12, 34, 56, 789, time.UTC)
	assert.True(t, DateOf(noon).Equal(NewDate(2024, time.June, 15)))
}

func TestAddDaysCrossesMonths(t *testing.T) {
	d := NewDate(2024, time.January, 30).AddDays(3)
	assert.True(t, d.Equal(NewDate(2024, time.February, 2)))
}

func TestDaysInMonth(t *testing.T) {
	assert.Equal(t, 29, DaysInMonth(2024, time.February))
	assert.Equal(t, 28, DaysInMonth(2023, time.February))
	assert.Equal(t, 31, DaysInMonth(2024, time.December))
	assert.Equal(t, 30, DaysInMonth(2024, time.April))
}
