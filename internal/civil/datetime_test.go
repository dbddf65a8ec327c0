package civil

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in       string
		expected DateTime
	}{
		{"2024-01-05T10:00", Date(2024, time.January, 5, 10, 0)},
		{"2024-01-05 10:00", Date(2024, time.January, 5, 10, 0)},
		{"2024-01-05T10:00:42", Date(2024, time.January, 5, 10, 0)},
		{" 2024-02-29 ", Date(2024, time.February, 29, 0, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, in := range []string{"", "2024-02-30", "2023-02-29T10:00", "2024-01-05T25:00", "tomorrow", "01/05/2024"} {
		_, err := Parse(in)
		assert.True(t, errors.Is(err, ErrInvalidCivilDateTime), "input %q", in)
	}
}

func TestDaysIn(t *testing.T) {
	assert.Equal(t, 29, DaysIn(2024, time.February))
	assert.Equal(t, 28, DaysIn(2023, time.February))
	assert.Equal(t, 28, DaysIn(1900, time.February))
	assert.Equal(t, 29, DaysIn(2000, time.February))
	assert.Equal(t, 30, DaysIn(2024, time.April))
	assert.Equal(t, 31, DaysIn(2024, time.December))
}

func TestOrderingAndArithmetic(t *testing.T) {
	a := Date(2024, time.December, 31, 23, 0)
	b := a.AddDays(1)

	assert.Equal(t, Date(2025, time.January, 1, 23, 0), b)
	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))
	assert.Equal(t, 0, a.Compare(a))
	assert.Equal(t, "2024-12-31T23:00", a.String())
}

func TestJSON(t *testing.T) {
	type payload struct {
		At DateTime `json:"at"`
	}
	b, err := json.Marshal(payload{At: Date(2024, time.March, 9, 7, 5)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"at":"2024-03-09T07:05"}`, string(b))

	var p payload
	require.NoError(t, json.Unmarshal([]byte(`{"at":"2024-11-03T01:30"}`), &p))
	assert.Equal(t, Date(2024, time.November, 3, 1, 30), p.At)

	err = json.Unmarshal([]byte(`{"at":"2024-11-31T01:30"}`), &p)
	assert.True(t, errors.Is(err, ErrInvalidCivilDateTime))
}
