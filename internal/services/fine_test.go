package services

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ngvinh/circulib/internal/config"
)

func testFinePolicy(t *testing.T) FinePolicy {
	t.Helper()
	policy, err := NewFinePolicy(config.FineConfig{
		GraceMinutes: 120,
		PerDiem:      "2000",
		MaxFine:      "50000",
	})
	require.NoError(t, err)
	return policy
}

func TestFinePolicy_Fine(t *testing.T) {
	policy := testFinePolicy(t)
	due := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		now  time.Time
		want string
	}{
		{
			name: "returned before due date",
			now:  due.Add(-24 * time.Hour),
			want: "0",
		},
		{
			name: "returned exactly on time",
			now:  due,
			want: "0",
		},
		{
			name: "one hour late is inside the grace window",
			now:  due.Add(time.Hour),
			want: "0",
		},
		{
			name: "exactly at the grace boundary",
			now:  due.Add(2 * time.Hour),
			want: "0",
		},
		{
			name: "just past the grace window starts one day",
			now:  due.Add(2*time.Hour + time.Minute),
			want: "2000",
		},
		{
			name: "25 hours late is one billable day",
			now:  due.Add(25 * time.Hour),
			want: "2000",
		},
		{
			name: "49 hours late is two billable days",
			now:  due.Add(49 * time.Hour),
			want: "4000",
		},
		{
			name: "exact day boundary does not start a new day",
			now:  due.Add(2*time.Hour + 24*time.Hour),
			want: "2000",
		},
		{
			name: "forty days late hits the cap",
			now:  due.Add(40 * 24 * time.Hour),
			want: "50000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want, err := decimal.NewFromString(tt.want)
			require.NoError(t, err)

			got := policy.Fine(due, tt.now)
			assert.True(t, got.Equal(want), "want %s, got %s", want, got)
		})
	}
}

func TestNewFinePolicy_InvalidAmounts(t *testing.T) {
	_, err := NewFinePolicy(config.FineConfig{
		GraceMinutes: 120,
		PerDiem:      "not-a-number",
		MaxFine:      "50000",
	})
	assert.Error(t, err)

	_, err = NewFinePolicy(config.FineConfig{
		GraceMinutes: 120,
		PerDiem:      "2000",
		MaxFine:      "",
	})
	assert.Error(t, err)
}

func TestNewFinePolicy_NegativeAmounts(t *testing.T) {
	// A negative rate would turn fines into payouts.
	_, err := NewFinePolicy(config.FineConfig{
		GraceMinutes: 120,
		PerDiem:      "-2000",
		MaxFine:      "50000",
	})
	assert.Error(t, err)

	_, err = NewFinePolicy(config.FineConfig{
		GraceMinutes: 120,
		PerDiem:      "2000",
		MaxFine:      "-1",
	})
	assert.Error(t, err)
}
