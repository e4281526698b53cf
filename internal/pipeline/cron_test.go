package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNextCronTime(t *testing.T) {
	tests := []struct {
		name  string
		expr  string
		after time.Time
		want  time.Time
	}{
		{
			name:  "every minute rounds up to the next boundary",
			expr:  "* * * * *",
			after: time.Date(2026, 2, 10, 10, 30, 45, 0, time.UTC),
			want:  time.Date(2026, 2, 10, 10, 31, 0, 0, time.UTC),
		},
		{
			name:  "daily trigger later the same day",
			expr:  "0 3 * * *",
			after: time.Date(2026, 2, 10, 1, 0, 0, 0, time.UTC),
			want:  time.Date(2026, 2, 10, 3, 0, 0, 0, time.UTC),
		},
		{
			name:  "daily trigger already passed rolls to tomorrow",
			expr:  "0 3 * * *",
			after: time.Date(2026, 2, 10, 4, 0, 0, 0, time.UTC),
			want:  time.Date(2026, 2, 11, 3, 0, 0, 0, time.UTC),
		},
		{
			name:  "first of the month",
			expr:  "0 0 1 * *",
			after: time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC),
			want:  time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "weekly on sunday",
			expr:  "30 6 * * 0",
			after: time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), // Monday
			want:  time.Date(2026, 3, 15, 6, 30, 0, 0, time.UTC),
		},
		{
			name:  "minute list picks the next entry",
			expr:  "15,45 * * * *",
			after: time.Date(2026, 2, 10, 10, 20, 0, 0, time.UTC),
			want:  time.Date(2026, 2, 10, 10, 45, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := nextCronTime(tt.expr, tt.after)
			require.NoError(t, err)
			require.True(t, got.Equal(tt.want), "got %v, want %v", got, tt.want)
		})
	}
}

func TestNextCronTimeInvalid(t *testing.T) {
	for _, expr := range []string{"", "bad", "* * *", "61 * * * *", "* 25 * * *"} {
		_, err := nextCronTime(expr, time.Now().UTC())
		require.Error(t, err, "expression %q", expr)
	}
}
