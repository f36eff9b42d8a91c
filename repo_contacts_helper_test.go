package contacts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func TestNextBirthday(t *testing.T) {
	tests := []struct {
		name     string
		birth    time.Time
		from     time.Time
		expected time.Time
	}{
		{
			name:     "later this year",
			birth:    date(1990, time.June, 15),
			from:     date(2026, time.March, 1),
			expected: date(2026, time.June, 15),
		},
		{
			name:     "already passed, rolls to next year",
			birth:    date(1990, time.January, 10),
			from:     date(2026, time.March, 1),
			expected: date(2027, time.January, 10),
		},
		{
			name:     "today counts",
			birth:    date(1990, time.March, 1),
			from:     date(2026, time.March, 1),
			expected: date(2026, time.March, 1),
		},
		{
			name:     "feb 29 on a leap year",
			birth:    date(1992, time.February, 29),
			from:     date(2028, time.January, 15),
			expected: date(2028, time.February, 29),
		},
		{
			name:     "feb 29 on a common year becomes mar 1",
			birth:    date(1992, time.February, 29),
			from:     date(2026, time.January, 15),
			expected: date(2026, time.March, 1),
		},
		{
			name:     "feb 29 rolls into a common year",
			birth:    date(1992, time.February, 29),
			from:     date(2026, time.March, 15),
			expected: date(2027, time.March, 1),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, nextBirthday(tt.birth, tt.from))
		})
	}
}

func TestContactNormalize(t *testing.T) {
	repo := &contactsRepo{defaultRegion: "US"}

	t.Run("canonicalizes fields", func(t *testing.T) {
		record := &Contact{
			FirstName: "  Ada ",
			LastName:  " Lovelace ",
			Email:     " Ada@Example.COM ",
			Phone:     "(212) 555-0123",
		}

		require.NoError(t, repo.normalize(record))

		assert.Equal(t, "Ada", record.FirstName)
		assert.Equal(t, "Lovelace", record.LastName)
		assert.Equal(t, "ada@example.com", record.Email)
		assert.Equal(t, "+12125550123", record.Phone)
	})

	t.Run("empty phone is allowed", func(t *testing.T) {
		record := &Contact{FirstName: "Ada", Phone: "   "}

		require.NoError(t, repo.normalize(record))
		assert.Empty(t, record.Phone)
	})

	t.Run("international numbers keep their region", func(t *testing.T) {
		record := &Contact{FirstName: "Ada", Phone: "+44 20 7946 0958"}

		require.NoError(t, repo.normalize(record))
		assert.Equal(t, "+442079460958", record.Phone)
	})

	t.Run("invalid phone rejected", func(t *testing.T) {
		record := &Contact{FirstName: "Ada", Phone: "12"}

		assert.Error(t, repo.normalize(record))
	})
}
