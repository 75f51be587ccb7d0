package alert_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqmonitor/aqm/internal/alert"
	"github.com/aqmonitor/aqm/internal/measurement"
)

func TestRecencyGuard_HasRecentAlert(t *testing.T) {
	repo := alert.NewInMemoryRepository()
	ctx := context.Background()
	now := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Create(ctx, &alert.Alert{
		ID:          "alt_1",
		UserID:      "usr_1",
		LocationID:  "loc_a",
		Pollutant:   measurement.PollutantPM25,
		TriggeredAt: now.Add(-10 * time.Minute),
	}))
	require.NoError(t, repo.Create(ctx, &alert.Alert{
		ID:          "alt_2",
		UserID:      "usr_1",
		LocationID:  "loc_b",
		Pollutant:   measurement.PollutantPM25,
		TriggeredAt: now.Add(-45 * time.Minute),
	}))

	guard := alert.NewRecencyGuard(repo, 0, func() time.Time { return now })
	assert.Equal(t, alert.DefaultCooldown, guard.Cooldown())

	tests := []struct {
		name      string
		userID    string
		pollutant measurement.Pollutant
		location  string
		want      bool
	}{
		{"recent alert at location", "usr_1", measurement.PollutantPM25, "loc_a", true},
		{"alert outside window", "usr_1", measurement.PollutantPM25, "loc_b", false},
		{"other pollutant", "usr_1", measurement.PollutantPM10, "loc_a", false},
		{"other user", "usr_2", measurement.PollutantPM25, "loc_a", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := guard.HasRecentAlert(ctx, tt.userID, tt.pollutant, tt.location)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRecencyGuard_CustomCooldown(t *testing.T) {
	repo := alert.NewInMemoryRepository()
	ctx := context.Background()
	now := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Create(ctx, &alert.Alert{
		ID:          "alt_1",
		UserID:      "usr_1",
		LocationID:  "loc_a",
		Pollutant:   measurement.PollutantAQI,
		TriggeredAt: now.Add(-45 * time.Minute),
	}))

	guard := alert.NewRecencyGuard(repo, time.Hour, func() time.Time { return now })
	got, err := guard.HasRecentAlert(ctx, "usr_1", measurement.PollutantAQI, "loc_a")
	require.NoError(t, err)
	assert.True(t, got)
}

func TestKeyedMutex(t *testing.T) {
	locker := alert.NewKeyedMutex()
	ctx := context.Background()
	key := alert.LockKey("usr_1", measurement.PollutantPM25, "loc_a")
	assert.Equal(t, "usr_1|PM2.5|loc_a", key)

	unlock, err := locker.Lock(ctx, key)
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		unlock2, _ := locker.Lock(ctx, key)
		close(acquired)
		unlock2()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while first was held")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	<-acquired

	assert.Eventually(t, func() bool { return locker.Len() == 0 }, time.Second, 5*time.Millisecond)
}
