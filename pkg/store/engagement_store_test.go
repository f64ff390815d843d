package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetpulse/meetpulse/pkg/models"
)

func TestEngagementStore_UpsertSample(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()
	meeting := createTestMeeting(t, stores, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
	p, _, err := stores.Participants.GetOrCreate(ctx, meeting.ID, "fp-1")
	require.NoError(t, err)

	bucket := meeting.StartTS.Add(2 * time.Minute)

	t.Run("last write wins within a bucket", func(t *testing.T) {
		require.NoError(t, stores.Engagement.UpsertSample(ctx, meeting.ID, p.ID, bucket, models.StatusEngaged))
		require.NoError(t, stores.Engagement.UpsertSample(ctx, meeting.ID, p.ID, bucket, models.StatusDisengaged))

		samples, err := stores.Engagement.SamplesForMeeting(ctx, meeting.ID, time.Time{}, time.Time{})
		require.NoError(t, err)
		require.Len(t, samples, 1)
		assert.Equal(t, models.StatusDisengaged, samples[0].Status)
		assert.True(t, samples[0].Bucket.Equal(bucket))
	})

	t.Run("distinct buckets create distinct rows", func(t *testing.T) {
		require.NoError(t, stores.Engagement.UpsertSample(ctx, meeting.ID, p.ID, bucket.Add(time.Minute), models.StatusSpeaking))

		samples, err := stores.Engagement.SamplesForMeeting(ctx, meeting.ID, time.Time{}, time.Time{})
		require.NoError(t, err)
		assert.Len(t, samples, 2)
	})
}

func TestEngagementStore_SamplesForMeeting(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()
	meeting := createTestMeeting(t, stores, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
	p, _, err := stores.Participants.GetOrCreate(ctx, meeting.ID, "fp-1")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		bucket := meeting.StartTS.Add(time.Duration(i) * time.Minute)
		require.NoError(t, stores.Engagement.UpsertSample(ctx, meeting.ID, p.ID, bucket, models.StatusEngaged))
	}

	t.Run("ordered by bucket ascending", func(t *testing.T) {
		samples, err := stores.Engagement.SamplesForMeeting(ctx, meeting.ID, time.Time{}, time.Time{})
		require.NoError(t, err)
		require.Len(t, samples, 5)
		for i := 1; i < len(samples); i++ {
			assert.True(t, samples[i].Bucket.After(samples[i-1].Bucket))
		}
	})

	t.Run("bounded range is inclusive", func(t *testing.T) {
		start := meeting.StartTS.Add(1 * time.Minute)
		end := meeting.StartTS.Add(3 * time.Minute)
		samples, err := stores.Engagement.SamplesForMeeting(ctx, meeting.ID, start, end)
		require.NoError(t, err)
		assert.Len(t, samples, 3)
	})

	t.Run("zero end means no upper bound", func(t *testing.T) {
		samples, err := stores.Engagement.SamplesForMeeting(ctx, meeting.ID, meeting.StartTS.Add(3*time.Minute), time.Time{})
		require.NoError(t, err)
		assert.Len(t, samples, 2)
	})
}

func TestSummaryStore_CreateAndGet(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()
	meeting := createTestMeeting(t, stores, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))

	t.Run("absent summary returns nil", func(t *testing.T) {
		got, err := stores.Summaries.Get(ctx, meeting.ID)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("first writer wins", func(t *testing.T) {
		first, err := stores.Summaries.Create(ctx, &models.MeetingSummary{
			MeetingID:            meeting.ID,
			MaxParticipants:      4,
			NormalizedEngagement: 0.62,
			EngagementLevel:      "high",
		})
		require.NoError(t, err)
		assert.Equal(t, 0.62, first.NormalizedEngagement)

		// A racing second computation gets the stored row back unchanged.
		second, err := stores.Summaries.Create(ctx, &models.MeetingSummary{
			MeetingID:            meeting.ID,
			MaxParticipants:      9,
			NormalizedEngagement: 0.11,
			EngagementLevel:      "low",
		})
		require.NoError(t, err)
		assert.Equal(t, first.NormalizedEngagement, second.NormalizedEngagement)
		assert.Equal(t, first.MaxParticipants, second.MaxParticipants)

		got, err := stores.Summaries.Get(ctx, meeting.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "high", got.EngagementLevel)
	})
}
