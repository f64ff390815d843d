package engagement

import (
	"context"
	"time"

	"github.com/meetpulse/meetpulse/pkg/models"
	"github.com/meetpulse/meetpulse/pkg/timeutil"
)

// ParticipantSource is the slice of the participant store the snapshot
// builder needs.
type ParticipantSource interface {
	ListForMeeting(ctx context.Context, meetingID string) ([]*models.Participant, error)
}

// SampleSource is the slice of the engagement sample store the snapshot
// builder needs. A zero end means no upper bound.
type SampleSource interface {
	SamplesForMeeting(ctx context.Context, meetingID string, start, end time.Time) ([]*models.EngagementSample, error)
}

// Point is one value on a participant's or the overall engagement series.
type Point struct {
	Bucket time.Time `json:"bucket"`
	Value  float64   `json:"value"`
}

// ParticipantSeries is one participant's smoothed engagement over the
// meeting's buckets.
type ParticipantSeries struct {
	ParticipantID     string  `json:"participant_id"`
	DeviceFingerprint string  `json:"device_fingerprint"`
	Series            []Point `json:"series"`
}

// Summary is the complete engagement picture of a meeting at one instant:
// per-participant smoothed series plus the averaged overall series.
type Summary struct {
	MeetingID     string              `json:"meeting_id"`
	Start         time.Time           `json:"start"`
	End           time.Time           `json:"end"`
	BucketMinutes int                 `json:"bucket_minutes"`
	Participants  []ParticipantSeries `json:"participants"`
	Overall       []Point             `json:"overall"`
}

// Rollup is the live engagement state of one minute bucket.
type Rollup struct {
	Bucket       time.Time          `json:"bucket"`
	Participants map[string]float64 `json:"participants"`
	Overall      float64            `json:"overall"`
}

// SnapshotBuilder rebuilds the full engagement summary of a meeting from its
// raw samples. It holds no per-meeting state so a single instance serves all
// meetings concurrently.
type SnapshotBuilder struct {
	participants ParticipantSource
	samples      SampleSource
	strategy     Strategy
	now          func() time.Time
}

func NewSnapshotBuilder(participants ParticipantSource, samples SampleSource, strategy Strategy) *SnapshotBuilder {
	return &SnapshotBuilder{
		participants: participants,
		samples:      samples,
		strategy:     strategy,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func engagedValue(status string) int {
	if status == models.StatusSpeaking || status == models.StatusEngaged {
		return 1
	}
	return 0
}

// Build computes the smoothed summary for meeting over one-minute buckets.
// The bucket range ends at min(meeting end, now) so no future buckets are
// generated for meetings still in progress.
func (b *SnapshotBuilder) Build(ctx context.Context, meeting *models.Meeting) (*Summary, error) {
	start := timeutil.Bucketize(meeting.StartTS)
	end := timeutil.Bucketize(meeting.EndTS)
	if now := timeutil.Bucketize(b.now()); now.Before(end) {
		end = now
	}
	buckets := timeutil.GenerateBuckets(start, end, 1)

	participants, err := b.participants.ListForMeeting(ctx, meeting.ID)
	if err != nil {
		return nil, err
	}
	samples, err := b.samples.SamplesForMeeting(ctx, meeting.ID, start, end)
	if err != nil {
		return nil, err
	}

	sampleMap := make(map[string]map[time.Time]string)
	for _, s := range samples {
		bucket := timeutil.Bucketize(s.Bucket)
		if sampleMap[s.ParticipantID] == nil {
			sampleMap[s.ParticipantID] = make(map[time.Time]string)
		}
		sampleMap[s.ParticipantID][bucket] = s.Status
	}

	// Carry-forward flags: a participant keeps their last known status
	// across buckets without samples, seeded from the persisted last_status.
	series := make(map[string][]float64, len(participants))
	payload := make([]ParticipantSeries, 0, len(participants))
	for _, p := range participants {
		last := models.StatusDisengaged
		if p.LastStatus != nil && *p.LastStatus != "" {
			last = *p.LastStatus
		}
		flags := make([]int, 0, len(buckets))
		for _, bucket := range buckets {
			if status, ok := sampleMap[p.ID][bucket]; ok {
				last = status
			}
			flags = append(flags, engagedValue(last))
		}

		window := len(flags)
		if window < 1 {
			window = 1
		}
		smoothed := b.strategy.Smooth(flags, window)
		series[p.ID] = smoothed

		points := make([]Point, len(buckets))
		for i := range buckets {
			points[i] = Point{Bucket: buckets[i], Value: smoothed[i]}
		}
		payload = append(payload, ParticipantSeries{
			ParticipantID:     p.ID,
			DeviceFingerprint: p.DeviceFingerprint,
			Series:            points,
		})
	}

	overall := make([]Point, len(buckets))
	for i, bucket := range buckets {
		var sum float64
		for _, s := range series {
			sum += s[i]
		}
		avg := 0.0
		if len(series) > 0 {
			avg = sum / float64(len(series))
		}
		overall[i] = Point{Bucket: bucket, Value: avg}
	}

	return &Summary{
		MeetingID:     meeting.ID,
		Start:         start,
		End:           end,
		BucketMinutes: 1,
		Participants:  payload,
		Overall:       overall,
	}, nil
}

// BucketRollup computes the live engagement of a single bucket from each
// participant's most recent status at or before it.
func (b *SnapshotBuilder) BucketRollup(ctx context.Context, meeting *models.Meeting, bucket time.Time) (*Rollup, error) {
	bucket = timeutil.Bucketize(bucket)

	participants, err := b.participants.ListForMeeting(ctx, meeting.ID)
	if err != nil {
		return nil, err
	}

	latest := make(map[string]string, len(participants))
	for _, p := range participants {
		status := models.StatusDisengaged
		if p.LastStatus != nil && *p.LastStatus != "" {
			status = *p.LastStatus
		}
		latest[p.ID] = status
	}

	// Samples are ordered by bucket ascending, so later rows overwrite
	// earlier ones and the map ends at each participant's newest status.
	samples, err := b.samples.SamplesForMeeting(ctx, meeting.ID, time.Time{}, bucket)
	if err != nil {
		return nil, err
	}
	for _, s := range samples {
		latest[s.ParticipantID] = s.Status
	}

	values := make(map[string]float64, len(participants))
	var sum float64
	for _, p := range participants {
		v := float64(engagedValue(latest[p.ID])) * 100.0
		values[p.ID] = v
		sum += v
	}

	overall := 0.0
	if len(values) > 0 {
		overall = sum / float64(len(values))
	}
	return &Rollup{Bucket: bucket, Participants: values, Overall: overall}, nil
}
