// Package store implements data access on plain SQL. Each store owns the
// queries for one aggregate; business rules live in pkg/services.
package store

import (
	"database/sql"
	"errors"
)

// ErrNotFound is returned by Get operations when no row matches.
var ErrNotFound = errors.New("record not found")

// Stores bundles every repository over one connection pool.
type Stores struct {
	Meetings     *MeetingStore
	Participants *ParticipantStore
	Engagement   *EngagementStore
	Summaries    *SummaryStore
	Cities       *CityStore
	Rooms        *RoomStore
	Teams        *TeamsStore
}

func New(db *sql.DB) *Stores {
	return &Stores{
		Meetings:     &MeetingStore{db: db},
		Participants: &ParticipantStore{db: db},
		Engagement:   &EngagementStore{db: db},
		Summaries:    &SummaryStore{db: db},
		Cities:       &CityStore{db: db},
		Rooms:        &RoomStore{db: db},
		Teams:        &TeamsStore{db: db},
	}
}
