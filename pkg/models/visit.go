package models

import "time"

// VisitRequest is the body of POST /visit. The client reports whatever
// meeting context it has: a Teams invite URL or meeting ID, and/or a
// physical room. Participant creation happens later, over the WebSocket
// join, not here.
type VisitRequest struct {
	MSTeamsInput    string `json:"ms_teams_input,omitempty"`
	CityID          string `json:"city_id,omitempty"`
	MeetingRoomID   string `json:"meeting_room_id,omitempty"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
}

// VisitResponse tells the client which meeting slot the visit resolved to.
type VisitResponse struct {
	MeetingID    string    `json:"meeting_id"`
	MeetingStart time.Time `json:"meeting_start"`
	MeetingEnd   time.Time `json:"meeting_end"`
}

// CreateCityRequest is the body of POST /cities.
type CreateCityRequest struct {
	Name string `json:"name"`
}

// CreateRoomRequest is the body of POST /rooms.
type CreateRoomRequest struct {
	Name     string `json:"name"`
	CityName string `json:"city_name"`
}
