package tracker

import (
	"time"

	"github.com/SkaSmat/city-explorer/internal/geo"
)

// TrackRecord is the finalized session handed to the Recorder.
// Points are already simplified for storage.
type TrackRecord struct {
	UserID            string      `json:"user_id"`
	City              string      `json:"city"`
	Points            []geo.Point `json:"points"`
	DistanceMeters    float64     `json:"distance_meters"`
	DurationSeconds   int64       `json:"duration_seconds"`
	ExploredStreetIDs []int64     `json:"explored_street_ids"`
	StartedAt         time.Time   `json:"started_at"`
	EndedAt           time.Time   `json:"ended_at"`
}

// Result is what Stop returns to the caller.
type Result struct {
	DistanceMeters  float64 `json:"distance_meters"`
	NewStreets      int     `json:"new_streets"`
	DurationSeconds int64   `json:"duration_seconds"`
}

// State is a snapshot of the live session for dashboards and the
// websocket stream.
type State struct {
	Active            bool       `json:"active"`
	SessionID         string     `json:"session_id,omitempty"`
	City              string     `json:"city,omitempty"`
	DistanceMeters    float64    `json:"distance_meters"`
	DurationSeconds   int64      `json:"duration_seconds"`
	PointsRecorded    int        `json:"points_recorded"`
	StreetsExplored   int        `json:"streets_explored"`
	BatteryOptimized  bool       `json:"battery_optimized"`
	LastPosition      *geo.Point `json:"last_position,omitempty"`
	ExploredStreetIDs []int64    `json:"explored_street_ids,omitempty"`
	LastError         string     `json:"last_error,omitempty"`
}

// StartRequest is the payload for POST /tracking/start.
type StartRequest struct {
	City string `json:"city" validate:"required,min=1,max=128"`
}

// PositionRequest is the payload for POST /tracking/position.
type PositionRequest struct {
	Lat       float64 `json:"lat" validate:"min=-90,max=90"`
	Lng       float64 `json:"lng" validate:"min=-180,max=180"`
	Timestamp int64   `json:"timestamp"`
	Altitude  float64 `json:"altitude"`
}
