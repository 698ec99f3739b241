package observe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rcliao/wip-ledger/internal/merge"
	"github.com/rcliao/wip-ledger/internal/model"
)

// ErrMalformed marks payloads that can never be processed.
var ErrMalformed = errors.New("malformed observation")

// Tracker records one observation.
type Tracker interface {
	Track(ctx context.Context, obs model.Observation) (merge.Incorporation, error)
}

// TrackHandler decodes observation payloads and hands them to a Tracker.
type TrackHandler struct {
	tracker Tracker
}

var _ Handler = (*TrackHandler)(nil)

// NewTrackHandler creates a TrackHandler.
func NewTrackHandler(t Tracker) *TrackHandler {
	return &TrackHandler{tracker: t}
}

// Handle decodes msg as a JSON model.Observation. A missing observed_at
// falls back to the message timestamp.
func (h *TrackHandler) Handle(ctx context.Context, msg Message) error {
	obs, err := Decode(msg)
	if err != nil {
		return err
	}
	if _, err := h.tracker.Track(ctx, obs); err != nil {
		return fmt.Errorf("track: %w", err)
	}
	return nil
}

// Decode parses an observation payload.
func Decode(msg Message) (model.Observation, error) {
	var obs model.Observation
	if err := json.Unmarshal(msg.Payload, &obs); err != nil {
		return obs, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if strings.TrimSpace(obs.Description) == "" {
		return obs, fmt.Errorf("%w: empty description", ErrMalformed)
	}
	if obs.ObservedAt.IsZero() {
		obs.ObservedAt = msg.Timestamp
	}
	return obs, nil
}
