// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownEvent marks an event name this client does not understand.
// Callers drop the frame; unknown names are forward compatibility, not
// errors worth surfacing.
var ErrUnknownEvent = errors.New("unknown event name")

// ErrMalformedEvent marks a frame missing required fields or carrying
// values outside the contract. Callers log and drop it.
var ErrMalformedEvent = errors.New("malformed event")

// envelope is the discriminator portion of every inbound frame.
type envelope struct {
	Event     string `json:"event"`
	SearchID  string `json:"searchId"`
	Timestamp int64  `json:"timestamp"`
}

// Parse decodes and validates one raw frame into a typed Event. It returns
// ErrUnknownEvent for names outside the protocol set and ErrMalformedEvent
// (wrapped with detail) for frames that violate the contract. Parse never
// panics on hostile input.
func Parse(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if env.Event == "" {
		return nil, fmt.Errorf("%w: missing event name", ErrMalformedEvent)
	}
	if env.SearchID == "" {
		return nil, fmt.Errorf("%w: %s: missing searchId", ErrMalformedEvent, env.Event)
	}
	switch env.Event {
	case EventStarted:
		var e Started
		return decode(data, &e, func() error {
			if e.Query == "" {
				return fmt.Errorf("missing query")
			}
			return nil
		})
	case EventSourceStarted:
		var e SourceStarted
		return decode(data, &e, func() error {
			return requireSource(e.Source)
		})
	case EventSourceComplete:
		var e SourceComplete
		return decode(data, &e, func() error {
			if err := requireSource(e.Source); err != nil {
				return err
			}
			if e.PaperCount < 0 {
				return fmt.Errorf("negative paperCount %d", e.PaperCount)
			}
			return nil
		})
	case EventSourceError:
		var e SourceErrored
		return decode(data, &e, func() error {
			return requireSource(e.Source)
		})
	case EventPapers:
		var e Papers
		return decode(data, &e, func() error {
			if err := requireSource(e.Source); err != nil {
				return err
			}
			if e.Papers == nil {
				return fmt.Errorf("missing papers array")
			}
			for i := range e.Papers {
				if e.Papers[i].ID == "" && e.Papers[i].DOI == "" && e.Papers[i].Title == "" {
					return fmt.Errorf("paper %d has no identity fields", i)
				}
			}
			return nil
		})
	case EventProgress:
		var e Progress
		return decode(data, &e, func() error {
			if !e.Stage.Valid() {
				return fmt.Errorf("invalid stage %q", e.Stage)
			}
			if e.Percent < 0 || e.Percent > 100 {
				return fmt.Errorf("percent %g out of range", e.Percent)
			}
			return nil
		})
	case EventEnrichment:
		var e Enrichment
		return decode(data, &e, func() error {
			if e.PaperID == "" {
				return fmt.Errorf("missing paperId")
			}
			return nil
		})
	case EventSemanticTier:
		var e SemanticTier
		return decode(data, &e, func() error {
			if !e.Tier.Valid() {
				return fmt.Errorf("invalid tier %q", e.Tier)
			}
			if e.Version < 1 {
				return fmt.Errorf("version %d out of range", e.Version)
			}
			for i := range e.Papers {
				if e.Papers[i].ID == "" {
					return fmt.Errorf("tier paper %d missing id", i)
				}
			}
			return nil
		})
	case EventSemanticProgress:
		var e SemanticProgress
		return decode(data, &e, func() error {
			if !e.Tier.Valid() {
				return fmt.Errorf("invalid tier %q", e.Tier)
			}
			return nil
		})
	case EventSelectionComplete:
		var e SelectionComplete
		return decode(data, &e, func() error {
			if e.SelectedCount > e.RankedCount {
				return fmt.Errorf("selectedCount %d exceeds rankedCount %d",
					e.SelectedCount, e.RankedCount)
			}
			if e.SelectedCount < 0 || e.RankedCount < 0 {
				return fmt.Errorf("negative selection counts")
			}
			return nil
		})
	case EventComplete:
		var e Complete
		return decode(data, &e, nil)
	case EventError:
		var e Errored
		return decode(data, &e, func() error {
			if e.Message == "" {
				return fmt.Errorf("missing error message")
			}
			return nil
		})
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
}

// decode unmarshals the full frame into ev and runs the event-specific
// validation. The embedded Meta fields unmarshal straight from the flat
// envelope.
func decode(data []byte, ev Event, validate func() error) (Event, error) {
	if err := json.Unmarshal(data, ev); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedEvent, ev.Name(), err)
	}
	if validate != nil {
		if err := validate(); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedEvent, ev.Name(), err)
		}
	}
	return ev, nil
}

func requireSource(source string) error {
	if source == "" {
		return fmt.Errorf("missing source")
	}
	return nil
}
