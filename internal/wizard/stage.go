package wizard

import (
	"fmt"
)

// Stage is a step of the publishing flow. Stages are ordered; an operation
// for a stage is accepted only once every earlier stage holds valid data.
type Stage int

const (
	StageDeparture Stage = iota
	StageArrival
	StageRouteSelection
	StageStopovers
	StageDate
	StageTime
	StageSeats
	StagePrice
	StageReturnTrip
	StageReview

	// Terminal stages.
	StagePublished
	StageAbandoned
)

var stageNames = [...]string{
	StageDeparture:      "departure",
	StageArrival:        "arrival",
	StageRouteSelection: "route_selection",
	StageStopovers:      "stopovers",
	StageDate:           "date",
	StageTime:           "time",
	StageSeats:          "seats",
	StagePrice:          "price",
	StageReturnTrip:     "return_trip",
	StageReview:         "review",
	StagePublished:      "published",
	StageAbandoned:      "abandoned",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// Terminal reports whether no further operation is possible.
func (s Stage) Terminal() bool {
	return s == StagePublished || s == StageAbandoned
}

// ParseStage is the inverse of String.
func ParseStage(name string) (Stage, error) {
	for i, n := range stageNames {
		if n == name {
			return Stage(i), nil
		}
	}
	return 0, fmt.Errorf("unknown stage %q", name)
}

func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Stage) UnmarshalText(b []byte) error {
	parsed, err := ParseStage(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
