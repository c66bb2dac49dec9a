package uptime

import (
	"errors"
	"fmt"
)

// ErrHistoryTooShort is returned by Decide when the history holds fewer
// entries than the change threshold.
var ErrHistoryTooShort = errors.New("history shorter than change threshold")

// Decision is what the alert engine concluded for one site in one sweep.
type Decision struct {
	Alert  bool      `json:"alert"`
	Kind   AlertKind `json:"kind"`
	Status Status    `json:"status"`
}

// StateChanges counts adjacent entries that differ (0->1 or 1->0).
func StateChanges(h History) int {
	changes := 0
	for i := 1; i < len(h); i++ {
		if h[i] != h[i-1] {
			changes++
		}
	}
	return changes
}

// Decide maps a site's history and its last status onto the next status and
// whether that transition is worth an alert. Flapping is checked first and
// wins over a clean up/down window. A mixed window keeps the current status.
func Decide(h History, current Status, changeThreshold, flapThreshold int) (Decision, error) {
	if changeThreshold < 1 || len(h) < changeThreshold {
		return Decision{Kind: BetweenState, Status: current},
			fmt.Errorf("%w: %d entries, threshold %d", ErrHistoryTooShort, len(h), changeThreshold)
	}

	if StateChanges(h) >= flapThreshold {
		if current == StatusFlap {
			return Decision{Alert: false, Kind: StillFlapping, Status: StatusFlap}, nil
		}
		return Decision{Alert: true, Kind: NewFlapping, Status: StatusFlap}, nil
	}

	latestZeros, latestOnes := 0, 0
	for _, v := range h[:changeThreshold] {
		if v == 0 {
			latestZeros++
		} else {
			latestOnes++
		}
	}

	switch {
	case latestOnes == changeThreshold:
		if current == StatusDown {
			return Decision{Alert: false, Kind: StillDown, Status: StatusDown}, nil
		}
		return Decision{Alert: true, Kind: NewDown, Status: StatusDown}, nil
	case latestZeros == changeThreshold:
		if current == StatusUp {
			return Decision{Alert: false, Kind: StillUp, Status: StatusUp}, nil
		}
		return Decision{Alert: true, Kind: NewUp, Status: StatusUp}, nil
	default:
		return Decision{Alert: false, Kind: BetweenState, Status: current}, nil
	}
}
