package autoaim

import "math"

// Selector implements the target-selection policy: sticky on the
// previously engaged label, then nearest-to-barrel-axis Tracking target,
// then any Tracking/Fitting target, then None. It holds only the previous
// selection as its bookkeeping state.
type Selector struct {
	previous Labels
}

// NewSelector creates a selector with no prior selection.
func NewSelector() *Selector {
	return &Selector{previous: LabelNone}
}

// Select chooses a label to engage from this frame's detections and the
// tracker set's current status, updating "previous" on success.
func (s *Selector) Select(detections []Detection3D, trackers *TrackerSet) Labels {
	present := make(map[Labels]bool, len(detections))
	for _, d := range detections {
		present[d.Label] = true
	}

	if s.previous != LabelNone && present[s.previous] {
		return s.previous
	}

	bestLabel := LabelNone
	bestScore := math.Inf(1)
	for _, d := range detections {
		t := trackers.Get(d.Label)
		if t == nil || t.Status() != StatusTracking {
			continue
		}
		score := math.Abs(d.YawToBarrel) + math.Abs(d.PitchToBarrel)
		if score < bestScore {
			bestScore = score
			bestLabel = d.Label
		}
	}
	if bestLabel != LabelNone {
		s.previous = bestLabel
		return bestLabel
	}

	for _, d := range detections {
		t := trackers.Get(d.Label)
		if t == nil {
			continue
		}
		switch t.Status() {
		case StatusTracking, StatusFitting:
			s.previous = d.Label
			return d.Label
		}
	}

	return LabelNone
}

// Previous returns the currently sticky label (LabelNone if none).
func (s *Selector) Previous() Labels {
	return s.previous
}
