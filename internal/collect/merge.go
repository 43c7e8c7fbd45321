package collect

import "github.com/perfsleuth/perfsleuth/internal/types"

// MergeSnapshots folds any number of signal snapshots into one. Later
// snapshots win on conflicting numeric keys; audit flags are OR-ed so a
// flag raised by any source stays raised.
func MergeSnapshots(snaps ...types.SignalSnapshot) types.SignalSnapshot {
	out := types.SignalSnapshot{
		Data:   map[string]float64{},
		Audits: map[string]bool{},
	}
	for _, s := range snaps {
		for k, v := range s.Data {
			out.Data[k] = v
		}
		for k, v := range s.Audits {
			if v {
				out.Audits[k] = true
			}
		}
	}
	return out
}

// MergeValues folds measured metric values, later sources winning. Field
// data should come last so real-user numbers override lab measurements.
func MergeValues(sets ...types.MetricValues) types.MetricValues {
	out := types.MetricValues{}
	for _, set := range sets {
		for m, v := range set {
			out[m] = v
		}
	}
	return out
}
