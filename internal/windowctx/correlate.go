package windowctx

// OverlapThreshold is the fraction of the selected region a window must
// cover to win outright.
const OverlapThreshold = 0.25

// Correlate picks the owning window for a selected region from a
// front-to-back enumeration snapshot. The first (frontmost) normal-layer
// window covering at least the threshold wins; failing that, the frontmost
// window with any overlap is used; no overlap at all means no match. The
// threshold favors precision over a sliver of overlap while still returning
// a best guess. Windows owned by excludeApp are never considered, so the
// selection overlay cannot attribute a capture to the capturing app itself.
func Correlate(region Region, windows []WindowInfo, excludeApp string) *Match {
	selArea := region.Area()
	if selArea <= 0 {
		return nil
	}

	var fallback *Match
	for _, w := range windows {
		if w.Layer != 0 {
			continue
		}
		if w.AppName == "" || w.AppName == excludeApp {
			continue
		}

		overlap := region.IntersectionArea(w.Bounds)
		if overlap <= 0 {
			continue
		}
		ratio := overlap / selArea

		m := &Match{
			AppName:      w.AppName,
			BundleID:     w.BundleID,
			Title:        w.Title,
			PID:          w.PID,
			OverlapRatio: ratio,
		}
		if ratio >= OverlapThreshold {
			return m
		}
		if fallback == nil {
			fallback = m
		}
	}
	return fallback
}
