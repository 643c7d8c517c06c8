package windowctx

// Region is a user-selected capture rectangle in logical (pre-scale)
// display coordinates.
type Region struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Area returns the region's area.
func (r Region) Area() float64 {
	return r.Width * r.Height
}

// Scale converts the region to device pixels using the display scale factor.
func (r Region) Scale(factor float64) Region {
	return Region{
		X:      r.X * factor,
		Y:      r.Y * factor,
		Width:  r.Width * factor,
		Height: r.Height * factor,
	}
}

// IntersectionArea returns the area of overlap between the region and a
// window's bounding rectangle.
func (r Region) IntersectionArea(o Region) float64 {
	left := max(r.X, o.X)
	top := max(r.Y, o.Y)
	right := min(r.X+r.Width, o.X+o.Width)
	bottom := min(r.Y+r.Height, o.Y+o.Height)
	if right <= left || bottom <= top {
		return 0
	}
	return (right - left) * (bottom - top)
}

// WindowInfo is one entry of a front-to-back window enumeration snapshot.
type WindowInfo struct {
	AppName  string `json:"appName"`
	BundleID string `json:"bundleId"`
	Title    string `json:"windowTitle"`
	PID      int    `json:"pid"`
	Layer    int    `json:"layer"`
	Bounds   Region `json:"bounds"`
}

// Match is the window that correlates with a selected region. Empty string
// fields mean the enumerator could not determine the value.
type Match struct {
	AppName      string
	BundleID     string
	Title        string
	PID          int
	OverlapRatio float64
}

// Context is the attribution attached to an uploaded capture. Both fields
// are independently nullable; an unresolvable capture carries both as nil
// rather than a partial guess.
type Context struct {
	SourceApp *string `json:"sourceApp"`
	SourceURL *string `json:"sourceUrl"`
}

// NullContext is the degraded result used on timeout or no-match.
var NullContext = Context{}
