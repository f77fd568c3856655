package archiver

import "time"

// PathLayout formats a window start as the date/hour fragment of an object key.
const PathLayout = "2006_01_02/15"

// Window is one closed hour of upstream data. End is the last second of the
// hour, so consecutive windows never overlap.
type Window struct {
	Start time.Time
	End   time.Time
	Path  string
}

// StartUnix and EndUnix are the query bounds sent upstream.
func (w Window) StartUnix() int64 { return w.Start.Unix() }
func (w Window) EndUnix() int64 { return w.End.Unix() }

// WindowFor returns the hour that ended offsetHours before the top of the
// current hour. Offset 0 is the most recently completed hour.
func WindowFor(now time.Time, offsetHours int) Window {
	end := now.UTC().Truncate(time.Hour).Add(-time.Duration(offsetHours) * time.Hour)
	start := end.Add(-time.Hour)
	return Window{
		Start: start,
		End:   end.Add(-time.Second),
		Path:  start.Format(PathLayout),
	}
}

// Offsets returns 0..hours-1, newest hour first.
func Offsets(hours int) []int {
	if hours <= 0 {
		return nil
	}
	out := make([]int, hours)
	for i := range out {
		out[i] = i
	}
	return out
}

// Endpoint is a named upstream query root.
type Endpoint struct {
	Alias   string `json:"alias"`
	BaseURL string `json:"base_url"`
}

// Tuple identifies one unit of retry and failure isolation.
type Tuple struct {
	Offset int
	Alias  string
	Metric string
}
