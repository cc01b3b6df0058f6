package quota

import "fmt"

// Message renders the human-readable denial explanation for a decision.
// The wording of both templates is a display contract; callers embed it
// verbatim in API responses. Returns "" for allowed decisions.
func Message(d Decision) string {
	switch d.LimitType {
	case LimitTypeGlobal:
		hourly := d.Global.ByName(WindowHour)
		daily := d.Global.ByName(WindowDay)
		return fmt.Sprintf("Global rate limit exceeded: %d/%d per hour or %d/%d per day",
			hourly.Used, hourly.Window.Limit, daily.Used, daily.Window.Limit)
	case LimitTypeIP:
		minute := d.Client.ByName(WindowMinute)
		hourly := d.Client.ByName(WindowHour)
		return fmt.Sprintf("IP rate limit exceeded: %d/%d per minute or %d/%d per hour",
			minute.Used, minute.Window.Limit, hourly.Used, hourly.Window.Limit)
	default:
		return ""
	}
}
