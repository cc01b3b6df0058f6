package quota

import (
	qt "quota/modules/quota"
)

// Wire shapes of the check/record/status endpoints. The field names are
// a compatibility contract with existing consumers; do not rename.
type (
	globalLimits struct {
		HourlyUsage int64 `json:"hourlyUsage"`
		DailyUsage  int64 `json:"dailyUsage"`
		HourlyLimit int64 `json:"hourlyLimit"`
		DailyLimit  int64 `json:"dailyLimit"`
	}

	ipLimits struct {
		HourlyUsage int64 `json:"hourlyUsage"`
		MinuteUsage int64 `json:"minuteUsage"`
		HourlyLimit int64 `json:"hourlyLimit"`
		MinuteLimit int64 `json:"minuteLimit"`
	}

	checkResponse struct {
		IsAllowed    bool          `json:"isAllowed"`
		LimitType    *string       `json:"limitType"`
		GlobalLimits *globalLimits `json:"globalLimits,omitempty"`
		IPLimits     *ipLimits     `json:"ipLimits,omitempty"`
		ClientIP     string        `json:"clientIP"`
		Message      string        `json:"message,omitempty"`
		Error        string        `json:"error,omitempty"`
	}

	recordResponse struct {
		Success bool   `json:"success"`
		Error   string `json:"error,omitempty"`
	}
)

func fromDecision(d qt.Decision) checkResponse {
	resp := checkResponse{
		IsAllowed: d.Allowed,
		ClientIP:  d.ClientKey,
		Message:   qt.Message(d),
		Error:     d.Err,
	}
	if d.LimitType != qt.LimitTypeNone {
		lt := string(d.LimitType)
		resp.LimitType = &lt
	}
	if len(d.Global.Windows) > 0 {
		hourly := d.Global.ByName(qt.WindowHour)
		daily := d.Global.ByName(qt.WindowDay)
		resp.GlobalLimits = &globalLimits{
			HourlyUsage: hourly.Used,
			DailyUsage:  daily.Used,
			HourlyLimit: hourly.Window.Limit,
			DailyLimit:  daily.Window.Limit,
		}
	}
	if len(d.Client.Windows) > 0 {
		minute := d.Client.ByName(qt.WindowMinute)
		hourly := d.Client.ByName(qt.WindowHour)
		resp.IPLimits = &ipLimits{
			HourlyUsage: hourly.Used,
			MinuteUsage: minute.Used,
			HourlyLimit: hourly.Window.Limit,
			MinuteLimit: minute.Window.Limit,
		}
	}
	return resp
}
