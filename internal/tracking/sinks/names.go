package sinks

import "github.com/JakeFAU/hvac-leadsite/internal/tracking"

// standardNames maps event types onto the ad platform's standard events.
// Anything else is reported as a custom event under its own type name.
var standardNames = map[tracking.EventType]string{
	tracking.TypePageView:       "PageView",
	tracking.TypeViewContent:    "ViewContent",
	tracking.TypeLead:           "Lead",
	tracking.TypeSchedule:       "Schedule",
	tracking.TypePhoneClick:     "Contact",
	tracking.TypeLocationSearch: "FindLocation",
	tracking.TypeFormComplete:   "SubmitApplication",
}

// PlatformName returns the ad platform event name and whether it is a
// standard event.
func PlatformName(t tracking.EventType) (string, bool) {
	if name, ok := standardNames[t]; ok {
		return name, true
	}
	return string(t), false
}
