package sehri

import (
	"fmt"
	"strconv"
)

// IftarReminderMessage builds the localized notification for an iftar
// reminder fired leadMinutes before iftar.
func IftarReminderMessage(locale Locale, leadMinutes int, iftar TimeOfDay) Message {
	display, err := Format12Hour(iftar, locale)
	if err != nil {
		display = string(iftar)
	}
	if locale == LocaleBangla {
		return Message{
			Title: "ইফতারের সময় হয়ে এসেছে!",
			Body:  fmt.Sprintf("%s মিনিটের মধ্যে ইফতার (%s)", LocalizeDigits(strconv.Itoa(leadMinutes), locale), display),
		}
	}
	return Message{
		Title: "Iftar Time Approaching!",
		Body:  fmt.Sprintf("Iftar in %d minutes (%s)", leadMinutes, display),
	}
}

// CountdownCaption is the human label for a countdown target.
func CountdownCaption(label CountdownLabel, locale Locale) string {
	switch {
	case label == TowardSunset && locale == LocaleBangla:
		return "ইফতার বাকি"
	case label == TowardSunset:
		return "Time until Iftar"
	case locale == LocaleBangla:
		return "সেহরি বাকি"
	default:
		return "Time until Sehri"
	}
}
