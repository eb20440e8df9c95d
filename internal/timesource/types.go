package timesource

// envelope is the top-level Al Adhan response. Data is one day for the
// timings endpoint and an array of days for the calendar endpoints.
type envelope[T any] struct {
	Code   int    `json:"code"`
	Status string `json:"status"`
	Data   T      `json:"data"`
}

// apiDay holds one day of timings. Values may carry a zone suffix such as
// "04:58 (+06)".
type apiDay struct {
	Timings map[string]string `json:"timings"`
	Date    apiDate           `json:"date"`
}

type apiDate struct {
	Hijri     hijriDate     `json:"hijri"`
	Gregorian gregorianDate `json:"gregorian"`
}

type hijriDate struct {
	Date  string `json:"date"` // "01-09-1447"
	Day   string `json:"day"`
	Month struct {
		Number int    `json:"number"`
		En     string `json:"en"`
	} `json:"month"`
	Year string `json:"year"`
}

type gregorianDate struct {
	Date    string `json:"date"` // "01-03-2026"
	Weekday struct {
		En string `json:"en"`
	} `json:"weekday"`
}
