package domain

// DailyUsage aggregates generation activity for a single UTC day.
type DailyUsage struct {
	Day          string
	Generated    int
	Failed       int
	ImagesStored int
}
