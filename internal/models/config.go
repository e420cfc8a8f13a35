package models

type Config struct {
	Timezone        string   `json:"timezone"`
	OpeningTime     string   `json:"opening_time"` // format: "HH:MM"
	ClosingTime     string   `json:"closing_time"` // format: "HH:MM"
	TimeWindows     []string `json:"time_windows"`
	ServiceMinutes  int      `json:"service_minutes"`
	ModifyCutoffMin int      `json:"modify_cutoff_minutes"`
	ServiceTypes    []string `json:"service_types"`
	IsOpen          bool     `json:"is_open"`
}
