package reconcile

import (
	"fmt"
	"time"

	"station-review/internal/models"
)

var epoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// day returns midnight of day n of 2024 (day(1) is Jan 1)
func day(n int) time.Time {
	return epoch.AddDate(0, 0, n-1)
}

func ptr[T any](v T) *T {
	return &v
}

func equipment() models.Equipment {
	return models.Equipment{
		ReceiverCode:     "TRIMBLE NETR9",
		ReceiverSerial:   "5035K69749",
		ReceiverFirmware: "5.22",
		AntennaCode:      "TRM59800.00",
		AntennaSerial:    "1441031450",
		AntennaHeight:    "0.0000",
		AntennaNorth:     "0.0000",
		AntennaEast:      "0.0000",
		HeightCode:       "DHARP",
		RadomeCode:       "SCIS",
	}
}

// interval builds station info [start, end); a zero end means open
func interval(id int64, start, end time.Time) models.StationInfoInterval {
	iv := models.StationInfoInterval{
		ID:          id,
		NetworkCode: "igs",
		StationCode: "braz",
		DateStart:   start,
		Equipment:   equipment(),
	}
	if !end.IsZero() {
		iv.DateEnd = ptr(end)
	}
	return iv
}

// rinex builds a daily RINEX record starting at start
func rinex(id int64, start time.Time) models.RinexObservation {
	return models.RinexObservation{
		ID:               id,
		NetworkCode:      "igs",
		StationCode:      "braz",
		Filename:         fmt.Sprintf("braz%03d0.%02do", start.YearDay(), start.Year()%100),
		ObservationSTime: start,
		ObservationETime: start.Add(24*time.Hour - 30*time.Second),
		ObservationYear:  start.Year(),
		ObservationDOY:   start.YearDay(),
		ObservationFYear: float64(start.Year()) + float64(start.YearDay()-1)/366,
		Completion:       1,
		Equipment:        equipment(),
	}
}

// dailyRinex builds n consecutive daily records from day first
func dailyRinex(firstID int64, first, n int) []models.RinexObservation {
	out := make([]models.RinexObservation, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, rinex(firstID+int64(i), day(first+i)))
	}
	return out
}

func rowIDs(rows []Row) []int64 {
	ids := make([]int64, len(rows))
	for i, r := range rows {
		ids[i] = r.Rinex.ID
	}
	return ids
}
