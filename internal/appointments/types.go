package appointments

import "github.com/consultare/practice-api/internal/schedule"

// SlotStatus is the lifecycle state of an appointment slot as reported by
// the scheduling service.
type SlotStatus string

const (
	StatusAvailable SlotStatus = "AVAILABLE"
	StatusBooked    SlotStatus = "BOOKED"
	StatusBlocked   SlotStatus = "BLOCKED"
)

// SlotRef is a read-only projection of an appointment slot. The scheduling
// service owns and persists the slot; this service only reads it and, during
// an override, requests a status transition.
type SlotRef struct {
	ID        string             `json:"id"`
	DoctorID  string             `json:"doctorId"`
	Date      string             `json:"date"` // YYYY-MM-DD
	StartTime schedule.ClockTime `json:"startTime"`
	EndTime   schedule.ClockTime `json:"endTime"`
	Status    SlotStatus         `json:"status"`
}

// slotPayload is the wire shape of a slot in scheduling-service responses.
type slotPayload struct {
	ID        string `json:"id"`
	DoctorID  string `json:"doctorId"`
	Date      string `json:"date"`
	StartTime string `json:"startTime"` // HH:MM
	EndTime   string `json:"endTime"`   // HH:MM
	Status    string `json:"status"`
}
