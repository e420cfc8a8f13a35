package models

import (
	"time"
)

type BookingState string

const (
	StateQueued     BookingState = "queued"
	StatePending    BookingState = "pending"
	StateConfirmed  BookingState = "confirmed"
	StateInProgress BookingState = "in_progress"
	StateCompleted  BookingState = "completed"
	StateCancelled  BookingState = "cancelled"
)

// SeatHoldingStates are the states that consume an advisor seat in a slot.
var SeatHoldingStates = []BookingState{StatePending, StateConfirmed, StateInProgress}

// HoldsSeat reports whether a booking in this state counts against slot capacity.
func (s BookingState) HoldsSeat() bool {
	return s == StatePending || s == StateConfirmed || s == StateInProgress
}

func (s BookingState) IsTerminal() bool {
	return s == StateCompleted || s == StateCancelled
}

// Assignment tags how the advisor on a booking was chosen.
type Assignment string

const (
	AssignmentNone            Assignment = ""
	AssignmentMatched         Assignment = "matched"
	AssignmentManagerOverride Assignment = "manager_override"
)

// SlotKey is the unit of capacity accounting: a calendar date plus a time window.
type SlotKey struct {
	Date   string `json:"date"`        // format: "2006-01-02"
	Window string `json:"time_window"` // format: "09:00-10:00"
}

func (k SlotKey) String() string {
	return k.Date + "/" + k.Window
}

type Vehicle struct {
	Make        string `json:"make"`
	Model       string `json:"model"`
	PlateNumber string `json:"plate_number"`
	Year        int    `json:"year,omitempty"`
}

type Booking struct {
	ID                   string       `json:"id"`
	CustomerID           string       `json:"customer_id"`
	AdvisorID            string       `json:"advisor_id,omitempty"`
	Assignment           Assignment   `json:"assignment,omitempty"`
	ServiceType          ServiceType  `json:"service_type"`
	Vehicle              Vehicle      `json:"vehicle"`
	Notes                string       `json:"notes,omitempty"`
	Slot                 SlotKey      `json:"slot"`
	State                BookingState `json:"state"`
	QueuePosition        int          `json:"queue_position,omitempty"`
	EstimatedServiceTime *time.Time   `json:"estimated_service_time,omitempty"`
	ModifiableUntil      time.Time    `json:"modifiable_until"`
	EnqueuedAt           *time.Time   `json:"enqueued_at,omitempty"`
	CreatedAt            time.Time    `json:"created_at"`
	UpdatedAt            time.Time    `json:"updated_at"`
}

// IsActive is true for queued and seat-holding bookings.
func (b Booking) IsActive() bool {
	return !b.State.IsTerminal()
}

/*
|--------------------------------------------------------------------------
| REQUEST
|--------------------------------------------------------------------------
*/

type CreateBookingRequest struct {
	CustomerID  string  `json:"customer_id" validate:"omitempty"`
	ServiceType string  `json:"service_type" validate:"required"`
	Vehicle     Vehicle `json:"vehicle" validate:"required"`
	Date        string  `json:"date" validate:"required"`
	TimeWindow  string  `json:"time_window" validate:"required"`
	Notes       string  `json:"notes" validate:"omitempty,max=500"`
}

type AssignAdvisorRequest struct {
	AdvisorID string `json:"advisor_id" validate:"required"`
}

type DrainQueueRequest struct {
	Date       string `json:"date" validate:"required"`
	TimeWindow string `json:"time_window" validate:"required"`
}

/*
|--------------------------------------------------------------------------
| RESPONSE DTO
|--------------------------------------------------------------------------
*/

type SlotAvailability struct {
	TimeWindow        string `json:"time_window"`
	IsAvailable       bool   `json:"is_available"`
	AdvisorsAssigned  int    `json:"advisors_assigned"`
	AdvisorsAvailable int    `json:"advisors_available"`
	TotalAdvisors     int    `json:"total_advisors"`
	QueueLength       int    `json:"queue_length"`
}

type QueueInfo struct {
	Slot                 SlotKey   `json:"slot"`
	QueueLength          int       `json:"queue_length"`
	AdvisorsAvailable    int       `json:"advisors_available"`
	QueuedEntries        []Booking `json:"queued_entries"`
	EstimatedWaitMinutes int       `json:"estimated_wait_minutes"`
}
