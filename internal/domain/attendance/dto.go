package attendance

import (
	"time"

	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/validator"
)

// ========================================
// ATTENDANCE DTOs
// ========================================

// SampleRequest is a location fix pushed by the device UI.
type SampleRequest struct {
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	AccuracyMeters float64 `json:"accuracy_meters"`
	CapturedAt     string  `json:"captured_at"` // RFC3339, optional
	Mocked         bool    `json:"mocked"`
}

func (r *SampleRequest) Validate() error {
	var errs validator.ValidationErrors

	if r.Latitude < -90 || r.Latitude > 90 {
		errs = append(errs, validator.ValidationError{
			Field:   "latitude",
			Message: "latitude must be between -90 and 90",
		})
	}

	if r.Longitude < -180 || r.Longitude > 180 {
		errs = append(errs, validator.ValidationError{
			Field:   "longitude",
			Message: "longitude must be between -180 and 180",
		})
	}

	if r.AccuracyMeters < 0 {
		errs = append(errs, validator.ValidationError{
			Field:   "accuracy_meters",
			Message: "accuracy_meters must not be negative",
		})
	}

	if r.CapturedAt != "" {
		if _, err := time.Parse(time.RFC3339, r.CapturedAt); err != nil {
			errs = append(errs, validator.ValidationError{
				Field:   "captured_at",
				Message: "captured_at must be RFC3339",
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

// ToSample converts the request into a LocationSample, defaulting the
// capture timestamp to now when the device did not send one.
func (r *SampleRequest) ToSample(now time.Time) LocationSample {
	capturedAt := now
	if r.CapturedAt != "" {
		if t, err := time.Parse(time.RFC3339, r.CapturedAt); err == nil {
			capturedAt = t
		}
	}
	return LocationSample{
		Latitude:       r.Latitude,
		Longitude:      r.Longitude,
		AccuracyMeters: r.AccuracyMeters,
		CapturedAt:     capturedAt,
		ProviderMocked: r.Mocked,
	}
}

// SensorErrorRequest reports a sensing failure from the device UI.
type SensorErrorRequest struct {
	Kind string `json:"kind"`
}

func (r *SensorErrorRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.Kind) {
		errs = append(errs, validator.ValidationError{
			Field:   "kind",
			Message: "kind is required",
		})
	}

	switch r.Kind {
	case "", "permission_pending", "permission_denied", "unavailable", "timeout":
	default:
		errs = append(errs, validator.ValidationError{
			Field:   "kind",
			Message: "kind must be one of permission_pending, permission_denied, unavailable, timeout",
		})
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

// CheckInSubmission is the payload sent to the backend of record on check-in.
type CheckInSubmission struct {
	EmployeeID     string
	CompanyID      string
	Sample         LocationSample
	DeviceTimezone string
}

// CheckOutSubmission closes an open record.
type CheckOutSubmission struct {
	RecordID  string
	CompanyID string
	Sample    LocationSample
	Timestamp time.Time
}

// RecordResponse is the wire representation of a Record.
type RecordResponse struct {
	ID                string   `json:"id"`
	EmployeeID        string   `json:"employee_id"`
	Date              string   `json:"date"`
	CheckInTime       *string  `json:"check_in_time,omitempty"`
	CheckOutTime      *string  `json:"check_out_time,omitempty"`
	CheckInLatitude   *float64 `json:"check_in_latitude,omitempty"`
	CheckInLongitude  *float64 `json:"check_in_longitude,omitempty"`
	CheckOutLatitude  *float64 `json:"check_out_latitude,omitempty"`
	CheckOutLongitude *float64 `json:"check_out_longitude,omitempty"`
	Timezone          string   `json:"timezone,omitempty"`
}

// NewRecordResponse maps a Record onto its wire shape.
func NewRecordResponse(r Record) RecordResponse {
	format := func(t *time.Time) *string {
		if t == nil {
			return nil
		}
		s := t.Format("2006-01-02 15:04:05")
		return &s
	}
	return RecordResponse{
		ID:                r.ID,
		EmployeeID:        r.EmployeeID,
		Date:              r.Date.Format("2006-01-02"),
		CheckInTime:       format(r.CheckIn),
		CheckOutTime:      format(r.CheckOut),
		CheckInLatitude:   r.CheckInLatitude,
		CheckInLongitude:  r.CheckInLongitude,
		CheckOutLatitude:  r.CheckOutLatitude,
		CheckOutLongitude: r.CheckOutLongitude,
		Timezone:          r.Timezone,
	}
}
