package session

import (
	"strings"

	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/validator"
)

// ========================================
// SESSION DTOs
// ========================================

type IdentifyRequest struct {
	EmployeeCode   string `json:"employee_code"`
	DeviceTimezone string `json:"device_timezone"`
}

// NormalizedCode returns the employee code trimmed and lowercased, the form
// the backend matches against.
func (r *IdentifyRequest) NormalizedCode() string {
	return strings.ToLower(strings.TrimSpace(r.EmployeeCode))
}

func (r *IdentifyRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.EmployeeCode) {
		errs = append(errs, validator.ValidationError{
			Field:   "employee_code",
			Message: "employee_code is required",
		})
	} else if len(strings.TrimSpace(r.EmployeeCode)) > 64 {
		errs = append(errs, validator.ValidationError{
			Field:   "employee_code",
			Message: "employee_code must not exceed 64 characters",
		})
	}

	if r.DeviceTimezone != "" && !validator.IsValidTimezone(r.DeviceTimezone) {
		errs = append(errs, validator.ValidationError{
			Field:   "device_timezone",
			Message: "device_timezone must be a valid IANA timezone",
		})
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

type EmployeeResponse struct {
	ID         string  `json:"id"`
	Code       string  `json:"code"`
	Name       string  `json:"name"`
	JobTitle   string  `json:"job_title,omitempty"`
	Department string  `json:"department,omitempty"`
	BranchID   string  `json:"branch_id"`
	CompanyID  string  `json:"company_id"`
	BranchName *string `json:"branch_name,omitempty"`
	ShiftName  *string `json:"shift_name,omitempty"`
}

// NewEmployeeResponse maps a Bundle onto the identify response shape.
func NewEmployeeResponse(b Bundle) EmployeeResponse {
	resp := EmployeeResponse{
		ID:         b.Employee.ID,
		Code:       b.Employee.Code,
		Name:       b.Employee.Name,
		JobTitle:   b.Employee.JobTitle,
		Department: b.Employee.Department,
		BranchID:   b.Employee.BranchID,
		CompanyID:  b.Employee.CompanyID,
	}
	if b.Branch != nil {
		resp.BranchName = &b.Branch.Name
	}
	if b.Shift != nil {
		resp.ShiftName = &b.Shift.Name
	}
	return resp
}
