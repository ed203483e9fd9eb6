package session

import "errors"

// Session domain errors
var (
	ErrEmployeeNotFound = errors.New("employee code not found")
	ErrEmployeeInactive = errors.New("employee is not active")
	ErrCompanyMismatch  = errors.New("branch belongs to a different company")
	ErrNotIdentified    = errors.New("no employee is identified")
)
