package domain

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// RegistrationState is the closed set of results a registration request can end in.
type RegistrationState int

const (
	Registered RegistrationState = iota
	InvalidUserOrPass
	Blocked
	InvalidToken
	InvalidUsername
	InvalidPassword
	InvalidPasswordVerification
	UserExists
	InternalError
)

var stateNames = [...]string{
	Registered:                  "REGISTERED",
	InvalidUserOrPass:           "INVALID_USER_OR_PASS",
	Blocked:                     "BLOCKED",
	InvalidToken:                "INVALID_TOKEN",
	InvalidUsername:             "INVALID_USERNAME",
	InvalidPassword:             "INVALID_PASSWORD",
	InvalidPasswordVerification: "INVALID_PASSWORD_VERIFICATION",
	UserExists:                  "USER_EXISTS",
	InternalError:               "INTERNAL_ERROR",
}

func (s RegistrationState) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("RegistrationState(%d)", int(s))
	}
	return stateNames[s]
}

func (s RegistrationState) MarshalJSON() ([]byte, error) {
	if s < 0 || int(s) >= len(stateNames) {
		return nil, fmt.Errorf("unknown registration state %d", int(s))
	}
	return json.Marshal(stateNames[s])
}

// HTTPStatus maps a state to the status code the bridge answers with.
func (s RegistrationState) HTTPStatus() int {
	switch s {
	case UserExists:
		return http.StatusUnprocessableEntity
	case InternalError:
		return http.StatusInternalServerError
	default:
		return http.StatusOK
	}
}

// RegistrationRequest holds the form fields of one inbound call.
type RegistrationRequest struct {
	Username             string
	Password             string
	PasswordConfirmation string
	Token                string
}

// Outcome is what the bridge reports back for a request. Username is echoed
// as submitted, even when it was rejected.
type Outcome struct {
	State    RegistrationState `json:"registrationState"`
	Username string            `json:"username"`
}
