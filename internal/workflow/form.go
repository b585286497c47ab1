package workflow

import (
	"strings"

	"github.com/andresmejia3/checkpoint/internal/types"
)

// Validation messages shown to the operator.
const (
	MsgIncompleteFields     = "please complete all required fields"
	MsgIncompleteBiometrics = "please complete both biometric scans"
	MsgInvalidAccessType    = "access type must be one of employee, visitor, contractor, temporary"
	MsgRegistered           = "registration successful"
	MsgCameraNotReady       = "camera is not ready"
)

// Form is the registration data typed by the operator.
type Form struct {
	FirstName  string
	LastName   string
	IDNumber   string
	Department string
	AccessType string
}

func (f Form) trimmed() Form {
	return Form{
		FirstName:  strings.TrimSpace(f.FirstName),
		LastName:   strings.TrimSpace(f.LastName),
		IDNumber:   strings.TrimSpace(f.IDNumber),
		Department: strings.TrimSpace(f.Department),
		AccessType: strings.TrimSpace(f.AccessType),
	}
}

// Validate checks the text fields only. Department is optional.
func (f Form) Validate() error {
	f = f.trimmed()
	if f.FirstName == "" || f.LastName == "" || f.IDNumber == "" || f.AccessType == "" {
		return types.Errorf(types.ValidationError, MsgIncompleteFields)
	}
	if _, ok := types.ParseAccessType(f.AccessType); !ok {
		return types.Errorf(types.ValidationError, MsgInvalidAccessType)
	}
	return nil
}

// BuildRequest validates the form, then the biometrics, and assembles the
// registration payload. Nothing is sent when it fails.
func BuildRequest(f Form, bio types.BiometricState) (types.RegistrationRequest, error) {
	if err := f.Validate(); err != nil {
		return types.RegistrationRequest{}, err
	}
	if !bio.Complete() {
		return types.RegistrationRequest{}, types.Errorf(types.ValidationError, MsgIncompleteBiometrics)
	}

	f = f.trimmed()
	access, _ := types.ParseAccessType(f.AccessType)
	return types.RegistrationRequest{
		FirstName:  f.FirstName,
		LastName:   f.LastName,
		IDNumber:   f.IDNumber,
		Department: f.Department,
		AccessType: access,
		FaceImage:  *bio.Image,
	}, nil
}
