package types

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// JPEGContentType is the content type tag carried by every CapturedImage.
const JPEGContentType = "image/jpeg"

// CapturedImage is a single encoded still frame. It is created once per
// successful capture and never mutated afterwards.
type CapturedImage struct {
	data        []byte
	contentType string
	width       int
	height      int
}

// NewCapturedImage copies data so the caller cannot mutate the image later.
func NewCapturedImage(data []byte, contentType string, width, height int) CapturedImage {
	buf := make([]byte, len(data))
	copy(buf, data)
	return CapturedImage{data: buf, contentType: contentType, width: width, height: height}
}

// Bytes returns a copy of the encoded image.
func (c CapturedImage) Bytes() []byte {
	buf := make([]byte, len(c.data))
	copy(buf, c.data)
	return buf
}

func (c CapturedImage) Len() int            { return len(c.data) }
func (c CapturedImage) ContentType() string { return c.contentType }
func (c CapturedImage) Width() int          { return c.width }
func (c CapturedImage) Height() int         { return c.height }

// IsZero reports whether the image holds no data.
func (c CapturedImage) IsZero() bool { return len(c.data) == 0 }

// BiometricState tracks the two required captures of a registration.
type BiometricState struct {
	FaceCaptured        bool
	FingerprintCaptured bool
	Image               *CapturedImage
}

// Complete reports whether both captures are done and the face image is held.
func (b BiometricState) Complete() bool {
	return b.FaceCaptured && b.FingerprintCaptured && b.Image != nil && !b.Image.IsZero()
}

// AccessType is the kind of access requested for a registered person.
type AccessType string

const (
	AccessEmployee   AccessType = "employee"
	AccessVisitor    AccessType = "visitor"
	AccessContractor AccessType = "contractor"
	AccessTemporary  AccessType = "temporary"
)

// AccessTypes lists the values accepted by the registration endpoint.
var AccessTypes = []AccessType{AccessEmployee, AccessVisitor, AccessContractor, AccessTemporary}

// ParseAccessType normalizes s and checks it against AccessTypes.
func ParseAccessType(s string) (AccessType, bool) {
	a := AccessType(strings.ToLower(strings.TrimSpace(s)))
	return a, slices.Contains(AccessTypes, a)
}

// RegistrationRequest is the multipart body of POST /api/register.
type RegistrationRequest struct {
	FirstName  string        `schema:"firstName"`
	LastName   string        `schema:"lastName"`
	IDNumber   string        `schema:"idNumber"`
	Department string        `schema:"department"`
	AccessType AccessType    `schema:"accessType"`
	FaceImage  CapturedImage `schema:"-"`
}

// RecognitionRequest is the multipart body of POST /recognize.
type RecognitionRequest struct {
	Image CapturedImage
}

// SnapshotForm is the traditional form posted by the simple capture page,
// with the frame embedded as a base64 data URL.
type SnapshotForm struct {
	Name    string `schema:"nombre"`
	Email   string `schema:"email"`
	Company string `schema:"empresa"`
	Photo   string `schema:"foto"`
}

// RegisterResponse is the JSON answer of POST /api/register.
type RegisterResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// RecognizeResponse is the JSON answer of POST /recognize.
type RecognizeResponse struct {
	Accepted bool   `json:"acceso"`
	Name     string `json:"nombre,omitempty"`
	Company  string `json:"empresa,omitempty"`
	Message  string `json:"mensaje,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Reason returns the server-supplied rejection text, preferring mensaje over error.
func (r RecognizeResponse) Reason() string {
	if r.Message != "" {
		return r.Message
	}
	return r.Error
}

// Attempt is one journaled workflow outcome.
type Attempt struct {
	ID        uuid.UUID
	Workflow  string
	Outcome   string
	Subject   string
	Message   string
	CreatedAt time.Time
}
