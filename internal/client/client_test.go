package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/andresmejia3/checkpoint/internal/types"
)

var fakeJPEG = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0xFF, 0xD9}

func newImage() types.CapturedImage {
	return types.NewCapturedImage(fakeJPEG, types.JPEGContentType, 1280, 720)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestRegister_SendsMultipartForm(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Method != http.MethodPost || r.URL.Path != RegisterPath {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("Not a multipart body: %v", err)
			return
		}

		want := map[string]string{
			"firstName":  "Ana",
			"lastName":   "Gomez",
			"idNumber":   "123",
			"department": "IT",
			"accessType": "visitor",
		}
		for k, v := range want {
			if got := r.FormValue(k); got != v {
				t.Errorf("Field %s = %q, want %q", k, got, v)
			}
		}

		file, hdr, err := r.FormFile(FaceImageField)
		if err != nil {
			t.Errorf("faceImage missing: %v", err)
			return
		}
		defer file.Close()
		if hdr.Filename != "face.jpg" {
			t.Errorf("Expected filename face.jpg, got %q", hdr.Filename)
		}
		if ct := hdr.Header.Get("Content-Type"); ct != "image/jpeg" {
			t.Errorf("Expected image/jpeg part, got %q", ct)
		}
		data, _ := io.ReadAll(file)
		if !bytes.Equal(data, fakeJPEG) {
			t.Error("faceImage bytes were altered in transit")
		}

		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL})
	resp, err := c.Register(context.Background(), types.RegistrationRequest{
		FirstName:  "Ana",
		LastName:   "Gomez",
		IDNumber:   "123",
		Department: "IT",
		AccessType: types.AccessVisitor,
		FaceImage:  newImage(),
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if !resp.Success {
		t.Error("Expected success response")
	}
	if calls.Load() != 1 {
		t.Errorf("Expected exactly one request, got %d", calls.Load())
	}
}

func TestRegister_Failures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind types.Kind
		wantMsg  string
	}{
		{
			name:     "Server rejection with message",
			status:   http.StatusOK,
			body:     `{"success":false,"message":"duplicate id"}`,
			wantKind: types.ServerRejection,
			wantMsg:  "duplicate id",
		},
		{
			name:     "Server rejection without message",
			status:   http.StatusOK,
			body:     `{"success":false}`,
			wantKind: types.ServerRejection,
			wantMsg:  MsgRegistrationFailed,
		},
		{
			name:     "HTTP failure",
			status:   http.StatusInternalServerError,
			body:     `{"success":false,"message":"db down"}`,
			wantKind: types.TransportError,
			wantMsg:  MsgServerError,
		},
		{
			name:     "Garbage body",
			status:   http.StatusOK,
			body:     `<html>oops</html>`,
			wantKind: types.TransportError,
			wantMsg:  MsgServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := New(Options{BaseURL: srv.URL}).Register(context.Background(), types.RegistrationRequest{
				FirstName: "Ana", LastName: "Gomez", IDNumber: "123", AccessType: types.AccessVisitor, FaceImage: newImage(),
			})
			if types.KindOf(err) != tt.wantKind {
				t.Fatalf("Expected %v, got %v", tt.wantKind, err)
			}
			if msg := types.Message(err); msg != tt.wantMsg {
				t.Errorf("Expected message %q, got %q", tt.wantMsg, msg)
			}
		})
	}
}

func TestRegister_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(Options{BaseURL: url}).Register(context.Background(), types.RegistrationRequest{FaceImage: newImage()})
	if types.KindOf(err) != types.TransportError {
		t.Fatalf("Expected TransportError, got %v", err)
	}
}

func TestRecognize(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    types.RecognizeResponse
		wantErr bool
	}{
		{
			name:   "Accepted",
			status: http.StatusOK,
			body:   `{"acceso":true,"nombre":"Luis","empresa":"ACME"}`,
			want:   types.RecognizeResponse{Accepted: true, Name: "Luis", Company: "ACME"},
		},
		{
			name:   "Not recognized",
			status: http.StatusOK,
			body:   `{"acceso":false,"mensaje":"not found"}`,
			want:   types.RecognizeResponse{Message: "not found"},
		},
		{
			name:   "Error body on 400",
			status: http.StatusBadRequest,
			body:   `{"acceso":false,"error":"No se recibió imagen"}`,
			want:   types.RecognizeResponse{Error: "No se recibió imagen"},
		},
		{
			name:    "Non JSON 502",
			status:  http.StatusBadGateway,
			body:    "bad gateway",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != RecognizePath {
					t.Errorf("Unexpected path %s", r.URL.Path)
				}
				file, hdr, err := r.FormFile(PhotoField)
				if err != nil {
					t.Errorf("foto missing: %v", err)
					return
				}
				file.Close()
				if hdr.Filename != "captura.jpg" || hdr.Header.Get("Content-Type") != "image/jpeg" {
					t.Errorf("Unexpected part header: %q %q", hdr.Filename, hdr.Header.Get("Content-Type"))
				}
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			got, err := New(Options{BaseURL: srv.URL}).Recognize(context.Background(), types.RecognitionRequest{Image: newImage()})
			if (err != nil) != tt.wantErr {
				t.Fatalf("Recognize() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if types.KindOf(err) != types.TransportError {
					t.Errorf("Expected TransportError, got %v", err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("Recognize() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSubmitSnapshot_SendsDataURLField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
			t.Errorf("Expected urlencoded form, got %q", ct)
		}
		r.ParseForm()
		if r.PostFormValue("nombre") != "Luis" || r.PostFormValue("email") != "luis@example.com" || r.PostFormValue("empresa") != "ACME" {
			t.Errorf("Unexpected form: %v", r.PostForm)
		}
		if !strings.HasPrefix(r.PostFormValue("foto"), "data:image/jpeg;base64,") {
			t.Errorf("foto is not a data URL: %.30s", r.PostFormValue("foto"))
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := New(Options{BaseURL: srv.URL}).SubmitSnapshot(context.Background(), types.SnapshotForm{
		Name:    "Luis",
		Email:   "luis@example.com",
		Company: "ACME",
		Photo:   "data:image/jpeg;base64,/9j/2Q==",
	})
	if err != nil {
		t.Fatalf("SubmitSnapshot failed: %v", err)
	}
}

func TestSubmitSnapshot_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := New(Options{BaseURL: srv.URL}).SubmitSnapshot(context.Background(), types.SnapshotForm{Name: "x"})
	if types.KindOf(err) != types.TransportError {
		t.Fatalf("Expected TransportError, got %v", err)
	}
}
