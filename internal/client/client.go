// Package client submits captured images to the access-control backend.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/andresmejia3/checkpoint/internal/types"
	"github.com/go-resty/resty/v2"
	"github.com/gorilla/schema"
	"github.com/sirupsen/logrus"
)

// Endpoint paths and multipart field names the backend expects.
const (
	RegisterPath  = "/api/register"
	RecognizePath = "/recognize"
	SnapshotPath  = "/register"

	FaceImageField = "faceImage"
	FaceImageName  = "face.jpg"
	PhotoField     = "foto"
	PhotoName      = "captura.jpg"
)

// Generic messages used when the server gives nothing better.
const (
	MsgServerError        = "server error"
	MsgRegistrationFailed = "registration failed"
)

// Options configures a Client.
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	Logger    logrus.FieldLogger
}

// Client talks to the three capture endpoints. It never retries on its own.
type Client struct {
	http    *resty.Client
	encoder *schema.Encoder
	log     logrus.FieldLogger
}

func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	rc := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetRetryCount(0)
	if opts.UserAgent != "" {
		rc.SetHeader("User-Agent", opts.UserAgent)
	}

	enc := schema.NewEncoder()
	enc.SetAliasTag("schema")

	return &Client{http: rc, encoder: enc, log: log}
}

// formFields flattens a tagged request struct into single-valued form fields.
func (c *Client) formFields(v any) (map[string]string, error) {
	values := url.Values{}
	if err := c.encoder.Encode(v, values); err != nil {
		return nil, err
	}
	fields := make(map[string]string, len(values))
	for k := range values {
		fields[k] = values.Get(k)
	}
	return fields, nil
}

// Register posts the registration form with the face image attached.
func (c *Client) Register(ctx context.Context, req types.RegistrationRequest) (types.RegisterResponse, error) {
	var out types.RegisterResponse

	fields, err := c.formFields(req)
	if err != nil {
		return out, types.Wrap(types.TransportError, MsgServerError, fmt.Errorf("encode registration form: %w", err))
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetMultipartFormData(fields).
		SetMultipartField(FaceImageField, FaceImageName, req.FaceImage.ContentType(), bytes.NewReader(req.FaceImage.Bytes())).
		Post(RegisterPath)
	if err != nil {
		c.log.WithError(err).WithField("path", RegisterPath).Error("registration request failed")
		return out, types.Wrap(types.TransportError, MsgServerError, err)
	}
	if !resp.IsSuccess() {
		c.log.WithFields(logrus.Fields{"path": RegisterPath, "status": resp.StatusCode()}).Error("registration rejected by server")
		return out, types.Wrap(types.TransportError, MsgServerError, fmt.Errorf("unexpected status %s", resp.Status()))
	}
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return out, types.Wrap(types.TransportError, MsgServerError, fmt.Errorf("decode registration response: %w", err))
	}
	if !out.Success {
		msg := out.Message
		if msg == "" {
			msg = MsgRegistrationFailed
		}
		return out, types.Errorf(types.ServerRejection, "%s", msg)
	}
	return out, nil
}

// Recognize posts one frame for identification. The backend answers errors
// with a JSON body and a 4xx/5xx status, so the body is decoded either way.
func (c *Client) Recognize(ctx context.Context, req types.RecognitionRequest) (types.RecognizeResponse, error) {
	var out types.RecognizeResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetMultipartField(PhotoField, PhotoName, req.Image.ContentType(), bytes.NewReader(req.Image.Bytes())).
		Post(RecognizePath)
	if err != nil {
		c.log.WithError(err).WithField("path", RecognizePath).Error("recognition request failed")
		return out, types.Wrap(types.TransportError, MsgServerError, err)
	}
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		c.log.WithFields(logrus.Fields{"path": RecognizePath, "status": resp.StatusCode()}).WithError(err).Error("undecodable recognition response")
		return out, types.Wrap(types.TransportError, MsgServerError, fmt.Errorf("decode recognition response (status %d): %w", resp.StatusCode(), err))
	}
	return out, nil
}

// SubmitSnapshot posts the traditional form with the frame embedded as a data
// URL in the foto field.
func (c *Client) SubmitSnapshot(ctx context.Context, form types.SnapshotForm) error {
	fields, err := c.formFields(form)
	if err != nil {
		return types.Wrap(types.TransportError, MsgServerError, fmt.Errorf("encode snapshot form: %w", err))
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(fields).
		Post(SnapshotPath)
	if err != nil {
		c.log.WithError(err).WithField("path", SnapshotPath).Error("snapshot form submission failed")
		return types.Wrap(types.TransportError, MsgServerError, err)
	}
	if resp.StatusCode() >= 400 {
		return types.Wrap(types.TransportError, MsgServerError, fmt.Errorf("unexpected status %s", resp.Status()))
	}
	return nil
}
