package v1handler

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"urlrisk/pkg/audit"
	"urlrisk/pkg/domain"
	"urlrisk/pkg/serrors"
)

// MaxRequestBytes caps the size of an evaluate request body.
const MaxRequestBytes = 64 << 10

// EvaluateRequest is the body of POST /v1/evaluate.
type EvaluateRequest struct {
	URL string
}

// DecodeEvaluateRequest reads {"url": "..."} from r. Unknown fields are
// ignored; the URL is trimmed of surrounding whitespace and must not be empty.
func DecodeEvaluateRequest(r io.Reader) (*EvaluateRequest, error) {
	var (
		req  EvaluateRequest
		seen bool
	)

	d := jx.Decode(r, 512)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "url" {
			return d.Skip()
		}
		switch d.Next() {
		case jx.Null:
			return d.Null()
		case jx.String:
		default:
			return errors.New("url must be a string")
		}

		v, err := d.Str()
		if err != nil {
			return errors.Wrap(err, "decode url")
		}
		req.URL = strings.TrimSpace(v)
		seen = true

		return nil
	}); err != nil {
		return nil, serrors.Wrap(serrors.ErrBadRequest, err, "invalid JSON body")
	}

	if !seen || req.URL == "" {
		return nil, serrors.With(serrors.ErrBadRequest, "url is required")
	}

	return &req, nil
}

// EncodeDecision writes d as the evaluate response object.
func EncodeDecision(e *jx.Encoder, d *domain.Decision) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(d.ID.String()) })
		e.Field("url", func(e *jx.Encoder) { e.Str(d.URL) })
		e.Field("domain", func(e *jx.Encoder) { e.Str(d.Domain) })
		e.Field("trusted_domain", func(e *jx.Encoder) { e.Bool(d.Trusted) })
		e.Field("prediction", func(e *jx.Encoder) { e.Str(string(d.Classification)) })
		e.Field("probability_malicious", func(e *jx.Encoder) { e.Float64(d.Probability) })
		e.Field("thresholds", func(e *jx.Encoder) { audit.EncodeThresholds(e, d.Thresholds) })
		e.Field("model_version", func(e *jx.Encoder) { e.Str(d.ModelVersion) })
		e.Field("source", func(e *jx.Encoder) { e.Str(string(d.Source)) })
		e.Field("timestamp", func(e *jx.Encoder) { e.Str(d.Timestamp.UTC().Format(audit.TimestampLayout)) })
	})
}

// Evaluate classifies the URL in the request body.
func (h Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	req, err := DecodeEvaluateRequest(http.MaxBytesReader(w, r.Body, MaxRequestBytes))
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	d, err := h.deps.Engine.Decide(r.Context(), req.URL)
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { EncodeDecision(e, d) })
}
