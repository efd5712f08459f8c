package audit

import (
	"time"

	"github.com/go-faster/jx"

	"urlrisk/pkg/domain"
)

// TimestampLayout is the layout of every timestamp written to the audit log.
const TimestampLayout = time.RFC3339Nano

// EncodeRecord writes rec as a single JSON object. Strings are written as
// UTF-8; non-ASCII characters are not escaped.
func EncodeRecord(e *jx.Encoder, rec domain.AuditRecord) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(rec.ID.String()) })
		e.Field("timestamp", func(e *jx.Encoder) { e.Str(rec.Timestamp.UTC().Format(TimestampLayout)) })
		e.Field("client_ip", func(e *jx.Encoder) {
			if rec.Caller == "" {
				e.Null()

				return
			}
			e.Str(rec.Caller)
		})
		e.Field("url", func(e *jx.Encoder) { e.Str(rec.URL) })
		e.Field("domain", func(e *jx.Encoder) { e.Str(rec.Domain) })
		e.Field("prediction", func(e *jx.Encoder) { e.Str(string(rec.Classification)) })
		e.Field("probability_malicious", func(e *jx.Encoder) { e.Float64(rec.Probability) })
		e.Field("trusted_domain", func(e *jx.Encoder) { e.Bool(rec.Trusted) })
		e.Field("thresholds", func(e *jx.Encoder) { EncodeThresholds(e, rec.Thresholds) })
		e.Field("model_version", func(e *jx.Encoder) { e.Str(rec.ModelVersion) })
		e.Field("source", func(e *jx.Encoder) { e.Str(string(rec.Source)) })
	})
}

// EncodeThresholds writes the {"safe","malicious"} object shared by audit
// records and API responses.
func EncodeThresholds(e *jx.Encoder, t domain.Thresholds) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("safe", func(e *jx.Encoder) { e.Float64(t.Safe) })
		e.Field("malicious", func(e *jx.Encoder) { e.Float64(t.Malicious) })
	})
}

// Line returns rec encoded as one newline-terminated JSON line.
func Line(rec domain.AuditRecord) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	EncodeRecord(e, rec)
	out := make([]byte, 0, len(e.Bytes())+1)
	out = append(out, e.Bytes()...)

	return append(out, '\n')
}
