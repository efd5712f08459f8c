package v1handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"urlrisk/pkg/audit"
)

const infoMessage = "URL risk decision service"

// Info reports the model version and thresholds the service decides with.
func (h Handler) Info(w http.ResponseWriter, _ *http.Request) {
	info := h.deps.Engine.Info()

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("message", func(e *jx.Encoder) { e.Str(infoMessage) })
			e.Field("model_version", func(e *jx.Encoder) { e.Str(info.ModelVersion) })
			e.Field("thresholds", func(e *jx.Encoder) { audit.EncodeThresholds(e, info.Thresholds) })
		})
	})
}

// Healthz always answers {"status":"ok"} while the process serves requests.
func (h Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("status", func(e *jx.Encoder) { e.Str("ok") })
		})
	})
}
