package insert

import (
	"bytes"
	"net/http"
	"time"

	"github.com/kjk/insertrow/log"
)

// Handler serves POST requests, appending the body to the store
type Handler struct {
	Driver *Driver
	// called instead of sending a response for fatal outcomes.
	// if nil, the request is aborted with http.ErrAbortHandler
	OnFatal func(o Outcome)
}

func NewHandler(d *Driver) *Handler {
	return &Handler{
		Driver: d,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodPut {
		w.Header().Set("Allow", "POST, PUT")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	timeStart := time.Now()
	o := h.Driver.Insert(r.Body)
	LogOutcome(o, time.Since(timeStart), "ip", log.BestRemoteAddress(r))

	if o.Kind.Fatal() {
		if h.OnFatal != nil {
			h.OnFatal(o)
			return
		}
		panic(http.ErrAbortHandler)
	}

	cfg := h.Driver.Config
	var buf bytes.Buffer
	if err := RenderPage(&buf, cfg, o); err != nil {
		log.Errorf("RenderPage() failed with '%s'", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", ContentType(cfg))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
