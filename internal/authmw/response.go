package authmw

import (
	"encoding/json"
	"net/http"

	"github.com/mcpkit/mcpserver/internal/apierr"
	"github.com/mcpkit/mcpserver/internal/config"
)

// errorBody is the JSON envelope written for a rejected request. Field
// names match spec section 7's errorCode/actionTaken vocabulary so a
// client can decide to refresh, re-authorize, or surface the failure.
type errorBody struct {
	Error            string            `json:"error"`
	ErrorDescription string            `json:"error_description,omitempty"`
	ErrorCode        string            `json:"errorCode,omitempty"`
	ActionTaken      string            `json:"actionTaken,omitempty"`
	Guidance         string            `json:"guidance,omitempty"`
	Fields           map[string]string `json:"fields,omitempty"`
}

func writeError(w http.ResponseWriter, cfg config.AuthConfig, e *apierr.Error) {
	if challenge := e.WWWAuthenticate(); challenge != "" {
		w.Header().Set("WWW-Authenticate", challenge)
	}
	for header, value := range cfg.ErrorCustomHeaders {
		w.Header().Set(header, value)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Status)

	body := errorBody{
		Error:       e.Code,
		ErrorCode:   e.Code,
		ActionTaken: e.ActionTaken,
	}
	if cfg.ErrorIncludeDetails {
		body.ErrorDescription = e.Message
		body.Fields = e.Fields
	}
	if cfg.ErrorIncludeGuidance {
		body.Guidance = e.Guidance
	}
	_ = json.NewEncoder(w).Encode(body)
}
