package httpapi

import (
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vincent-petithory/dataurl"

	"github.com/entari/mjbridge/internal/service"
	"github.com/entari/mjbridge/internal/task"
)

// submitResponse mirrors service.SubmitResult on the wire. Submit endpoints
// always answer 200; the embedded code carries the outcome.
type submitResponse struct {
	Code        int            `json:"code"`
	Description string         `json:"description"`
	Result      string         `json:"result,omitempty"`
	Properties  map[string]any `json:"properties,omitempty"`
}

func toResponse(res service.SubmitResult) submitResponse {
	out := submitResponse{
		Code:        int(res.Code),
		Description: res.Description,
		Result:      res.TaskID,
	}
	if res.Code == service.CodeInQueue {
		out.Properties = map[string]any{"numberOfQueues": res.QueuePosition}
	}
	return out
}

type imagineRequest struct {
	Prompt     string `json:"prompt"`
	NotifyHook string `json:"notifyHook"`
}

func (s *Server) handleSubmitImagine(w http.ResponseWriter, r *http.Request) {
	var req imagineRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSON(w, http.StatusOK, submitResponse{
			Code:        int(service.CodeValidation),
			Description: "invalid request body",
		})
		return
	}
	respondJSON(w, http.StatusOK, toResponse(s.svc.SubmitImagine(r.Context(), req.Prompt, req.NotifyHook)))
}

type changeRequest struct {
	TaskID     string `json:"taskId"`
	Action     string `json:"action"`
	Index      int    `json:"index"`
	NotifyHook string `json:"notifyHook"`
}

func (s *Server) handleSubmitChange(w http.ResponseWriter, r *http.Request) {
	var req changeRequest
	if err := decodeJSON(r, &req); err != nil || req.TaskID == "" {
		respondJSON(w, http.StatusOK, submitResponse{
			Code:        int(service.CodeValidation),
			Description: "taskId and action are required",
		})
		return
	}
	res := s.svc.SubmitChange(r.Context(), req.TaskID, task.Action(req.Action), req.Index, req.NotifyHook)
	respondJSON(w, http.StatusOK, toResponse(res))
}

type simpleChangeRequest struct {
	Content    string `json:"content"`
	NotifyHook string `json:"notifyHook"`
}

// handleSubmitSimpleChange accepts the compact "<task id> U2" form.
func (s *Server) handleSubmitSimpleChange(w http.ResponseWriter, r *http.Request) {
	var req simpleChangeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSON(w, http.StatusOK, submitResponse{
			Code:        int(service.CodeValidation),
			Description: "invalid request body",
		})
		return
	}
	params, ok := task.ParseChange(req.Content)
	if !ok {
		respondJSON(w, http.StatusOK, submitResponse{
			Code:        int(service.CodeValidation),
			Description: "content must look like \"<task id> U2\"",
		})
		return
	}
	res := s.svc.SubmitChange(r.Context(), params.TaskID, params.Action, params.Index, req.NotifyHook)
	respondJSON(w, http.StatusOK, toResponse(res))
}

type describeRequest struct {
	Base64     string `json:"base64"`
	NotifyHook string `json:"notifyHook"`
}

// handleSubmitDescribe accepts the image as a data URL.
func (s *Server) handleSubmitDescribe(w http.ResponseWriter, r *http.Request) {
	var req describeRequest
	if err := decodeJSON(r, &req); err != nil || req.Base64 == "" {
		respondJSON(w, http.StatusOK, submitResponse{
			Code:        int(service.CodeValidation),
			Description: "base64 is required",
		})
		return
	}
	du, err := dataurl.DecodeString(req.Base64)
	if err != nil {
		respondJSON(w, http.StatusOK, submitResponse{
			Code:        int(service.CodeValidation),
			Description: "base64 must be a valid data URL",
		})
		return
	}
	contentType := du.MediaType.ContentType()
	fileName := "image" + extensionFor(contentType)
	res := s.svc.SubmitDescribe(r.Context(), fileName, contentType, du.Data, req.NotifyHook)
	respondJSON(w, http.StatusOK, toResponse(res))
}

func (s *Server) handleFetchTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, ok := s.svc.Fetch(r.Context(), id)
	if !ok {
		respondJSON(w, http.StatusNotFound, submitResponse{
			Code:        int(service.CodeNotFound),
			Description: "task not found",
		})
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	snaps, err := s.svc.List(r.Context())
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, submitResponse{
			Code:        int(service.CodeFailure),
			Description: "list tasks failed",
		})
		return
	}
	respondJSON(w, http.StatusOK, snaps)
}

func extensionFor(contentType string) string {
	exts, err := mime.ExtensionsByType(contentType)
	if err != nil || len(exts) == 0 {
		return ".png"
	}
	return exts[0]
}
