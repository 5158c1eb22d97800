// HTTP transport for the marketplace service.
//
// Mutating routes expect x-user-id and x-user-role headers forwarded by the
// Gateway after authentication.
//
// Routes:
//
//	GET    /jobs                                        → list jobs (?client=&status=&tag=)
//	POST   /jobs                                        → create job (client)
//	GET    /jobs/{id}                                   → get job
//	PUT    /jobs/{id}                                   → update job (owner)
//	DELETE /jobs/{id}                                   → delete job (owner)
//	POST   /jobs/{id}/apply                             → apply (freelancer)
//	PUT    /jobs/{id}/applicants/{applicantId}/accept   → accept applicant (owner)
//	PUT    /jobs/{id}/applicants/{applicantId}/reject   → reject applicant (owner)
//	POST   /jobs/{id}/complete                          → complete job (owner)
//	POST   /jobs/{id}/comments                          → post comment

package marketplace

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"jobmate/marketplace-service/internal/ratelimit"
)

// ─── Handler ─────────────────────────────────────────────────────────────────

// Handler exposes the Service over HTTP/JSON.
type Handler struct {
	svc     *Service
	limiter *ratelimit.Limiter
}

// NewHandler returns a Handler. limiter may be nil.
func NewHandler(svc *Service, limiter *ratelimit.Limiter) *Handler {
	return &Handler{svc: svc, limiter: limiter}
}

// RegisterRoutes mounts all marketplace routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /jobs", h.listJobs)
	mux.HandleFunc("POST /jobs", h.withIdentity(h.createJob))
	mux.HandleFunc("GET /jobs/{id}", h.getJob)
	mux.HandleFunc("PUT /jobs/{id}", h.withIdentity(h.updateJob))
	mux.HandleFunc("DELETE /jobs/{id}", h.withIdentity(h.deleteJob))
	mux.HandleFunc("POST /jobs/{id}/apply", h.withIdentity(h.apply))
	mux.HandleFunc("PUT /jobs/{id}/applicants/{applicantId}/accept", h.withIdentity(h.accept))
	mux.HandleFunc("PUT /jobs/{id}/applicants/{applicantId}/reject", h.withIdentity(h.reject))
	mux.HandleFunc("POST /jobs/{id}/complete", h.withIdentity(h.complete))
	mux.HandleFunc("POST /jobs/{id}/comments", h.withIdentity(h.postComment))
}

type identityHandler func(w http.ResponseWriter, r *http.Request, who Identity)

// withIdentity reads the forwarded identity and applies the per-user rate
// limit before calling next.
func (h *Handler) withIdentity(next identityHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		who, err := IdentityFromHeaders(r.Header)
		if err != nil {
			writeError(w, err)
			return
		}
		if ok, wait := h.limiter.Allow(who.ID, time.Now()); !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			jsonError(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		next(w, r, who)
	}
}

// IdentityFromHeaders parses x-user-id / x-user-role.
func IdentityFromHeaders(hdr http.Header) (Identity, error) {
	id := strings.TrimSpace(hdr.Get("x-user-id"))
	if id == "" {
		return Identity{}, newError(KindUnauthenticated, "missing x-user-id header")
	}
	role, err := ParseRole(strings.TrimSpace(hdr.Get("x-user-role")))
	if err != nil {
		return Identity{}, newError(KindUnauthenticated, "missing or unknown x-user-role header")
	}
	return Identity{ID: id, Role: role}, nil
}

// ─── Request bodies ──────────────────────────────────────────────────────────

type createJobBody struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Budget      float64   `json:"budget"`
	Deadline    time.Time `json:"deadline"`
	Tags        []string  `json:"tags"`
}

type updateJobBody struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Budget      *float64   `json:"budget"`
	Deadline    *time.Time `json:"deadline"`
	Tags        *[]string  `json:"tags"`
}

type commentBody struct {
	Text string `json:"text"`
}

type actionResponse struct {
	Message string `json:"message"`
	Job     *Job   `json:"job"`
}

// ─── Individual handlers ──────────────────────────────────────────────────────

func (h *Handler) listJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	jobs, err := h.svc.ListJobs(r.Context(), JobFilter{
		Client: q.Get("client"),
		Status: JobStatus(q.Get("status")),
		Tag:    q.Get("tag"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	jsonOK(w, http.StatusOK, jobs)
}

func (h *Handler) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.svc.GetJob(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	jsonOK(w, http.StatusOK, job)
}

func (h *Handler) createJob(w http.ResponseWriter, r *http.Request, who Identity) {
	var body createJobBody
	if !decodeBody(w, r, &body) {
		return
	}
	job, err := h.svc.CreateJob(r.Context(), who, JobInput(body))
	if err != nil {
		writeError(w, err)
		return
	}
	jsonOK(w, http.StatusCreated, job)
}

func (h *Handler) updateJob(w http.ResponseWriter, r *http.Request, who Identity) {
	var body updateJobBody
	if !decodeBody(w, r, &body) {
		return
	}
	job, err := h.svc.UpdateJob(r.Context(), r.PathValue("id"), who, JobPatch(body))
	if err != nil {
		writeError(w, err)
		return
	}
	jsonOK(w, http.StatusOK, job)
}

func (h *Handler) deleteJob(w http.ResponseWriter, r *http.Request, who Identity) {
	if err := h.svc.DeleteJob(r.Context(), r.PathValue("id"), who); err != nil {
		writeError(w, err)
		return
	}
	jsonOK(w, http.StatusOK, map[string]string{"message": "Job removed"})
}

func (h *Handler) apply(w http.ResponseWriter, r *http.Request, who Identity) {
	job, err := h.svc.Apply(r.Context(), r.PathValue("id"), who)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonOK(w, http.StatusOK, actionResponse{Message: "Application submitted successfully", Job: job})
}

func (h *Handler) accept(w http.ResponseWriter, r *http.Request, who Identity) {
	job, err := h.svc.Accept(r.Context(), r.PathValue("id"), r.PathValue("applicantId"), who)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonOK(w, http.StatusOK, actionResponse{Message: "Application accepted successfully", Job: job})
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request, who Identity) {
	job, err := h.svc.Reject(r.Context(), r.PathValue("id"), r.PathValue("applicantId"), who)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonOK(w, http.StatusOK, actionResponse{Message: "Application rejected successfully", Job: job})
}

func (h *Handler) complete(w http.ResponseWriter, r *http.Request, who Identity) {
	job, err := h.svc.Complete(r.Context(), r.PathValue("id"), who)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonOK(w, http.StatusOK, actionResponse{Message: "Job completed", Job: job})
}

func (h *Handler) postComment(w http.ResponseWriter, r *http.Request, who Identity) {
	var body commentBody
	if !decodeBody(w, r, &body) {
		return
	}
	c, err := h.svc.PostComment(r.Context(), r.PathValue("id"), who, body.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonOK(w, http.StatusCreated, c)
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// MaxBodyBytes caps every JSON request body.
const MaxBodyBytes = 64 << 10

// decodeBody reads at most MaxBodyBytes of JSON into v and writes the error
// response itself when that fails.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes)).Decode(v)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		jsonError(w, "request body too large", http.StatusRequestEntityTooLarge)
		return false
	}
	jsonError(w, "invalid JSON body", http.StatusBadRequest)
	return false
}

// HTTPStatus maps an error Kind to its HTTP status code.
func HTTPStatus(k Kind) int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusServiceUnavailable
	}
}

func writeError(w http.ResponseWriter, err error) {
	kind := KindOf(err)
	msg := err.Error()
	if kind == KindUnavailable {
		msg = "service unavailable"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(HTTPStatus(kind))
	json.NewEncoder(w).Encode(map[string]string{"error": msg, "code": string(kind)})
}

func jsonOK(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encode response failed", "err", err)
	}
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
