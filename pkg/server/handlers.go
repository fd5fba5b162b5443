package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	cachepkg "github.com/opsbridge-ai/opsbridge/pkg/cache/sqlite"
	"github.com/opsbridge-ai/opsbridge/pkg/inference"
	"github.com/opsbridge-ai/opsbridge/pkg/models"
	"github.com/opsbridge-ai/opsbridge/pkg/sshexec"
)

const maxUploadBytes = 32 << 20

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		respondError(w, http.StatusBadRequest, errors.New("prompt is required"))
		return
	}

	model := req.Model
	if model == "" {
		model = s.cfg.Inference.DefaultModel
	}

	genReq := inference.GenerateRequest{Model: model, Prompt: req.Prompt}
	start := time.Now()
	reqID := middleware.GetReqID(r.Context())

	if req.Stream {
		stats, err := s.llm.Stream(r.Context(), genReq, w)
		if err != nil && stats == nil {
			// Nothing was written yet; a normal error reply still fits.
			s.metrics.UpstreamErrors.Inc()
			s.respondUpstreamError(w, err)
			s.record(reqID, "/api/chat", model, "", req.Prompt, "", upstreamStatus(err), nil, start)
			return
		}
		if err != nil {
			// Bytes already flowed; terminating the stream is all we can do.
			s.logger.Warn("stream aborted", zap.String("model", model), zap.Error(err))
		}
		s.record(reqID, "/api/chat", statsModel(stats, model), "", req.Prompt, "", http.StatusOK, statsUsage(stats), start)
		return
	}

	var hash string
	if s.cache != nil {
		hash = cachepkg.HashPrompt(model, req.Prompt)
		if cached, ok := s.cache.Get(hash, model); ok {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Opsbridge-Cache", "hit")
			_, _ = w.Write(cached)
			return
		}
	}

	resp, err := s.llm.Generate(r.Context(), genReq)
	if err != nil {
		s.metrics.UpstreamErrors.Inc()
		s.respondUpstreamError(w, err)
		s.record(reqID, "/api/chat", model, "", req.Prompt, "", upstreamStatus(err), nil, start)
		return
	}

	out := models.ChatResponse{
		Model: model,
		Reply: resp.Response,
		Usage: usageCounts(resp.PromptEvalCount, resp.EvalCount),
	}
	if resp.Model != "" {
		out.Model = resp.Model
	}

	body, err := json.Marshal(out)
	if err != nil {
		respondError(w, http.StatusInternalServerError, errors.New("encode reply"))
		return
	}
	if s.cache != nil {
		_ = s.cache.Put(hash, model, body)
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Opsbridge-Cache", "miss")
	_, _ = w.Write(body)

	s.record(reqID, "/api/chat", out.Model, "", req.Prompt, string(body), http.StatusOK, out.Usage, start)
}

func (s *Server) handleVision(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, errors.New("invalid multipart form"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, errors.New("file field is required"))
		return
	}
	defer file.Close()

	prompt := strings.TrimSpace(r.FormValue("prompt"))
	if prompt == "" {
		respondError(w, http.StatusBadRequest, errors.New("prompt field is required"))
		return
	}
	model := r.FormValue("model")
	if model == "" {
		model = s.cfg.Inference.DefaultModel
	}

	art, err := s.store.Save(header.Filename, file)
	if err != nil {
		s.logger.Error("store upload failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, errors.New("could not store upload"))
		return
	}
	s.metrics.ArtifactsStored.Inc()

	// The artifact is consumed by exactly this request: release it on
	// every exit path, upstream failure included.
	defer func() {
		if err := s.store.Release(art); err == nil {
			s.metrics.ArtifactsReleased.Inc()
		}
	}()

	data, err := s.store.Read(art)
	if err != nil {
		s.logger.Error("read upload failed", zap.String("artifact", art.ID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, errors.New("could not read upload"))
		return
	}

	start := time.Now()
	reqID := middleware.GetReqID(r.Context())
	genReq := inference.GenerateRequest{
		Model:  model,
		Prompt: prompt,
		Images: []string{base64.StdEncoding.EncodeToString(data)},
	}

	resp, err := s.llm.Generate(r.Context(), genReq)
	if err != nil {
		s.metrics.UpstreamErrors.Inc()
		s.respondUpstreamError(w, err)
		s.record(reqID, "/api/vision", model, "", prompt, "", upstreamStatus(err), nil, start)
		return
	}

	out := models.ChatResponse{
		Model: model,
		Reply: resp.Response,
		Usage: usageCounts(resp.PromptEvalCount, resp.EvalCount),
	}
	if resp.Model != "" {
		out.Model = resp.Model
	}
	respondJSON(w, http.StatusOK, out)

	s.record(reqID, "/api/vision", out.Model, "", prompt, out.Reply, http.StatusOK, out.Usage, start)
}

func (s *Server) handleSSH(w http.ResponseWriter, r *http.Request) {
	var req models.ExecRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}
	if req.Host == "" || req.Username == "" || req.Command == "" {
		respondError(w, http.StatusBadRequest, errors.New("host, username and command are required"))
		return
	}

	start := time.Now()
	reqID := middleware.GetReqID(r.Context())

	out, err := s.runner.Run(r.Context(), sshexec.Command{
		Host:     req.Host,
		User:     req.Username,
		Password: req.Password,
		Command:  req.Command,
	})
	if err != nil {
		// One generic category for auth and execution failures alike.
		respondError(w, http.StatusBadGateway, sshexec.ErrRemoteFailed)
		s.record(reqID, "/api/ssh", "", req.Host, "", "", http.StatusBadGateway, nil, start)
		return
	}

	respondJSON(w, http.StatusOK, models.ExecResponse{Output: out})
	s.record(reqID, "/api/ssh", "", req.Host, "", "", http.StatusOK, nil, start)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if strings.TrimSpace(query) == "" {
		respondError(w, http.StatusBadRequest, errors.New("q parameter is required"))
		return
	}

	results, err := s.search.Search(r.Context(), query)
	if err != nil {
		respondError(w, http.StatusBadGateway, errors.New("search failed"))
		return
	}

	respondJSON(w, http.StatusOK, models.SearchResponse{Query: query, Results: results})
}

func (s *Server) respondUpstreamError(w http.ResponseWriter, err error) {
	if errors.Is(err, inference.ErrUnreachable) {
		respondError(w, http.StatusServiceUnavailable, errors.New("inference server unavailable"))
		return
	}
	respondError(w, http.StatusBadGateway, errors.New("inference request failed"))
}

func upstreamStatus(err error) int {
	if errors.Is(err, inference.ErrUnreachable) {
		return http.StatusServiceUnavailable
	}
	return http.StatusBadGateway
}

// record persists usage and audit trails for one handled request. The
// ssh route never passes bodies here, so credentials stay out of the
// audit log.
func (s *Server) record(reqID, route, model, remoteHost, reqBody, respBody string, status int, u *models.Usage, start time.Time) {
	now := time.Now().UTC()

	if s.usage != nil && u != nil {
		_ = s.usage.Record(context.Background(), models.UsageRecord{
			Model:            model,
			Route:            route,
			PromptTokens:     u.PromptTokens,
			CompletionTokens: u.CompletionTokens,
			TotalTokens:      u.TotalTokens,
			CreatedAt:        now,
		})
	}

	if s.audit != nil {
		entry := models.AuditEntry{
			RequestID:    reqID,
			Route:        route,
			Model:        model,
			RemoteHost:   remoteHost,
			RequestBody:  reqBody,
			ResponseBody: respBody,
			StatusCode:   status,
			LatencyMs:    time.Since(start).Milliseconds(),
			CreatedAt:    now,
		}
		if u != nil {
			entry.PromptTokens = u.PromptTokens
			entry.CompletionTokens = u.CompletionTokens
			entry.TotalTokens = u.TotalTokens
		}
		go func() {
			if err := s.audit.Log(context.Background(), entry); err != nil {
				s.logger.Warn("audit log failed", zap.Error(err))
			}
		}()
	}
}

func usageCounts(prompt, completion int) *models.Usage {
	if prompt == 0 && completion == 0 {
		return nil
	}
	return &models.Usage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
	}
}

func statsUsage(st *inference.StreamStats) *models.Usage {
	if st == nil {
		return nil
	}
	return usageCounts(st.PromptEvalCount, st.EvalCount)
}

func statsModel(st *inference.StreamStats, fallback string) string {
	if st != nil && st.Model != "" {
		return st.Model
	}
	return fallback
}
