package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"zblog/internal/models"
	"zblog/internal/orchestrator"
)

// handleIndex returns basic service information
// GET / - Returns service info and available endpoints
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.sendError(w, r, "Endpoint not found", http.StatusNotFound)
		return
	}

	endpoints := map[string]string{
		"GET /":                    "This page - Service information",
		"GET /health":              "Health check endpoint",
		"GET /metrics":             "Prometheus metrics for monitoring",
		"GET /posts":               "List posts of the connected identity",
		"POST /posts":              "Create an encrypted post",
		"GET /posts/total":         "Total number of posts on the contract",
		"GET /posts/{id}":          "Public metadata of a post",
		"POST /posts/{id}/view":    "Record a view",
		"POST /posts/{id}/like":    "Record a like",
		"POST /posts/{id}/grant":   "Grant a reader access to the content",
		"GET /posts/{id}/stats":    "Decrypt view and like counters",
		"GET /posts/{id}/content":  "Decrypt and reconstruct the content",
		"GET /posts/{id}/activity": "Confirmed activity of a post",
		"GET /content/{postId}":    "Stored full content of a post",
		"GET /content/hash/{hash}": "Content lookup by hash",
	}
	if s.opts.DebugEndpoints {
		endpoints["GET /debug/content"] = "Dump every stored content record"
		endpoints["DELETE /debug/content"] = "Clear the content store"
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service":     "zblog",
		"version":     "1.0.0",
		"description": "Encrypted blog post lifecycle service",
		"contract":    s.orch.ContractAddress(),
		"signer":      s.orch.SignerAddress(),
		"endpoints":   endpoints,
	})
}

// handleHealth returns health status
// GET /health - Health check for monitoring systems
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := "healthy"
	code := http.StatusOK
	checks := make(map[string]string, len(s.opts.HealthChecks))
	for _, check := range s.opts.HealthChecks {
		if err := check.Ping(ctx); err != nil {
			checks[check.Name] = err.Error()
			status = "unhealthy"
			code = http.StatusServiceUnavailable
			continue
		}
		checks[check.Name] = "ok"
	}

	busy := map[string]bool{
		"create": s.orch.IsCreating(),
		"load":   s.orch.IsLoading(),
	}

	writeJSON(w, code, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"service":   "zblog",
		"checks":    checks,
		"busy":      busy,
	})
}

// handleMetrics returns Prometheus metrics
// GET /metrics - Prometheus scraping endpoint
func (s *Server) handleMetrics() http.Handler {
	return promhttp.Handler()
}

// =============================================================================
// POST ENDPOINTS
// =============================================================================

// handlePosts routes the post collection (without trailing slash)
func (s *Server) handlePosts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListPosts(w, r)
	case http.MethodPost:
		s.handleCreatePost(w, r)
	default:
		s.sendError(w, r, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handlePostRoutes routes post sub-endpoints (with trailing slash)
func (s *Server) handlePostRoutes(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/posts/")
	parts := strings.Split(strings.TrimSuffix(path, "/"), "/")

	// GET /posts/total
	if len(parts) == 1 && parts[0] == "total" {
		if !s.requireMethod(w, r, http.MethodGet) {
			return
		}
		s.handleTotalPosts(w, r)
		return
	}

	postID, err := orchestrator.ParsePostID(parts[0])
	if err != nil {
		s.sendServiceError(w, r, "parse_post_id", err)
		return
	}

	type route struct {
		method  string
		handler func(http.ResponseWriter, *http.Request, uint64)
	}
	var rt route
	switch {
	case len(parts) == 1:
		rt = route{http.MethodGet, s.handleGetPost}
	case len(parts) == 2 && parts[1] == "view":
		rt = route{http.MethodPost, s.handleViewPost}
	case len(parts) == 2 && parts[1] == "like":
		rt = route{http.MethodPost, s.handleLikePost}
	case len(parts) == 2 && parts[1] == "grant":
		rt = route{http.MethodPost, s.handleGrantAccess}
	case len(parts) == 2 && parts[1] == "stats":
		rt = route{http.MethodGet, s.handleDecryptStats}
	case len(parts) == 2 && parts[1] == "content":
		rt = route{http.MethodGet, s.handleDecryptContent}
	case len(parts) == 2 && parts[1] == "activity":
		rt = route{http.MethodGet, s.handleActivity}
	default:
		s.sendError(w, r, "Endpoint not found", http.StatusNotFound)
		return
	}

	if !s.requireMethod(w, r, rt.method) {
		return
	}
	rt.handler(w, r, postID)
}

func (s *Server) requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.Header().Set("Allow", method)
		s.sendError(w, r, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// handleListPosts lists the posts of the connected identity
// GET /posts
func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := s.orch.ListUserPosts(r.Context())
	cached := false
	if errors.Is(err, orchestrator.ErrBusy) {
		posts, cached, err = s.orch.Posts(), true, nil
	}
	if err != nil {
		s.sendServiceError(w, r, "list_posts", err)
		return
	}

	writeJSON(w, http.StatusOK, models.PostListResponse{
		Posts:  posts,
		Total:  len(posts),
		Cached: cached,
	})
}

// handleCreatePost creates an encrypted post
// POST /posts {"content": "...", "title": "...", "category": 1, "access_level": 0, "price": 0}
func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.CreatePostRequest
	if err := decodeBody(r, &req); err != nil {
		s.sendError(w, r, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	res, err := s.orch.CreatePost(r.Context(), req)
	if err != nil {
		s.sendServiceError(w, r, "create_post", err)
		return
	}

	writeJSON(w, http.StatusCreated, res)
}

// handleTotalPosts returns the post count of the contract
// GET /posts/total
func (s *Server) handleTotalPosts(w http.ResponseWriter, r *http.Request) {
	total, err := s.orch.TotalPosts(r.Context())
	if err != nil {
		s.sendServiceError(w, r, "total_posts", err)
		return
	}

	writeJSON(w, http.StatusOK, models.TotalPostsResponse{
		ContractAddress: s.orch.ContractAddress(),
		Total:           total,
	})
}

// handleGetPost returns the public metadata of a post
// GET /posts/{id}
func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request, postID uint64) {
	post, err := s.orch.GetPost(r.Context(), postID)
	if err != nil {
		s.sendServiceError(w, r, "get_post", err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// POST /posts/{id}/view
func (s *Server) handleViewPost(w http.ResponseWriter, r *http.Request, postID uint64) {
	res, err := s.orch.ViewPost(r.Context(), postID)
	if err != nil {
		s.sendServiceError(w, r, "view_post", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// POST /posts/{id}/like
func (s *Server) handleLikePost(w http.ResponseWriter, r *http.Request, postID uint64) {
	res, err := s.orch.LikePost(r.Context(), postID)
	if err != nil {
		s.sendServiceError(w, r, "like_post", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleGrantAccess grants a reader access to a post's content
// POST /posts/{id}/grant {"reader": "G..."}
func (s *Server) handleGrantAccess(w http.ResponseWriter, r *http.Request, postID uint64) {
	var req models.GrantAccessRequest
	if err := decodeBody(r, &req); err != nil {
		s.sendError(w, r, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	res, err := s.orch.GrantAccess(r.Context(), postID, req.Reader)
	if err != nil {
		s.sendServiceError(w, r, "grant_access", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GET /posts/{id}/stats
func (s *Server) handleDecryptStats(w http.ResponseWriter, r *http.Request, postID uint64) {
	stats, err := s.orch.DecryptStats(r.Context(), postID)
	if err != nil {
		s.sendServiceError(w, r, "decrypt_stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// GET /posts/{id}/content
func (s *Server) handleDecryptContent(w http.ResponseWriter, r *http.Request, postID uint64) {
	decrypted, err := s.orch.DecryptContent(r.Context(), postID)
	if err != nil {
		s.sendServiceError(w, r, "decrypt_content", err)
		return
	}
	writeJSON(w, http.StatusOK, decrypted)
}

// handleActivity returns the confirmed activity of a post
// GET /posts/{id}/activity?limit=50&offset=0
func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request, postID uint64) {
	if s.activity == nil {
		s.sendError(w, r, "Activity tracking disabled", http.StatusNotFound)
		return
	}

	limit, offset := pagination(r, 50)
	id := strconv.FormatUint(postID, 10)

	activities, err := s.activity.Activities(r.Context(), id, limit, offset)
	if err != nil {
		s.sendServiceError(w, r, "list_activity", err)
		return
	}
	if activities == nil {
		activities = []*models.PostActivity{}
	}

	writeJSON(w, http.StatusOK, models.ActivityListResponse{
		PostID:     id,
		Activities: activities,
		Total:      len(activities),
		Limit:      limit,
		Offset:     offset,
	})
}

// =============================================================================
// CONTENT ENDPOINTS
// =============================================================================

// handleContentRoutes serves stored content
// GET /content/{postId} and GET /content/hash/{hash}
func (s *Server) handleContentRoutes(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodGet) {
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/content/")
	parts := strings.Split(strings.TrimSuffix(path, "/"), "/")

	switch {
	case len(parts) == 2 && parts[0] == "hash":
		hash, err := strconv.ParseUint(parts[1], 10, 64)
		if err != nil {
			s.sendError(w, r, "Content hash must be an unsigned integer", http.StatusBadRequest)
			return
		}
		lookup := s.orch.Content().RetrieveByHash(r.Context(), hash)
		writeJSON(w, http.StatusOK, models.ContentLookupResponse{
			Content:     lookup.Record,
			Source:      lookup.Source.String(),
			Synthesized: lookup.Synthesized(),
		})

	case len(parts) == 1 && parts[0] != "":
		record, ok := s.orch.Content().Retrieve(r.Context(), parts[0])
		if !ok {
			s.sendError(w, r, "No stored content for post "+parts[0], http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, record)

	default:
		s.sendError(w, r, "Endpoint not found", http.StatusNotFound)
	}
}

// handleDebugContent dumps or clears the content store
// GET|DELETE /debug/content
func (s *Server) handleDebugContent(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		records, err := s.orch.Content().All(r.Context())
		if err != nil {
			s.sendServiceError(w, r, "list_content", err)
			return
		}
		if records == nil {
			records = []*models.StoredContent{}
		}
		writeJSON(w, http.StatusOK, models.ContentListResponse{Contents: records, Total: len(records)})

	case http.MethodDelete:
		if err := s.orch.Content().Clear(r.Context()); err != nil {
			s.sendServiceError(w, r, "clear_content", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		s.sendError(w, r, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
