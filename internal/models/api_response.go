package models

// PostListResponse represents the posts of the connected identity
type PostListResponse struct {
	Posts []BlogPost `json:"posts"`
	Total int        `json:"total"`
	// Cached is set when a load was already running and the last result was served
	Cached bool `json:"cached,omitempty"`
}

// TotalPostsResponse represents the post count of the contract
type TotalPostsResponse struct {
	ContractAddress string `json:"contract_address"`
	Total           uint64 `json:"total"`
}

// ActivityListResponse represents the activity timeline of a post
type ActivityListResponse struct {
	PostID     string          `json:"post_id"`
	Activities []*PostActivity `json:"activities"`
	Total      int             `json:"total"`
	Limit      int             `json:"limit"`
	Offset     int             `json:"offset"`
}

// ContentLookupResponse represents a content hash lookup
type ContentLookupResponse struct {
	Content     StoredContent `json:"content"`
	Source      string        `json:"source"`
	Synthesized bool          `json:"synthesized"`
}

// ContentListResponse represents every stored content record (debug)
type ContentListResponse struct {
	Contents []*StoredContent `json:"contents"`
	Total    int              `json:"total"`
}

// GrantAccessRequest is the body of POST /posts/{id}/grant
type GrantAccessRequest struct {
	Reader string `json:"reader"`
}

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	Code      int    `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}
