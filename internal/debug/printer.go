package debug

import (
	"encoding/json"
	"log/slog"

	"zblog/internal/models"
)

// PrintPost prints the public metadata of a post in JSON format
func PrintPost(post *models.BlogPost) {
	jsonData, err := json.MarshalIndent(post, "", "  ")
	if err != nil {
		slog.Error("Failed to marshal post to JSON", "error", err)
		return
	}

	slog.Debug("Post details", "post_id", post.PostID, "json", string(jsonData))
}

// PrintStats prints decrypted counters in JSON format
func PrintStats(postID string, stats *models.PostStats) {
	jsonData, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		slog.Error("Failed to marshal stats to JSON", "error", err)
		return
	}

	slog.Debug("Decrypted stats", "post_id", postID, "json", string(jsonData))
}
