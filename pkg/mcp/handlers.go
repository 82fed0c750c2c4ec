package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Sriram-PR/card-directory/pkg/category"
	"github.com/Sriram-PR/card-directory/pkg/directory"
	"github.com/Sriram-PR/card-directory/pkg/models"
	"github.com/Sriram-PR/card-directory/pkg/utils"
)

const (
	defaultSearchResults = 20
	maxSearchResults     = 100
	defaultOutcomeLimit  = 20
	maxOutcomeLimit      = 500
	snippetLength        = 120
)

// handleSearchCards handles the search_cards tool
func (s *Server) handleSearchCards(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := request.GetString("query", "")
	maxResults := clamp(request.GetInt("max_results", defaultSearchResults), maxSearchResults)

	cards, err := s.cfg.Directory.Search(ctx, query)
	if err != nil {
		s.log.WithField("error_type", utils.CategorizeError(err)).Errorf("search_cards failed: %v", err)
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	total := len(cards)
	if len(cards) > maxResults {
		cards = cards[:maxResults]
	}

	results := make([]map[string]any, 0, len(cards))
	for _, card := range cards {
		entry := map[string]any{
			"id":       card.ID,
			"name":     card.Name,
			"website":  models.Deref(card.Website),
			"phone":    card.Phone,
			"email":    card.Email,
			"category": card.Category,
		}
		if desc := models.Deref(card.Description); desc != "" {
			entry["snippet"] = extractSnippet(desc, query, snippetLength)
		}
		results = append(results, entry)
	}

	return mcp.NewToolResultText(formatJSON(map[string]any{
		"query":         query,
		"results":       results,
		"total_matches": total,
		"truncated":     total > len(results),
	})), nil
}

// handleGetCard handles the get_card tool
func (s *Server) handleGetCard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := request.GetInt("id", 0)
	if id <= 0 {
		return mcp.NewToolResultError("id parameter must be a positive integer"), nil
	}

	card, err := s.cfg.Directory.GetCard(ctx, int64(id))
	if errors.Is(err, utils.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("card %d not found", id)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load card: %v", err)), nil
	}
	return mcp.NewToolResultText(formatJSON(cardMap(card))), nil
}

// handleEnqueueURLs handles the enqueue_urls tool
func (s *Server) handleEnqueueURLs(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	urls := request.GetStringSlice("urls", nil)
	if len(urls) == 0 {
		return mcp.NewToolResultError("urls parameter must be a non-empty array of strings"), nil
	}

	added := s.cfg.Crawl.Enqueue(urls)
	return mcp.NewToolResultText(formatJSON(map[string]any{
		"submitted":   len(urls),
		"added":       added,
		"skipped":     len(urls) - added,
		"queue_depth": s.cfg.Crawl.Status().QueueDepth,
	})), nil
}

// handleStartCrawl handles the start_crawl tool
func (s *Server) handleStartCrawl(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runID, err := s.cfg.Crawl.Start(s.runCtx)
	if errors.Is(err, utils.ErrAlreadyRunning) {
		st := s.cfg.Crawl.Status()
		return mcp.NewToolResultText(formatJSON(map[string]any{
			"status":  "already_running",
			"message": "A crawl is already in progress",
			"run_id":  st.RunID,
		})), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to start crawl: %v", err)), nil
	}

	return mcp.NewToolResultText(formatJSON(map[string]any{
		"status":      "started",
		"run_id":      runID,
		"queue_depth": s.cfg.Crawl.Status().QueueDepth,
		"message":     "Crawl started. Use crawl_status to check progress.",
	})), nil
}

// handleStopCrawl handles the stop_crawl tool
func (s *Server) handleStopCrawl(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stopped := s.cfg.Crawl.Stop()
	status := "stopping"
	if !stopped {
		status = "not_running"
	}
	return mcp.NewToolResultText(formatJSON(map[string]any{
		"status":      status,
		"queue_depth": s.cfg.Crawl.Status().QueueDepth,
	})), nil
}

// handleCrawlStatus handles the crawl_status tool
func (s *Server) handleCrawlStatus(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st := s.cfg.Crawl.Status()
	result := map[string]any{
		"running":     st.Running,
		"stopping":    st.Stopping,
		"queue_depth": st.QueueDepth,
		"seen_count":  st.SeenCount,
		"processed":   st.Processed,
		"saved":       st.Saved,
		"duplicates":  st.Duplicates,
		"failures":    st.Failures,
		"recorded":    st.Recorded,
	}
	if st.RunID != "" {
		result["run_id"] = st.RunID
	}
	if st.LastURL != "" {
		result["last_url"] = st.LastURL
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleClearQueue handles the clear_queue tool
func (s *Server) handleClearQueue(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	removed := s.cfg.Crawl.ClearQueue()
	return mcp.NewToolResultText(formatJSON(map[string]any{"removed": removed})), nil
}

// handleListCategories handles the list_categories tool
func (s *Server) handleListCategories(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if code := request.GetString("code", ""); code != "" {
		match, err := s.cfg.Directory.Category(code)
		if errors.Is(err, utils.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("category %q not found", code)), nil
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("category tree unavailable: %v", err)), nil
		}
		return mcp.NewToolResultText(formatJSON(map[string]any{
			"node": match.Node,
			"path": match.Path,
		})), nil
	}

	tree, err := s.cfg.Directory.CategoryTree()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("category tree unavailable: %v", err)), nil
	}

	var rendered bytes.Buffer
	if err := category.WriteTree(&rendered, tree); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to render tree: %v", err)), nil
	}

	result := map[string]any{
		"tree":      tree,
		"tree_text": rendered.String(),
	}
	if request.GetBool("include_stored", false) {
		stored, err := s.cfg.Directory.StoredCategories(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to list stored categories: %v", err)), nil
		}
		result["stored"] = stored
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleCrawlOutcomes handles the crawl_outcomes tool
func (s *Server) handleCrawlOutcomes(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if url := request.GetString("url", ""); url != "" {
		outcome, found, err := s.cfg.Crawl.LatestOutcome(url)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read outcome: %v", err)), nil
		}
		if !found {
			return mcp.NewToolResultError(fmt.Sprintf("no outcome recorded for %s", url)), nil
		}
		return mcp.NewToolResultText(formatJSON(map[string]any{"outcome": outcome})), nil
	}

	limit := clamp(request.GetInt("limit", defaultOutcomeLimit), maxOutcomeLimit)
	outcomes, err := s.cfg.Crawl.RecentOutcomes(limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read outcomes: %v", err)), nil
	}
	return mcp.NewToolResultText(formatJSON(map[string]any{
		"outcomes": outcomes,
		"count":    len(outcomes),
	})), nil
}

func cardMap(card directory.CardView) map[string]any {
	return map[string]any{
		"id":            card.ID,
		"name":          card.Name,
		"description":   models.Deref(card.Description),
		"website":       models.Deref(card.Website),
		"phone":         card.Phone,
		"email":         card.Email,
		"address":       models.Deref(card.Address),
		"qr_code":       models.Deref(card.QRCode),
		"category":      card.Category,
		"category_path": models.Deref(card.CategoryPath),
	}
}

// clamp bounds n to 1..upper; non-positive values fall back to 1
func clamp(n, upper int) int {
	return max(1, min(n, upper))
}

// extractSnippet extracts a snippet around the query match, slicing on rune
// boundaries so multi-byte UTF-8 characters are never split.
func extractSnippet(content, query string, maxLen int) string {
	runes := []rune(content)
	queryRunes := []rune(strings.ToLower(query))
	contentLowerRunes := []rune(strings.ToLower(content))

	idx := -1
	if len(queryRunes) > 0 && len(contentLowerRunes) == len(runes) {
		for i := 0; i <= len(contentLowerRunes)-len(queryRunes); i++ {
			if string(contentLowerRunes[i:i+len(queryRunes)]) == string(queryRunes) {
				idx = i
				break
			}
		}
	}

	if idx == -1 {
		if len(runes) > maxLen {
			return string(runes[:maxLen]) + "..."
		}
		return content
	}

	start := max(0, idx-maxLen/2)
	end := min(len(runes), idx+len(queryRunes)+maxLen/2)

	snippet := string(runes[start:end])
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(runes) {
		snippet = snippet + "..."
	}
	return snippet
}

// formatJSON formats data as an indented JSON string
func formatJSON(data map[string]any) string {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("{\"error\": %q}", err.Error())
	}
	return string(b)
}
