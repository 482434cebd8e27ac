package teatools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/trustvibe/tea/pkg/reviewstore"
	"github.com/trustvibe/tea/pkg/toolexecutor"
	"github.com/trustvibe/tea/pkg/websearch"
)

// Tool names exposed to the model
const (
	ToolSearchReviews = "search_trustvibe_reviews"
	ToolSearchWeb     = "search_web"
)

// ReviewSearcher is the review store surface the tools need
type ReviewSearcher interface {
	Search(ctx context.Context, f reviewstore.Filters) ([]reviewstore.ReviewWithService, error)
}

// WebSearcher is the web search surface the tools need
type WebSearcher interface {
	Search(ctx context.Context, query string) (websearch.Results, error)
}

// Options holds the collaborators behind the tools
type Options struct {
	Reviews ReviewSearcher
	Web     WebSearcher
	Logger  zerolog.Logger
}

// reviewProjection is the per-review shape handed back to the model
type reviewProjection struct {
	Professional string `json:"professional"`
	Category     string `json:"category"`
	Location     string `json:"location,omitempty"`
	Title        string `json:"title"`
	Review       string `json:"review"`
	Recommended  bool   `json:"recommended"`
}

// Register adds the Tea tools to the executor
func Register(executor *toolexecutor.ToolExecutor, opts Options) error {
	if executor == nil {
		return fmt.Errorf("tool executor is required")
	}
	if opts.Reviews == nil {
		return fmt.Errorf("review searcher is required")
	}
	if opts.Web == nil {
		return fmt.Errorf("web searcher is required")
	}

	err := executor.RegisterTool(toolexecutor.ToolDefinition{
		Name:        ToolSearchReviews,
		Description: "Search TrustVibe community reviews database for authentic experiences with professionals, services, and places. Use this to find real user experiences and recommendations.",
		Parameters: []toolexecutor.ToolParameter{
			{
				Name:        "query",
				Type:        "string",
				Description: `Search query (e.g., "therapist Mumbai", "Dr. Priya Sharma", "landlord experiences")`,
				Required:    true,
			},
			{
				Name:        "category",
				Type:        "string",
				Description: "Optional: Category filter (Doctor, Therapist, Lawyer, Landlord, Boss, Restaurant, Shop, Club)",
			},
		},
		Handler: searchReviewsHandler(opts.Reviews, opts.Logger),
	})
	if err != nil {
		return fmt.Errorf("failed to register %s: %w", ToolSearchReviews, err)
	}

	err = executor.RegisterTool(toolexecutor.ToolDefinition{
		Name:        ToolSearchWeb,
		Description: "Search the web for general information, recent discussions, or broader context. Use this when TrustVibe reviews are limited or when user needs general information about a topic.",
		Parameters: []toolexecutor.ToolParameter{
			{
				Name:        "query",
				Type:        "string",
				Description: `Web search query (e.g., "best therapists in Mumbai reviews", "how to choose a good doctor")`,
				Required:    true,
			},
		},
		Handler: searchWebHandler(opts.Web, opts.Logger),
	})
	if err != nil {
		return fmt.Errorf("failed to register %s: %w", ToolSearchWeb, err)
	}

	return nil
}

// searchReviewsHandler queries the review store using filters extracted
// from the query. Store failures are reported inside the payload, never as
// a handler error, so the turn keeps going.
func searchReviewsHandler(reviews ReviewSearcher, logger zerolog.Logger) toolexecutor.ToolHandler {
	return func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		query, _ := params["query"].(string)
		category, _ := params["category"].(string)

		entities := ExtractEntities(query)
		if category == "" {
			category = entities.Category
		}

		results, err := reviews.Search(ctx, reviewstore.Filters{
			Category: category,
			Name:     entities.Name,
			Location: entities.Location,
		})
		if err != nil {
			logger.Error().Err(err).Str("query", query).Msg("Review search failed")
			return marshalPayload(map[string]interface{}{
				"found": false,
				"error": "Failed to search TrustVibe database",
			})
		}

		if len(results) == 0 {
			return marshalPayload(map[string]interface{}{
				"found":   false,
				"message": "No reviews found in TrustVibe database for this query.",
			})
		}

		projections := make([]reviewProjection, 0, len(results))
		for _, r := range results {
			projections = append(projections, reviewProjection{
				Professional: r.Service.Name,
				Category:     r.Service.Category,
				Location:     r.Service.Location,
				Title:        r.Title,
				Review:       r.Content,
				Recommended:  r.Recommended,
			})
		}

		return marshalPayload(map[string]interface{}{
			"found":   true,
			"count":   len(projections),
			"reviews": projections,
		})
	}
}

// searchWebHandler runs a web search. Provider failures are reported inside
// the payload, never as a handler error.
func searchWebHandler(web WebSearcher, logger zerolog.Logger) toolexecutor.ToolHandler {
	return func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		query, _ := params["query"].(string)

		results, err := web.Search(ctx, query)
		if err != nil {
			logger.Error().Err(err).Str("query", query).Msg("Web search failed")
			return marshalPayload(map[string]interface{}{
				"error":   "Web search failed",
				"message": err.Error(),
			})
		}

		return marshalPayload(results)
	}
}

func marshalPayload(payload interface{}) (interface{}, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tool payload: %w", err)
	}
	return string(data), nil
}
