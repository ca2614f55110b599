// Package agent holds the LLM-backed researcher and planner.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/travel-planner/internal/client"
	"github.com/kjstillabower/travel-planner/internal/models"
	"github.com/kjstillabower/travel-planner/internal/observability"
)

const (
	// DefaultSearchTerms is how many queries the researcher issues.
	DefaultSearchTerms = 3
	// DefaultTopResults is how many results the researcher keeps.
	DefaultTopResults = 10
)

// ErrNoResearch is returned when every search failed or came back empty.
var ErrNoResearch = errors.New("no research results")

// Researcher turns a trip request into search terms, searches each, and asks the
// model to keep the most relevant results.
type Researcher struct {
	llm        client.LLM
	search     client.SearchProvider
	numTerms   int
	topResults int
	now        func() time.Time
}

// NewResearcher returns a Researcher with the default term and result counts.
func NewResearcher(llm client.LLM, search client.SearchProvider) *Researcher {
	return &Researcher{
		llm:        llm,
		search:     search,
		numTerms:   DefaultSearchTerms,
		topResults: DefaultTopResults,
		now:        time.Now,
	}
}

// Research runs the full research loop for req.
func (r *Researcher) Research(ctx context.Context, req models.TripRequest) (models.Research, error) {
	logger := observability.LoggerFromContext(ctx)
	system := withDate(researcherSystemPrompt, r.now())

	raw, err := r.llm.Generate(ctx, system, buildSearchTermsPrompt(req, r.numTerms))
	if err != nil {
		return models.Research{}, fmt.Errorf("generate search terms: %w", err)
	}
	terms := parseSearchTerms(raw, r.numTerms)
	if len(terms) == 0 {
		terms = fallbackTerms(req)
		logger.Warn("model returned no usable search terms, using defaults", zap.Strings("terms", terms))
	}

	var (
		results []models.SearchResult
		seen    = make(map[string]struct{})
		lastErr error
	)
	for _, term := range terms {
		found, err := r.search.Search(ctx, term)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return models.Research{}, ctxErr
			}
			lastErr = err
			logger.Warn("search failed", zap.String("term", term), zap.String("category", string(client.CategorizeError(err))), zap.Error(err))
			continue
		}
		for _, res := range found {
			key := res.Link
			if key == "" {
				key = res.Title
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			results = append(results, res)
		}
	}
	if len(results) == 0 {
		if lastErr != nil {
			return models.Research{}, fmt.Errorf("%w: %w", ErrNoResearch, lastErr)
		}
		return models.Research{}, ErrNoResearch
	}
	logger.Debug("search complete", zap.Strings("terms", terms), zap.Int("results", len(results)))

	content, err := r.llm.Generate(ctx, system, buildSelectionPrompt(req, results, r.topResults))
	if err != nil {
		return models.Research{}, fmt.Errorf("select results: %w", err)
	}
	return models.Research{SearchTerms: terms, Results: results, Content: content}, nil
}

// parseSearchTerms reads up to n terms from model output. A JSON array is preferred;
// otherwise each non-empty line is a term, stripped of list markers and quotes.
func parseSearchTerms(raw string, n int) []string {
	var terms []string
	if i, j := strings.Index(raw, "["), strings.LastIndex(raw, "]"); i >= 0 && j > i {
		var arr []string
		if err := json.Unmarshal([]byte(raw[i:j+1]), &arr); err == nil {
			terms = arr
		}
	}
	if terms == nil {
		for _, line := range strings.Split(raw, "\n") {
			line = strings.TrimSpace(line)
			if strings.HasPrefix(line, "```") {
				continue
			}
			line = strings.TrimLeft(line, "-*•0123456789.) ")
			terms = append(terms, line)
		}
	}

	out := make([]string, 0, n)
	for _, t := range terms {
		t = strings.Trim(strings.TrimSpace(t), `"'`)
		if t == "" {
			continue
		}
		out = append(out, t)
		if len(out) == n {
			break
		}
	}
	return out
}

func fallbackTerms(req models.TripRequest) []string {
	return []string{
		fmt.Sprintf("%s %d day itinerary", req.Destination, req.NumDays),
		fmt.Sprintf("best things to do in %s", req.Destination),
		fmt.Sprintf("where to stay in %s", req.Destination),
	}
}
