// Package rxnorm is a client for the RxNav terminology REST API. It resolves
// drug names to RxCUI codes and walks related concepts for ingredients and
// brand names.
package rxnorm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/juju/ratelimit"

	"github.com/rxguard/prescription-api/interfaces"
	"github.com/rxguard/prescription-api/logging"
)

const (
	// Minimum spacing between outbound requests. The terminology service is
	// a shared public resource.
	requestInterval = 100 * time.Millisecond

	userAgent = "prescription-api/1.0"

	// Brand walks can return hundreds of packagings for common ingredients.
	maxBrandResults = 10
)

// cachedCode is a memoized lookup result. Misses are cached too, so a drug
// the service does not know costs one round trip per process, not per
// prescription.
type cachedCode struct {
	value string
	found bool
}

// Client resolves drug terminology against an RxNav-compatible endpoint.
// All lookups degrade to not-found on transport or decoding errors.
type Client struct {
	baseURL    string
	httpClient *http.Client
	bucket     *ratelimit.Bucket

	nameCache       *lru.Cache[string, cachedCode]
	ingredientCache *lru.Cache[string, cachedCode]
	brandCache      *lru.Cache[string, []string]
}

var _ interfaces.CodeResolver = (*Client)(nil)

// NewClient creates a client for the given base URL. cacheEntries bounds
// the name cache; the concept caches hold half as many entries each.
func NewClient(baseURL string, timeout time.Duration, cacheEntries int) (*Client, error) {
	if cacheEntries < 1 {
		return nil, fmt.Errorf("cache size must be positive, got %d", cacheEntries)
	}

	nameCache, err := lru.New[string, cachedCode](cacheEntries)
	if err != nil {
		return nil, fmt.Errorf("creating name cache: %w", err)
	}
	conceptEntries := cacheEntries/2 + 1
	ingredientCache, err := lru.New[string, cachedCode](conceptEntries)
	if err != nil {
		return nil, fmt.Errorf("creating ingredient cache: %w", err)
	}
	brandCache, err := lru.New[string, []string](conceptEntries)
	if err != nil {
		return nil, fmt.Errorf("creating brand cache: %w", err)
	}

	return &Client{
		baseURL:         strings.TrimRight(baseURL, "/"),
		httpClient:      &http.Client{Timeout: timeout},
		bucket:          ratelimit.NewBucket(requestInterval, 1),
		nameCache:       nameCache,
		ingredientCache: ingredientCache,
		brandCache:      brandCache,
	}, nil
}

// ResolveCode maps a drug name to its RxCUI, trying an exact lookup first
// and falling back to approximate term matching.
func (c *Client) ResolveCode(ctx context.Context, name string) (string, bool) {
	clean := strings.ToLower(strings.TrimSpace(name))
	if clean == "" {
		return "", false
	}

	if hit, ok := c.nameCache.Get(clean); ok {
		return hit.value, hit.found
	}

	code, found := c.lookupExact(ctx, clean)
	if !found {
		code, found = c.lookupApproximate(ctx, clean)
	}

	c.nameCache.Add(clean, cachedCode{value: code, found: found})
	if found {
		logging.Debug("Resolved drug code", "drug", clean, "code", code)
	} else {
		logging.Warn("No code found for drug", "drug", clean)
	}
	return code, found
}

func (c *Client) lookupExact(ctx context.Context, name string) (string, bool) {
	var payload struct {
		IDGroup struct {
			RxNormID []string `json:"rxnormId"`
		} `json:"idGroup"`
	}
	if err := c.get(ctx, "rxcui.json", url.Values{"name": {name}}, &payload); err != nil {
		logging.Error("Exact code lookup failed", "drug", name, "error", err)
		return "", false
	}
	if len(payload.IDGroup.RxNormID) == 0 {
		return "", false
	}
	return payload.IDGroup.RxNormID[0], true
}

func (c *Client) lookupApproximate(ctx context.Context, name string) (string, bool) {
	var payload struct {
		ApproximateGroup struct {
			Candidate []struct {
				RxCUI string `json:"rxcui"`
			} `json:"candidate"`
		} `json:"approximateGroup"`
	}
	if err := c.get(ctx, "approximateTerm.json", url.Values{"term": {name}}, &payload); err != nil {
		logging.Error("Approximate code lookup failed", "drug", name, "error", err)
		return "", false
	}
	for _, candidate := range payload.ApproximateGroup.Candidate {
		if candidate.RxCUI != "" {
			return candidate.RxCUI, true
		}
	}
	return "", false
}

// ResolveIngredient returns the ingredient-level RxCUI for a drug code.
func (c *Client) ResolveIngredient(ctx context.Context, code string) (string, bool) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", false
	}

	if hit, ok := c.ingredientCache.Get(code); ok {
		return hit.value, hit.found
	}

	var ingredient string
	found := false
	for _, concept := range c.relatedConcepts(ctx, code, "IN") {
		if concept.TTY == "IN" && concept.RxCUI != "" {
			ingredient = concept.RxCUI
			found = true
			break
		}
	}

	c.ingredientCache.Add(code, cachedCode{value: ingredient, found: found})
	return ingredient, found
}

// ResolveBrands returns branded drug names for an ingredient code, capped
// and deduplicated in response order.
func (c *Client) ResolveBrands(ctx context.Context, ingredientCode string) []string {
	ingredientCode = strings.TrimSpace(ingredientCode)
	if ingredientCode == "" {
		return nil
	}

	if brands, ok := c.brandCache.Get(ingredientCode); ok {
		return brands
	}

	var brands []string
	seen := make(map[string]struct{})
	for _, concept := range c.relatedConcepts(ctx, ingredientCode, "SBD") {
		if concept.TTY != "SBD" || concept.Name == "" {
			continue
		}
		if _, dup := seen[concept.Name]; dup {
			continue
		}
		seen[concept.Name] = struct{}{}
		brands = append(brands, concept.Name)
		if len(brands) == maxBrandResults {
			break
		}
	}

	c.brandCache.Add(ingredientCode, brands)
	logging.Debug("Resolved brands", "ingredient", ingredientCode, "count", len(brands))
	return brands
}

var strengthPattern = regexp.MustCompile(`(?i)\d+(?:\.\d+)?\s*(?:mg|mcg|g|ml)\b`)

// DrugStrengths extracts the distinct strengths appearing in a drug's
// related concept names.
func (c *Client) DrugStrengths(ctx context.Context, code string) []string {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil
	}

	var strengths []string
	seen := make(map[string]struct{})
	for _, concept := range c.relatedConcepts(ctx, code, "") {
		match := strengthPattern.FindString(concept.Name)
		if match == "" {
			continue
		}
		if _, dup := seen[match]; dup {
			continue
		}
		seen[match] = struct{}{}
		strengths = append(strengths, match)
	}
	return strengths
}

type conceptProperty struct {
	RxCUI string `json:"rxcui"`
	Name  string `json:"name"`
	TTY   string `json:"tty"`
}

func (c *Client) relatedConcepts(ctx context.Context, code, tty string) []conceptProperty {
	var payload struct {
		RelatedGroup struct {
			ConceptGroup []struct {
				ConceptProperties []conceptProperty `json:"conceptProperties"`
			} `json:"conceptGroup"`
		} `json:"relatedGroup"`
	}

	params := url.Values{}
	if tty != "" {
		params.Set("tty", tty)
	}
	endpoint := fmt.Sprintf("rxcui/%s/related.json", url.PathEscape(code))
	if err := c.get(ctx, endpoint, params, &payload); err != nil {
		logging.Error("Related concept lookup failed", "code", code, "tty", tty, "error", err)
		return nil
	}

	var concepts []conceptProperty
	for _, group := range payload.RelatedGroup.ConceptGroup {
		concepts = append(concepts, group.ConceptProperties...)
	}
	return concepts
}

// get performs one rate-limited GET and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	if waitTime := c.bucket.Take(1); waitTime > 0 {
		select {
		case <-time.After(waitTime):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	requestURL := c.baseURL + "/" + endpoint
	if len(params) > 0 {
		requestURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("requesting %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s returned status %d", endpoint, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", endpoint, err)
	}
	return nil
}
