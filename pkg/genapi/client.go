// Package genapi is a typed HTTP client for the external AI generation
// service that produces book plans and chapter content.
package genapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client calls the generation service over HTTP/JSON.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a generation service client. Generation calls are
// slow, so the default timeout is generous.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

// ValidationError is one entry of the service's structured validation
// failure body ({detail: [{loc, msg, type}]}).
type ValidationError struct {
	Loc  []any  `json:"loc"`
	Msg  string `json:"msg"`
	Type string `json:"type"`
}

// APIError represents a generation service error response.
type APIError struct {
	Status  int
	Message string
	Detail  []ValidationError
}

func (e *APIError) Error() string {
	if len(e.Detail) > 0 {
		return fmt.Sprintf("generation api: status %d: %s", e.Status, e.Detail[0].Msg)
	}
	return fmt.Sprintf("generation api: status %d: %s", e.Status, e.Message)
}

// PlanRequest carries the book metadata the plan is generated from.
type PlanRequest struct {
	Title            string `json:"title"`
	Type             string `json:"type"`
	Category         string `json:"category"`
	ChapterCount     int    `json:"chapterCount"`
	AuthorName       string `json:"authorName"`
	Acknowledgements string `json:"acknowledgements,omitempty"`
}

// ChapterPlan is one chapter's slot in a generated book plan.
type ChapterPlan struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Order   int    `json:"order"`
}

// BookPlan is the AI-produced cover/description/chapter-summary bundle.
type BookPlan struct {
	CoverDescription string        `json:"coverDescription"`
	BookDescription  string        `json:"bookDescription"`
	Chapters         []ChapterPlan `json:"chapters"`
	EndPageContent   string        `json:"endPageContent"`
}

// ChapterRequest carries everything the service needs to write one chapter.
// PreviousChapterSummaries maps the 1-based order (as a decimal string) to
// the summary text of chapters that precede the target.
type ChapterRequest struct {
	Title                    string            `json:"title"`
	ChapterTitle             string            `json:"chapterTitle"`
	ChapterSummary           string            `json:"chapterSummary"`
	ChapterIndex             int               `json:"chapterIndex"`
	TotalChapters            int               `json:"totalChapters"`
	BookType                 string            `json:"bookType"`
	BookCategory             string            `json:"bookCategory"`
	AuthorName               string            `json:"authorName"`
	PreviousChapterSummaries map[string]string `json:"previousChapterSummaries,omitempty"`
}

// ChapterResult is the generated chapter body. WordCount is whatever the
// service reports; callers do not recompute it.
type ChapterResult struct {
	Content   string `json:"content"`
	WordCount int    `json:"wordCount"`
}

// Health checks the generation service.
func (c *Client) Health(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return "", err
	}
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.do(req, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// GenerateBookPlan requests a full book plan for the given metadata.
func (c *Client) GenerateBookPlan(ctx context.Context, planReq PlanRequest) (BookPlan, error) {
	var plan BookPlan
	if err := c.post(ctx, "/routes/generate-book-plan", planReq, &plan); err != nil {
		return BookPlan{}, err
	}
	return plan, nil
}

// GenerateChapter requests content for one chapter.
func (c *Client) GenerateChapter(ctx context.Context, chapterReq ChapterRequest) (ChapterResult, error) {
	var result ChapterResult
	if err := c.post(ctx, "/routes/generate-chapter", chapterReq, &result); err != nil {
		return ChapterResult{}, err
	}
	return result, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode, Message: resp.Status}
		var errBody struct {
			Detail json.RawMessage `json:"detail"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&errBody); decodeErr == nil && len(errBody.Detail) > 0 {
			// detail is a validation list on 422 and a plain string otherwise
			var list []ValidationError
			if json.Unmarshal(errBody.Detail, &list) == nil {
				apiErr.Detail = list
			} else {
				var msg string
				if json.Unmarshal(errBody.Detail, &msg) == nil && msg != "" {
					apiErr.Message = msg
				}
			}
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
