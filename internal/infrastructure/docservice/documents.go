package docservice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"

	"github.com/kirillkom/document-viewer/internal/core/domain"
)

// Parameter ranges accepted by the service.
const (
	minSummaryLength     = 100
	maxSummaryLength     = 2000
	defaultSummaryLength = 500

	minKeyPoints     = 3
	maxKeyPoints     = 30
	defaultKeyPoints = 10

	minInsights     = 1
	maxInsights     = 15
	defaultInsights = 5

	maxListLimit = 1000
)

func (c *Client) ListDocuments(ctx context.Context, skip, limit int) (domain.DocumentCollectionPage, error) {
	if skip < 0 {
		skip = 0
	}
	limit = clamp(limit, 1, maxListLimit, maxListLimit)

	query := url.Values{}
	query.Set("skip", strconv.Itoa(skip))
	query.Set("limit", strconv.Itoa(limit))

	var response struct {
		Documents []domain.DocumentSummaryEntry `json:"documents"`
		Count     int                           `json:"count"`
	}
	if err := c.getJSON(ctx, "list", "/api/documents", query, &response); err != nil {
		return domain.DocumentCollectionPage{}, err
	}
	if response.Documents == nil {
		response.Documents = []domain.DocumentSummaryEntry{}
	}
	return domain.DocumentCollectionPage{Entries: response.Documents, Limit: limit}, nil
}

func (c *Client) GetDocument(ctx context.Context, id string) (*domain.DocumentDetail, error) {
	path, err := documentPath(id, "")
	if err != nil {
		return nil, err
	}
	var detail domain.DocumentDetail
	if err := c.getJSON(ctx, "document", path, nil, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

func (c *Client) GetSummary(ctx context.Context, id string, maxLength int) (*domain.SummaryArtifact, error) {
	path, err := documentPath(id, "summary")
	if err != nil {
		return nil, err
	}
	query := url.Values{}
	query.Set("max_length", strconv.Itoa(clamp(maxLength, minSummaryLength, maxSummaryLength, defaultSummaryLength)))

	var summary domain.SummaryArtifact
	if err := c.getJSON(ctx, "summary", path, query, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

func (c *Client) GetKeyPoints(ctx context.Context, id string, maxPoints int) (*domain.KeyPointsArtifact, error) {
	path, err := documentPath(id, "key_points")
	if err != nil {
		return nil, err
	}
	query := url.Values{}
	query.Set("max_points", strconv.Itoa(clamp(maxPoints, minKeyPoints, maxKeyPoints, defaultKeyPoints)))

	var keyPoints domain.KeyPointsArtifact
	if err := c.getJSON(ctx, "key_points", path, query, &keyPoints); err != nil {
		return nil, err
	}
	if keyPoints.KeyPoints == nil {
		keyPoints.KeyPoints = []domain.KeyPoint{}
	}
	return &keyPoints, nil
}

func (c *Client) GetInsights(ctx context.Context, id string, maxInsightCount int) (*domain.InsightsArtifact, error) {
	path, err := documentPath(id, "insights")
	if err != nil {
		return nil, err
	}
	query := url.Values{}
	query.Set("max_insights", strconv.Itoa(clamp(maxInsightCount, minInsights, maxInsights, defaultInsights)))

	var insights domain.InsightsArtifact
	if err := c.getJSON(ctx, "insights", path, query, &insights); err != nil {
		return nil, err
	}
	if insights.Insights == nil {
		insights.Insights = []domain.Insight{}
	}
	return &insights, nil
}

func (c *Client) GetStructure(ctx context.Context, id string) (*domain.StructureArtifact, error) {
	path, err := documentPath(id, "structure")
	if err != nil {
		return nil, err
	}
	var structure domain.StructureArtifact
	if err := c.getJSON(ctx, "structure", path, nil, &structure); err != nil {
		return nil, err
	}
	return &structure, nil
}

func (c *Client) Query(ctx context.Context, id, question string) (*domain.QueryAnswer, error) {
	path, err := documentPath(id, "query")
	if err != nil {
		return nil, err
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "docservice query", errors.New("query text is required"))
	}

	var answer domain.QueryAnswer
	if err := c.postJSON(ctx, "query", path, map[string]string{"query": question}, &answer); err != nil {
		return nil, err
	}
	return &answer, nil
}

func (c *Client) Upload(ctx context.Context, filename, contentType string, body io.Reader) (*domain.UploadResult, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "docservice upload", errors.New("filename is required"))
	}
	payload, formContentType, err := multipartFile(filename, contentType, body)
	if err != nil {
		return nil, err
	}

	var result domain.UploadResult
	err = c.do(ctx, call{
		operation:   "upload",
		method:      http.MethodPost,
		path:        "/api/upload",
		body:        payload,
		contentType: formContentType,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) Delete(ctx context.Context, id string) (*domain.DeleteResult, error) {
	path, err := documentPath(id, "")
	if err != nil {
		return nil, err
	}
	var result domain.DeleteResult
	if err := c.deleteJSON(ctx, "delete", path, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func documentPath(id, suffix string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "docservice", errors.New("document id is required"))
	}
	path := "/api/document/" + url.PathEscape(id)
	if suffix != "" {
		path += "/" + suffix
	}
	return path, nil
}

// multipartFile buffers the form so the request body can be replayed on retry.
func multipartFile(filename, contentType string, body io.Reader) ([]byte, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(filename)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("create multipart part: %w", err)
	}
	if _, err := io.Copy(part, body); err != nil {
		return nil, "", fmt.Errorf("write multipart body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return buf.Bytes(), writer.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// clamp maps non-positive values to def and bounds the rest to [lo, hi].
func clamp(v, lo, hi, def int) int {
	if v <= 0 {
		return def
	}
	return max(lo, min(v, hi))
}
