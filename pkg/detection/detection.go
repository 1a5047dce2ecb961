// Package detection provides the entity detection client backed by the
// Azure AI Language PII recognition API.
package detection

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
)

const (
	moduleName    = "github.com/arclight-io/scrubber/pkg/detection"
	moduleVersion = "v0.1.0"

	// MaxBatchSize is the maximum number of documents the PII recognition
	// API accepts per request.
	MaxBatchSize = 5

	tokenScope = "https://cognitiveservices.azure.com/.default"
	keyHeader  = "Ocp-Apim-Subscription-Key"
)

// Entity is a single detected PII span within a document.
type Entity struct {
	Text            string  `json:"text"`
	Category        string  `json:"category"`
	ConfidenceScore float64 `json:"confidenceScore"`
	Offset          int     `json:"offset"`
	Length          int     `json:"length"`
}

// DocumentResult holds the detection outcome for one input document.
// Exactly one of Entities or Err is meaningful. Results are positionally
// aligned with the submitted documents.
type DocumentResult struct {
	Entities []Entity
	Err      error
}

// Detector is the capability the pipeline consumes. Implemented by Client;
// tests substitute fakes.
type Detector interface {
	Detect(ctx context.Context, documents []string, language string) ([]DocumentResult, error)
}

// Client calls the Azure AI Language :analyze-text endpoint.
type Client struct {
	internal   *azcore.Client
	endpoint   string
	apiVersion string
	timeout    time.Duration
	logger     *slog.Logger
}

// NewClient builds a detection client from the given configuration. A key
// credential is preferred when configured; otherwise the client falls back
// to DefaultAzureCredential.
func NewClient(cfg *Config, logger *slog.Logger) (*Client, error) {
	var auth policy.Policy
	if cfg.Key != "" {
		auth = runtime.NewKeyCredentialPolicy(azcore.NewKeyCredential(cfg.Key), keyHeader, nil)
	} else {
		cred, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, fmt.Errorf("resolve azure credential: %w", err)
		}
		auth = runtime.NewBearerTokenPolicy(cred, []string{tokenScope}, nil)
	}

	internal, err := azcore.NewClient(
		moduleName,
		moduleVersion,
		runtime.PipelineOptions{PerRetry: []policy.Policy{auth}},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create detection client: %w", err)
	}

	return &Client{
		internal:   internal,
		endpoint:   cfg.Endpoint,
		apiVersion: cfg.APIVersion,
		timeout:    cfg.TimeoutDuration(),
		logger:     logger.With("system", "detection"),
	}, nil
}

// Detect submits up to MaxBatchSize documents for PII entity recognition.
// The returned slice is positionally aligned with documents: a per-document
// service error is recorded on that element's Err, while a transport or
// service-level failure is returned as the call error.
func (c *Client) Detect(ctx context.Context, documents []string, language string) ([]DocumentResult, error) {
	if len(documents) == 0 {
		return nil, nil
	}
	if len(documents) > MaxBatchSize {
		return nil, fmt.Errorf("%w: %d documents exceeds maximum of %d", ErrBatchTooLarge, len(documents), MaxBatchSize)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	input := make([]inputDocument, len(documents))
	for i, text := range documents {
		input[i] = inputDocument{
			ID:       strconv.Itoa(i),
			Language: language,
			Text:     text,
		}
	}

	req, err := runtime.NewRequest(ctx, http.MethodPost, runtime.JoinPaths(c.endpoint, "language/:analyze-text"))
	if err != nil {
		return nil, fmt.Errorf("build detection request: %w", err)
	}

	query := req.Raw().URL.Query()
	query.Set("api-version", c.apiVersion)
	req.Raw().URL.RawQuery = query.Encode()

	// UnicodeCodePoint makes entity offsets rune indices, which is what the
	// span-replacement code operates on.
	body := analyzeTextRequest{
		Kind:          "PiiEntityRecognition",
		AnalysisInput: analysisInput{Documents: input},
		Parameters:    taskParameters{StringIndexType: "UnicodeCodePoint"},
	}
	if err := runtime.MarshalAsJSON(req, body); err != nil {
		return nil, fmt.Errorf("encode detection request: %w", err)
	}

	resp, err := c.internal.Pipeline().Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	if !runtime.HasStatusCode(resp, http.StatusOK) {
		return nil, fmt.Errorf("%w: %w", ErrTransport, runtime.NewResponseError(resp))
	}

	var parsed analyzeTextResponse
	if err := runtime.UnmarshalAsJSON(resp, &parsed); err != nil {
		return nil, fmt.Errorf("decode detection response: %w", err)
	}

	return c.alignResults(documents, &parsed)
}

// alignResults restores positional document-to-result pairing from the
// id-keyed response body.
func (c *Client) alignResults(documents []string, parsed *analyzeTextResponse) ([]DocumentResult, error) {
	results := make([]DocumentResult, len(documents))

	for _, doc := range parsed.Results.Documents {
		idx, err := strconv.Atoi(doc.ID)
		if err != nil || idx < 0 || idx >= len(documents) {
			return nil, fmt.Errorf("detection response references unknown document id %q", doc.ID)
		}
		results[idx].Entities = doc.Entities
	}

	for _, docErr := range parsed.Results.Errors {
		idx, err := strconv.Atoi(docErr.ID)
		if err != nil || idx < 0 || idx >= len(documents) {
			return nil, fmt.Errorf("detection response references unknown document id %q", docErr.ID)
		}
		results[idx].Err = fmt.Errorf("%w: %s: %s", ErrDetection, docErr.Error.Code, docErr.Error.Message)
		c.logger.Debug(
			"document-level detection error",
			"document", idx,
			"code", docErr.Error.Code,
		)
	}

	return results, nil
}

type analyzeTextRequest struct {
	Kind          string         `json:"kind"`
	AnalysisInput analysisInput  `json:"analysisInput"`
	Parameters    taskParameters `json:"parameters"`
}

type taskParameters struct {
	StringIndexType string `json:"stringIndexType"`
}

type analysisInput struct {
	Documents []inputDocument `json:"documents"`
}

type inputDocument struct {
	ID       string `json:"id"`
	Language string `json:"language"`
	Text     string `json:"text"`
}

type analyzeTextResponse struct {
	Kind    string     `json:"kind"`
	Results piiResults `json:"results"`
}

type piiResults struct {
	Documents []resultDocument `json:"documents"`
	Errors    []documentError  `json:"errors"`
}

type resultDocument struct {
	ID           string   `json:"id"`
	RedactedText string   `json:"redactedText"`
	Entities     []Entity `json:"entities"`
}

type documentError struct {
	ID    string     `json:"id"`
	Error innerError `json:"error"`
}

type innerError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
