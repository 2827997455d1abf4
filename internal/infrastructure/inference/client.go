package inference

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"jan-server/services/chat-api/internal/domain/conversation"
	"jan-server/services/chat-api/internal/infrastructure/metrics"
	"jan-server/services/chat-api/internal/infrastructure/telemetry"
	"jan-server/services/chat-api/internal/utils/platformerrors"
)

const queryPath = "/query"

type queryRequest struct {
	ModelName      string `json:"model_name"`
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
}

type queryResponse struct {
	Response *string `json:"response"`
}

// Client forwards chat turns to the inference backend's /query endpoint.
type Client struct {
	httpClient *resty.Client
	tracer     trace.Tracer
	sanitizer  *telemetry.Sanitizer
	log        zerolog.Logger
}

// NewClient creates a Resty-backed client. timeout bounds each round trip.
// sanitizer decides how much message and reply text reaches spans and logs.
func NewClient(baseURL string, timeout time.Duration, sanitizer *telemetry.Sanitizer, log zerolog.Logger) *Client {
	return &Client{
		httpClient: resty.New().
			SetBaseURL(baseURL).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json").
			SetTimeout(timeout),
		tracer:    otel.Tracer("chat-api/inference"),
		sanitizer: sanitizer,
		log:       log.With().Str("component", "inference-client").Logger(),
	}
}

// Query sends one message and returns the generated reply.
func (c *Client) Query(ctx context.Context, req conversation.InferenceRequest) (string, error) {
	ctx, span := c.tracer.Start(ctx, "inference.query", trace.WithAttributes(
		attribute.String("model_name", string(req.ModelName)),
		attribute.String("conversation_id", req.ConversationID),
		attribute.String("message.preview", c.sanitizer.Content(req.Message)),
	))
	defer span.End()

	start := time.Now()
	reply, err := c.query(ctx, req)
	status := "success"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, "inference query failed")
	} else {
		span.SetAttributes(attribute.String("reply.preview", c.sanitizer.Content(reply)))
	}
	metrics.RecordInference(string(req.ModelName), status, time.Since(start).Seconds())
	return reply, err
}

func (c *Client) query(ctx context.Context, req conversation.InferenceRequest) (string, error) {
	var result queryResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(queryRequest{
			ModelName:      string(req.ModelName),
			Message:        req.Message,
			ConversationID: req.ConversationID,
		}).
		SetResult(&result).
		ForceContentType("application/json").
		Post(queryPath)
	if err != nil {
		c.log.Error().Err(err).Str("conversation_id", req.ConversationID).Msg("inference request failed")
		return "", platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal,
			"inference backend unreachable", err, "inference-transport-error")
	}

	if resp.IsError() {
		c.log.Error().
			Int("status", resp.StatusCode()).
			Str("body", c.sanitizer.Content(resp.String())).
			Str("conversation_id", req.ConversationID).
			Msg("inference backend returned an error")
		return "", platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal,
			fmt.Sprintf("inference backend returned status %d", resp.StatusCode()), nil, "inference-status-error")
	}

	if result.Response == nil {
		c.log.Error().
			Str("body", c.sanitizer.Content(resp.String())).
			Str("conversation_id", req.ConversationID).
			Msg("inference response missing reply field")
		return "", platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal,
			"inference response missing reply field", nil, "inference-malformed-response")
	}

	return *result.Response, nil
}

var _ conversation.InferenceGateway = (*Client)(nil)
