package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mnemo-db/mnemo/pkg/idgen"
	"github.com/mnemo-db/mnemo/pkg/model"
)

// otlpAttributeValue mirrors the OTLP JSON AnyValue union, decoding
// only the scalar kinds mnemo's field mapping needs.
type otlpAttributeValue struct {
	StringValue string  `json:"stringValue"`
	IntValue    string  `json:"intValue"`
	DoubleValue float64 `json:"doubleValue"`
}

type otlpAttribute struct {
	Key   string             `json:"key"`
	Value otlpAttributeValue `json:"value"`
}

type otlpSpan struct {
	TraceID           string          `json:"traceId"`
	SpanID            string          `json:"spanId"`
	StartTimeUnixNano string          `json:"startTimeUnixNano"`
	EndTimeUnixNano   string          `json:"endTimeUnixNano"`
	Attributes        []otlpAttribute `json:"attributes"`
}

type otlpScopeSpans struct {
	Spans []otlpSpan `json:"spans"`
}

type otlpResourceSpans struct {
	Resource struct {
		Attributes []otlpAttribute `json:"attributes"`
	} `json:"resource"`
	ScopeSpans []otlpScopeSpans `json:"scopeSpans"`
}

type otlpRequest struct {
	ResourceSpans []otlpResourceSpans `json:"resourceSpans"`
}

func attrString(attrs []otlpAttribute, key string) (string, bool) {
	for _, a := range attrs {
		if a.Key == key {
			return a.Value.StringValue, true
		}
	}
	return "", false
}

func attrFloat(attrs []otlpAttribute, key string) float64 {
	for _, a := range attrs {
		if a.Key != key {
			continue
		}
		if a.Value.DoubleValue != 0 {
			return a.Value.DoubleValue
		}
		if a.Value.IntValue != "" {
			if n, err := strconv.ParseInt(a.Value.IntValue, 10, 64); err == nil {
				return float64(n)
			}
		}
		if a.Value.StringValue != "" {
			if f, err := strconv.ParseFloat(a.Value.StringValue, 64); err == nil {
				return f
			}
		}
	}
	return 0
}

func attrInt(attrs []otlpAttribute, key string) int {
	return int(attrFloat(attrs, key))
}

// eventTypeForOperation implements spec §6's gen_ai.operation.name
// mapping: "chat" -> assistant_message, "embed" -> retrieval_query,
// anything else -> tool_call.
func eventTypeForOperation(op string) model.EventType {
	switch op {
	case "chat":
		return model.EventAssistantMsg
	case "embed":
		return model.EventRetrievalQuery
	default:
		return model.EventToolCall
	}
}

// handleOTLPIngest accepts the JSON form of an OTLP trace export (spec
// §6) and converts every span into an AgentEvent, inserted directly
// through storage rather than through Remember — spans describe
// already-happened telemetry, not new memories to embed and chain.
func (s *Server) handleOTLPIngest(c *gin.Context) {
	var req otlpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	ingested := 0
	for _, rs := range req.ResourceSpans {
		agentID, ok := attrString(rs.Resource.Attributes, "service.name")
		if !ok {
			agentID, _ = attrString(rs.Resource.Attributes, "agent.id")
		}
		for _, scope := range rs.ScopeSpans {
			for _, span := range scope.Spans {
				event := &model.AgentEvent{
					ID:           idgen.New(),
					AgentID:      agentID,
					EventType:    eventTypeForOperation(firstAttr(span.Attributes, "gen_ai.operation.name")),
					TraceID:      span.TraceID,
					SpanID:       span.SpanID,
					Model:        firstAttr(span.Attributes, "gen_ai.request.model"),
					TokensInput:  attrInt(span.Attributes, "gen_ai.usage.input_tokens"),
					TokensOutput: attrInt(span.Attributes, "gen_ai.usage.output_tokens"),
					CostUSD:      attrFloat(span.Attributes, "gen_ai.usage.cost"),
				}
				start, errStart := strconv.ParseInt(span.StartTimeUnixNano, 10, 64)
				end, errEnd := strconv.ParseInt(span.EndTimeUnixNano, 10, 64)
				if errStart == nil {
					event.Timestamp = time.Unix(0, start).UTC()
				}
				if errStart == nil && errEnd == nil {
					event.LatencyMs = (end - start) / int64(time.Millisecond)
				}
				if err := s.Storage.InsertEvent(ctx, event); err != nil {
					s.logger().Warn("otlp ingest: failed to insert event", "error", err)
					continue
				}
				ingested++
			}
		}
	}
	c.JSON(http.StatusOK, gin.H{"ingested": ingested})
}

func firstAttr(attrs []otlpAttribute, key string) string {
	v, _ := attrString(attrs, key)
	return v
}
