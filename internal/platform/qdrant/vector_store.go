package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/guildmind-backend/internal/pkg/ctxutil"
	"github.com/yungbote/guildmind-backend/internal/pkg/errkind"
	"github.com/yungbote/guildmind-backend/internal/pkg/logger"
	"github.com/yungbote/guildmind-backend/internal/platform/vector"
)

const (
	maxErrorBodyBytes = 1024
	timeLayout        = time.RFC3339
)

// Non-UUID vector keys are hashed into point ids under this namespace so
// deletes stay deterministic across processes.
var pointIDNamespaceUUID = uuid.MustParse("7c9e2f31-4b8d-4f5a-9c6e-2d1a8b3f0e47")

type vectorStore struct {
	log     *logger.Logger
	cfg     Config
	baseURL string
	http    *http.Client
}

type qdrantEnvelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
	Time   float64         `json:"time"`
}

type qdrantSearchResultItem struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload map[string]any  `json:"payload"`
}

func NewVectorStore(log *logger.Logger, cfg Config) (vector.Store, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if err := ValidateConfig(cfg, true); err != nil {
		return nil, err
	}

	s := &vectorStore{
		log:     log.With("service", "QdrantVectorStore"),
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	log.Info(
		"Qdrant vector store selected",
		"provider", "qdrant",
		"url", s.baseURL,
		"collection", cfg.Collection,
		"vector_dim", cfg.VectorDim,
	)
	return s, nil
}

// EnsureCollection creates the collection and its payload indexes if
// missing, and verifies the stored vector size against the configured
// dimension. A size mismatch is fatal: it means the index was built by a
// different embedder identity.
func (s *vectorStore) EnsureCollection(ctx context.Context) error {
	const op = "ensure_collection"

	var desc struct {
		Config struct {
			Params struct {
				Vectors struct {
					Size     int    `json:"size"`
					Distance string `json:"distance"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	}
	err := s.doJSON(ctx, op, http.MethodGet, s.collectionPath(""), nil, &desc)
	if err != nil {
		var opErrTyped *OperationError
		if !errors.As(err, &opErrTyped) || opErrTyped.StatusCode != http.StatusNotFound {
			return err
		}
		createReq := map[string]any{
			"vectors": map[string]any{
				"size":     s.cfg.VectorDim,
				"distance": "Cosine",
			},
		}
		if err := s.doJSON(ctx, op, http.MethodPut, s.collectionPath(""), createReq, nil); err != nil {
			return err
		}
	} else {
		size := desc.Config.Params.Vectors.Size
		if size != 0 && size != s.cfg.VectorDim {
			return errkind.Wrap(errkind.Permanent, &OperationError{
				Code:      OperationErrorValidation,
				Operation: op,
				Message: fmt.Sprintf(
					"qdrant collection %q vector size mismatch: expected=%d actual=%d",
					s.cfg.Collection,
					s.cfg.VectorDim,
					size,
				),
			})
		}
	}

	for _, field := range []struct {
		name   string
		schema string
	}{
		{"guild_id", "integer"},
		{"channel_id", "integer"},
		{"kind", "keyword"},
	} {
		idxReq := map[string]any{
			"field_name":   field.name,
			"field_schema": field.schema,
		}
		if err := s.doJSON(ctx, op, http.MethodPut, s.collectionPath("/index?wait=true"), idxReq, nil); err != nil {
			// Index creation on an existing field returns a conflict;
			// that is the idempotent success case.
			var opErrTyped *OperationError
			if errors.As(err, &opErrTyped) && (opErrTyped.StatusCode == http.StatusConflict || opErrTyped.StatusCode == http.StatusBadRequest) {
				continue
			}
			return err
		}
	}
	return nil
}

func (s *vectorStore) Upsert(ctx context.Context, points []vector.Point) error {
	if s == nil {
		return nil
	}
	const op = "upsert"
	if len(points) == 0 {
		return nil
	}

	reqPoints := make([]map[string]any, 0, len(points))
	for _, p := range points {
		vectorID := strings.TrimSpace(p.ID)
		if vectorID == "" {
			return errkind.Wrap(errkind.Permanent, opErr(op, OperationErrorValidation, "vector id is required", nil))
		}
		if len(p.Vector) == 0 {
			return errkind.Wrap(errkind.Permanent, opErr(op, OperationErrorValidation, fmt.Sprintf("vector %q has empty values", vectorID), nil))
		}
		if s.cfg.VectorDim > 0 && len(p.Vector) != s.cfg.VectorDim {
			return errkind.Wrap(errkind.Permanent, opErr(
				op,
				OperationErrorValidation,
				fmt.Sprintf(
					"vector %q dimension mismatch: expected=%d got=%d",
					vectorID,
					s.cfg.VectorDim,
					len(p.Vector),
				),
				nil,
			))
		}
		if err := vector.ValidatePayload(p.Payload); err != nil {
			return err
		}
		reqPoints = append(reqPoints, map[string]any{
			"id":      s.pointID(vectorID),
			"vector":  p.Vector,
			"payload": payloadToMap(p.Payload),
		})
	}

	req := map[string]any{"points": reqPoints}
	return s.doJSON(ctx, op, http.MethodPut, s.collectionPath("/points?wait=true"), req, nil)
}

func (s *vectorStore) Delete(ctx context.Context, ids []string) error {
	if s == nil {
		return nil
	}
	const op = "delete"
	if len(ids) == 0 {
		return nil
	}

	pointIDs := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		vectorID := strings.TrimSpace(id)
		if vectorID == "" {
			continue
		}
		pointID := s.pointID(vectorID)
		if _, exists := seen[pointID]; exists {
			continue
		}
		seen[pointID] = struct{}{}
		pointIDs = append(pointIDs, pointID)
	}
	if len(pointIDs) == 0 {
		return nil
	}

	req := map[string]any{"points": pointIDs}
	return s.doJSON(ctx, op, http.MethodPost, s.collectionPath("/points/delete?wait=true"), req, nil)
}

func (s *vectorStore) DeleteWhere(ctx context.Context, f vector.Filter) error {
	if s == nil {
		return nil
	}
	const op = "delete_where"
	if err := vector.ValidateFilter(f); err != nil {
		return err
	}
	req := map[string]any{"filter": translateFilter(f)}
	return s.doJSON(ctx, op, http.MethodPost, s.collectionPath("/points/delete?wait=true"), req, nil)
}

func (s *vectorStore) Search(ctx context.Context, vec []float32, f vector.Filter, topK int, scoreMin float64) ([]vector.Match, error) {
	if s == nil {
		return nil, fmt.Errorf("vector store unavailable")
	}
	const op = "search"
	if err := vector.ValidateFilter(f); err != nil {
		return nil, err
	}
	if len(vec) == 0 {
		return nil, errkind.Wrap(errkind.Permanent, opErr(op, OperationErrorValidation, "query vector required", nil))
	}
	if s.cfg.VectorDim > 0 && len(vec) != s.cfg.VectorDim {
		return nil, errkind.Wrap(errkind.Permanent, opErr(
			op,
			OperationErrorValidation,
			fmt.Sprintf("query vector dimension mismatch: expected=%d got=%d", s.cfg.VectorDim, len(vec)),
			nil,
		))
	}
	if topK <= 0 {
		topK = 10
	}

	req := map[string]any{
		"vector":       vec,
		"limit":        topK,
		"with_payload": true,
		"with_vector":  false,
		"filter":       translateFilter(f),
	}
	if scoreMin > 0 {
		req["score_threshold"] = scoreMin
	}
	var rawResults []qdrantSearchResultItem
	if err := s.doJSON(ctx, op, http.MethodPost, s.collectionPath("/points/search"), req, &rawResults); err != nil {
		return nil, err
	}

	out := make([]vector.Match, 0, len(rawResults))
	for _, item := range rawResults {
		payload := payloadFromMap(item.Payload)
		// Defense in depth: a point outside the requested tenant never
		// leaves the adapter, whatever the server returned.
		if payload.GuildID != f.GuildID {
			s.log.Error("qdrant returned cross-tenant point; dropping",
				"requested_guild_id", f.GuildID,
				"returned_guild_id", payload.GuildID,
			)
			continue
		}
		out = append(out, vector.Match{
			ID:      extractVectorID(item),
			Score:   item.Score,
			Payload: payload,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].ID < out[j].ID
		}
		return out[i].Score > out[j].Score
	})
	return out, nil
}

// pointID passes UUID keys through untouched and folds anything else
// into a deterministic UUIDv5, since qdrant only accepts UUID or integer
// point ids.
func (s *vectorStore) pointID(vectorID string) string {
	if parsed, err := uuid.Parse(vectorID); err == nil {
		return parsed.String()
	}
	return uuid.NewSHA1(pointIDNamespaceUUID, []byte(vectorID)).String()
}

func extractVectorID(item qdrantSearchResultItem) string {
	var asString string
	if err := json.Unmarshal(item.ID, &asString); err == nil && asString != "" {
		return asString
	}
	var asNumber int64
	if err := json.Unmarshal(item.ID, &asNumber); err == nil {
		return fmt.Sprintf("%d", asNumber)
	}
	return ""
}

func payloadFromMap(m map[string]any) vector.Payload {
	out := vector.Payload{}
	if m == nil {
		return out
	}
	out.GuildID = asInt64(m["guild_id"])
	out.ChannelID = asInt64(m["channel_id"])
	if kind, ok := m["kind"].(string); ok {
		out.Kind = kind
	}
	if preview, ok := m["preview"].(string); ok {
		out.Preview = preview
	}
	if embedder, ok := m["embedder"].(string); ok {
		out.Embedder = embedder
	}
	if raw, ok := m["source_ids"].([]any); ok {
		for _, v := range raw {
			if id := asInt64(v); id != 0 {
				out.SourceIDs = append(out.SourceIDs, id)
			}
		}
	}
	if ts := asTime(m["start_time"]); ts != nil {
		out.StartTime = ts
	}
	if ts := asTime(m["end_time"]); ts != nil {
		out.EndTime = ts
	}
	return out
}

func asInt64(v any) int64 {
	switch t := v.(type) {
	case float64:
		return int64(t)
	case int64:
		return t
	case int:
		return int64(t)
	case json.Number:
		n, _ := t.Int64()
		return n
	case string:
		var n int64
		_, _ = fmt.Sscanf(t, "%d", &n)
		return n
	default:
		return 0
	}
}

func asTime(v any) *time.Time {
	s, ok := v.(string)
	if !ok || s == "" {
		return nil
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return nil
	}
	return &t
}

func (s *vectorStore) collectionPath(suffix string) string {
	return "/collections/" + s.cfg.Collection + suffix
}

func (s *vectorStore) doJSON(ctx context.Context, op, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return errkind.Wrap(errkind.Permanent, opErr(op, OperationErrorEncodeFailed, "encode request failed", err))
		}
		body = &buf
	}

	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), method, s.baseURL+path, body)
	if err != nil {
		return errkind.Wrap(errkind.Transient, opErr(op, OperationErrorTransportFailed, "build request failed", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return classifyHTTPCallError(op, "qdrant request failed", err)
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 10*maxErrorBodyBytes))
	if readErr != nil {
		return errkind.Wrap(errkind.Transient, opErr(op, OperationErrorDecodeFailed, "read response failed", readErr))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		kind := errkind.Transient
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			kind = errkind.Permanent
		}
		return errkind.Wrap(kind, &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("qdrant http status=%d body=%q", resp.StatusCode, truncateBody(raw)),
		})
	}

	var envelope qdrantEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return errkind.Wrap(errkind.Transient, opErr(op, OperationErrorDecodeFailed, "decode qdrant envelope failed", err))
	}
	if statusErr := parseEnvelopeStatus(envelope.Status); statusErr != "" {
		return errkind.Wrap(errkind.Transient, &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    statusErr,
		})
	}

	if out == nil {
		return nil
	}
	if len(envelope.Result) == 0 || string(envelope.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return errkind.Wrap(errkind.Transient, opErr(op, OperationErrorDecodeFailed, "decode qdrant result failed", err))
	}
	return nil
}

func classifyHTTPCallError(op, message string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errkind.Wrap(errkind.Transient, opErr(op, OperationErrorTimeout, message, err))
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errkind.Wrap(errkind.Transient, opErr(op, OperationErrorTimeout, message, err))
	}
	return errkind.Wrap(errkind.Transient, opErr(op, OperationErrorTransportFailed, message, err))
}

func parseEnvelopeStatus(raw json.RawMessage) string {
	status := strings.TrimSpace(string(raw))
	if status == "" || status == "null" {
		return ""
	}

	var statusString string
	if err := json.Unmarshal(raw, &statusString); err == nil {
		if strings.EqualFold(statusString, "ok") {
			return ""
		}
		return fmt.Sprintf("qdrant status=%q", statusString)
	}

	var statusObject struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &statusObject); err == nil {
		if strings.TrimSpace(statusObject.Error) != "" {
			return strings.TrimSpace(statusObject.Error)
		}
	}
	return ""
}

func truncateBody(raw []byte) string {
	if len(raw) <= maxErrorBodyBytes {
		return string(raw)
	}
	return string(raw[:maxErrorBodyBytes]) + "...(truncated)"
}
