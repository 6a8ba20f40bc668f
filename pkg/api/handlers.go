package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mnemo-db/mnemo/pkg/model"
	"github.com/mnemo-db/mnemo/pkg/query"
)

type rememberBody struct {
	AgentID       string         `json:"agent_id"`
	Content       string         `json:"content" binding:"required"`
	MemoryType    string         `json:"memory_type"`
	Scope         string         `json:"scope"`
	Importance    float64        `json:"importance"`
	Tags          []string       `json:"tags"`
	Metadata      map[string]any `json:"metadata"`
	SourceType    string         `json:"source_type"`
	SourceID      string         `json:"source_id"`
	OrgID         string         `json:"org_id"`
	ThreadID      string         `json:"thread_id"`
	TTLSeconds    int64          `json:"ttl_seconds"`
	DecayRate     float64        `json:"decay_rate"`
	DecayFunction string         `json:"decay_function"`
	CreatedBy     string         `json:"created_by"`
}

func (s *Server) handleRemember(c *gin.Context) {
	var body rememberBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := s.Engine.Remember(c.Request.Context(), query.RememberRequest{
		AgentID:       body.AgentID,
		Content:       body.Content,
		MemoryType:    model.MemoryType(body.MemoryType),
		Scope:         model.Scope(body.Scope),
		Importance:    body.Importance,
		Tags:          body.Tags,
		Metadata:      body.Metadata,
		SourceType:    model.SourceType(body.SourceType),
		SourceID:      body.SourceID,
		OrgID:         body.OrgID,
		ThreadID:      body.ThreadID,
		TTLSeconds:    body.TTLSeconds,
		DecayRate:     body.DecayRate,
		DecayFunction: model.DecayFunction(body.DecayFunction),
		CreatedBy:     body.CreatedBy,
	})
	if err != nil {
		writeError(c, s.logger(), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": result.ID, "content_hash": result.ContentHash})
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseFloatsCSV(s string) []float64 {
	if s == "" {
		return nil
	}
	var out []float64
	for _, p := range strings.Split(s, ",") {
		if f, err := strconv.ParseFloat(strings.TrimSpace(p), 64); err == nil {
			out = append(out, f)
		}
	}
	return out
}

func (s *Server) handleRecall(c *gin.Context) {
	q := c.Request.URL.Query()
	req := query.RecallRequest{
		Query:           q.Get("query"),
		AgentID:         q.Get("agent_id"),
		MemoryType:      model.MemoryType(q.Get("memory_type")),
		Scope:           model.Scope(q.Get("scope")),
		OrgID:           q.Get("org_id"),
		Tags:            splitCSV(q.Get("tags")),
		Strategy:        query.Strategy(q.Get("strategy")),
		HybridWeights:   parseFloatsCSV(q.Get("hybrid_weights")),
	}
	for _, mt := range splitCSV(q.Get("memory_types")) {
		req.MemoryTypes = append(req.MemoryTypes, model.MemoryType(mt))
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			req.Limit = n
		}
	}
	if v := q.Get("min_importance"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			req.MinImportance = f
		}
	}
	if v := q.Get("rrf_k"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			req.RRFK = f
		}
	}
	if v := q.Get("as_of"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			req.AsOf = &t
		}
	}

	result, err := s.Engine.Recall(c.Request.Context(), req)
	if err != nil {
		writeError(c, s.logger(), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"memories": result.Memories, "total": result.Total})
}

func (s *Server) handleGetMemory(c *gin.Context) {
	record, err := s.Storage.GetMemory(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, s.logger(), err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (s *Server) handleForgetOne(c *gin.Context) {
	strategy := c.Query("strategy")
	if strategy == "" {
		strategy = string(query.ForgetSoftDelete)
	}
	result, err := s.Engine.Forget(c.Request.Context(), query.ForgetRequest{
		AgentID:   c.Query("agent_id"),
		MemoryIDs: []string{c.Param("id")},
		Strategy:  query.ForgetStrategy(strategy),
	})
	if err != nil {
		writeError(c, s.logger(), err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type shareBody struct {
	TargetAgentIDs []string `json:"target_agent_ids"`
	TargetAgentID  string   `json:"target_agent_id"`
	Permission     string   `json:"permission"`
	ExpiresInHours float64  `json:"expires_in_hours"`
	AgentID        string   `json:"agent_id"`
}

func (s *Server) handleShare(c *gin.Context) {
	var body shareBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	permission, _ := model.ParsePermission(body.Permission)
	result, err := s.Engine.Share(c.Request.Context(), query.ShareRequest{
		AgentID:        body.AgentID,
		MemoryID:       c.Param("id"),
		TargetAgentIDs: body.TargetAgentIDs,
		TargetAgentID:  body.TargetAgentID,
		Permission:     permission,
		ExpiresInHours: body.ExpiresInHours,
	})
	if err != nil {
		writeError(c, s.logger(), err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type checkpointBody struct {
	AgentID       string         `json:"agent_id"`
	ThreadID      string         `json:"thread_id"`
	BranchName    string         `json:"branch_name"`
	StateSnapshot map[string]any `json:"state_snapshot"`
	Label         string         `json:"label"`
	Metadata      map[string]any `json:"metadata"`
}

func (s *Server) handleCheckpoint(c *gin.Context) {
	var body checkpointBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	checkpoint, err := s.Engine.Checkpoint(c.Request.Context(), query.CheckpointRequest{
		AgentID:       body.AgentID,
		ThreadID:      body.ThreadID,
		BranchName:    body.BranchName,
		StateSnapshot: body.StateSnapshot,
		Label:         body.Label,
		Metadata:      body.Metadata,
	})
	if err != nil {
		writeError(c, s.logger(), err)
		return
	}
	c.JSON(http.StatusOK, checkpoint)
}

type branchBody struct {
	AgentID            string `json:"agent_id"`
	SourceCheckpointID string `json:"source_checkpoint_id"`
	SourceBranch       string `json:"source_branch"`
	NewBranchName      string `json:"new_branch_name" binding:"required"`
}

func (s *Server) handleBranch(c *gin.Context) {
	var body branchBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	checkpoint, err := s.Engine.Branch(c.Request.Context(), query.BranchRequest{
		AgentID:            body.AgentID,
		SourceCheckpointID: body.SourceCheckpointID,
		SourceBranch:       body.SourceBranch,
		NewBranchName:      body.NewBranchName,
	})
	if err != nil {
		writeError(c, s.logger(), err)
		return
	}
	c.JSON(http.StatusOK, checkpoint)
}

type mergeBody struct {
	AgentID       string   `json:"agent_id"`
	SourceBranch  string   `json:"source_branch" binding:"required"`
	TargetBranch  string   `json:"target_branch" binding:"required"`
	Strategy      string   `json:"strategy"`
	CherryPickIDs []string `json:"cherry_pick_ids"`
}

func (s *Server) handleMerge(c *gin.Context) {
	var body mergeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	checkpoint, err := s.Engine.Merge(c.Request.Context(), query.MergeRequest{
		AgentID:       body.AgentID,
		SourceBranch:  body.SourceBranch,
		TargetBranch:  body.TargetBranch,
		Strategy:      query.MergeStrategy(body.Strategy),
		CherryPickIDs: body.CherryPickIDs,
	})
	if err != nil {
		writeError(c, s.logger(), err)
		return
	}
	c.JSON(http.StatusOK, checkpoint)
}

type replayBody struct {
	AgentID      string `json:"agent_id"`
	CheckpointID string `json:"checkpoint_id"`
	ThreadID     string `json:"thread_id"`
}

func (s *Server) handleReplay(c *gin.Context) {
	var body replayBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := s.Engine.Replay(c.Request.Context(), query.ReplayRequest{
		AgentID:      body.AgentID,
		CheckpointID: body.CheckpointID,
		ThreadID:     body.ThreadID,
	})
	if err != nil {
		writeError(c, s.logger(), err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type verifyBody struct {
	AgentID  string `json:"agent_id"`
	ThreadID string `json:"thread_id"`
}

func (s *Server) handleVerify(c *gin.Context) {
	var body verifyBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	memories, events, err := s.Engine.Verify(c.Request.Context(), query.VerifyRequest{
		AgentID:  body.AgentID,
		ThreadID: body.ThreadID,
	})
	if err != nil {
		writeError(c, s.logger(), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"memories": memories, "events": events})
}

type delegateBody struct {
	DelegatorID    string   `json:"delegator_id" binding:"required"`
	DelegateID     string   `json:"delegate_id" binding:"required"`
	Permission     string   `json:"permission" binding:"required"`
	MemoryIDs      []string `json:"memory_ids"`
	Tags           []string `json:"tags"`
	MaxDepth       int      `json:"max_depth"`
	ExpiresInHours float64  `json:"expires_in_hours"`
}

func (s *Server) handleDelegate(c *gin.Context) {
	var body delegateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	delegation, err := s.Engine.Delegate(c.Request.Context(), query.DelegateRequest{
		DelegatorID:    body.DelegatorID,
		DelegateID:     body.DelegateID,
		Permission:     body.Permission,
		MemoryIDs:      body.MemoryIDs,
		Tags:           body.Tags,
		MaxDepth:       body.MaxDepth,
		ExpiresInHours: body.ExpiresInHours,
	})
	if err != nil {
		writeError(c, s.logger(), err)
		return
	}
	c.JSON(http.StatusOK, delegation)
}
