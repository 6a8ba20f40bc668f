package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mnemo-db/mnemo/pkg/storage"
)

// adminListLimit bounds every admin listing call (spec §9: "no
// documented bound beyond the 10 000-row page" — mnemo fixes the page
// at that bound rather than leaving it unbounded).
const adminListLimit = 10000

func (s *Server) handleAdminStats(c *gin.Context) {
	memories, err := s.Storage.ListMemories(c.Request.Context(), storage.MemoryFilter{Limit: adminListLimit, IncludeDeleted: true})
	if err != nil {
		writeError(c, s.logger(), err)
		return
	}
	agents := make(map[string]bool)
	var active, deleted, quarantined int64
	for _, m := range memories {
		agents[m.AgentID] = true
		if m.DeletedAt != nil {
			deleted++
		} else {
			active++
		}
		if m.Quarantined {
			quarantined++
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"total_memories":       len(memories),
		"active_memories":      active,
		"deleted_memories":     deleted,
		"quarantined_memories": quarantined,
		"agent_count":          len(agents),
	})
}

func (s *Server) handleAdminAgents(c *gin.Context) {
	memories, err := s.Storage.ListMemories(c.Request.Context(), storage.MemoryFilter{Limit: adminListLimit, IncludeDeleted: true})
	if err != nil {
		writeError(c, s.logger(), err)
		return
	}
	counts := make(map[string]int)
	var order []string
	for _, m := range memories {
		if _, ok := counts[m.AgentID]; !ok {
			order = append(order, m.AgentID)
		}
		counts[m.AgentID]++
	}
	agents := make([]gin.H, 0, len(order))
	for _, id := range order {
		agents = append(agents, gin.H{"agent_id": id, "memory_count": counts[id]})
	}
	c.JSON(http.StatusOK, gin.H{"agents": agents})
}

func (s *Server) handleAdminMemories(c *gin.Context) {
	filter := storage.MemoryFilter{
		AgentID:        c.Query("agent_id"),
		IncludeDeleted: c.Query("include_deleted") == "true",
		Limit:          adminListLimit,
	}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n < adminListLimit {
			filter.Limit = n
		}
	}
	memories, err := s.Storage.ListMemories(c.Request.Context(), filter)
	if err != nil {
		writeError(c, s.logger(), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"memories": memories, "total": len(memories)})
}

// handleAdminEvents enumerates events by paging over per-agent lists,
// matching spec §9's documented "not intended to be cheap" admin
// enumeration shape: it walks every agent discovered via ListMemories
// and lists that agent's events, rather than a dedicated cross-agent
// event listing (storage.Backend has none).
func (s *Server) handleAdminEvents(c *gin.Context) {
	agentID := c.Query("agent_id")
	var events []any
	if agentID != "" {
		list, err := s.Storage.ListEventsByAgent(c.Request.Context(), agentID, adminListLimit)
		if err != nil {
			writeError(c, s.logger(), err)
			return
		}
		for _, e := range list {
			events = append(events, e)
		}
		c.JSON(http.StatusOK, gin.H{"events": events, "total": len(events)})
		return
	}

	memories, err := s.Storage.ListMemories(c.Request.Context(), storage.MemoryFilter{Limit: adminListLimit, IncludeDeleted: true})
	if err != nil {
		writeError(c, s.logger(), err)
		return
	}
	seen := make(map[string]bool)
	for _, m := range memories {
		if seen[m.AgentID] {
			continue
		}
		seen[m.AgentID] = true
		list, err := s.Storage.ListEventsByAgent(c.Request.Context(), m.AgentID, adminListLimit)
		if err != nil {
			s.logger().Warn("admin events: listing agent events failed", "agent_id", m.AgentID, "error", err)
			continue
		}
		for _, e := range list {
			events = append(events, e)
		}
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "total": len(events)})
}

func (s *Server) setQuarantine(c *gin.Context, quarantined bool, reason string) {
	ctx := c.Request.Context()
	record, err := s.Storage.GetMemory(ctx, c.Param("id"))
	if err != nil {
		writeError(c, s.logger(), err)
		return
	}
	record.Quarantined = quarantined
	record.QuarantineReason = reason
	if err := s.Storage.UpdateMemory(ctx, record); err != nil {
		writeError(c, s.logger(), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": record.ID, "quarantined": record.Quarantined})
}

func (s *Server) handleAdminQuarantine(c *gin.Context) {
	s.setQuarantine(c, true, c.Query("reason"))
}

func (s *Server) handleAdminUnquarantine(c *gin.Context) {
	s.setQuarantine(c, false, "")
}
