package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/safecity/safecity-go/internal/datastore"
	"github.com/safecity/safecity-go/internal/threat"
)

const maxRecordsPerQuery = 200

// RecordDTO is the wire form of one analysis record.
type RecordDTO struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	Timestamp      time.Time `json:"timestamp"`
	Type           string    `json:"type"`
	ThreatLevel    string    `json:"threatLevel"`
	ContentSnippet string    `json:"contentSnippet"`
	Details        string    `json:"details"`
}

// AudioAnalyzeRequest is the body of POST /api/analyze/audio.
type AudioAnalyzeRequest struct {
	UserID        string  `json:"userId"`
	AverageVolume float64 `json:"average_volume"`
}

// IncidentRequest is the body of POST /api/analyze/video and /analyze/text.
type IncidentRequest struct {
	UserID string `json:"userId"`
	Text   string `json:"text,omitempty"`
	Level  string `json:"level"`
	Reason string `json:"reason"`
}

func toRecordDTO(r *datastore.Record) RecordDTO {
	return RecordDTO{
		ID:             r.ID,
		UserID:         r.UserID,
		Timestamp:      r.Timestamp,
		Type:           r.Type,
		ThreatLevel:    r.ThreatLevel,
		ContentSnippet: r.ContentSnippet,
		Details:        r.Details,
	}
}

// GetRecords handles GET /api/records/:userId, newest first. Responses are
// cached briefly and invalidated whenever a record is written for the user.
func (c *Controller) GetRecords(ctx echo.Context) error {
	userID := ctx.Param("userId")
	if userID == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"message": "userId is required"})
	}

	cacheKey := "records:" + userID
	if cached, found := c.recordCache.Get(cacheKey); found {
		return ctx.JSON(http.StatusOK, cached)
	}

	records, err := c.ds.GetRecords(userID, maxRecordsPerQuery)
	if err != nil {
		c.log.Error("record fetch failed", "user", userID, "error", err)
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"message": "internal error"})
	}

	dtos := make([]RecordDTO, 0, len(records))
	for i := range records {
		dtos = append(dtos, toRecordDTO(&records[i]))
	}

	c.recordCache.SetDefault(cacheKey, dtos)
	return ctx.JSON(http.StatusOK, dtos)
}

// AnalyzeAudio handles POST /api/analyze/audio. The amplitude threshold
// model maps the average volume to a level, persists the result and returns
// the level to the monitor.
func (c *Controller) AnalyzeAudio(ctx echo.Context) error {
	var req AudioAnalyzeRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"message": "invalid request body"})
	}
	if req.UserID == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"message": "userId is required"})
	}

	level := c.classifyAmplitude(req.AverageVolume)

	record := &datastore.Record{
		ID:             uuid.NewString(),
		UserID:         req.UserID,
		Timestamp:      time.Now(),
		Type:           string(threat.InputAudio),
		ThreatLevel:    string(level),
		ContentSnippet: fmt.Sprintf("Average amplitude %.1f", req.AverageVolume),
		SourceNode:     c.Settings.Main.Name,
	}
	if !c.saveRecord(ctx, record) {
		return nil
	}

	return ctx.JSON(http.StatusOK, map[string]string{"level": string(level)})
}

// classifyAmplitude applies the configured thresholds to a 0..255 average
// amplitude. The weapon threshold wins when both are crossed.
func (c *Controller) classifyAmplitude(volume float64) threat.Level {
	thresholds := c.Settings.Analysis
	switch {
	case thresholds.WeaponThreshold > 0 && volume >= thresholds.WeaponThreshold:
		return threat.LevelWeapon
	case thresholds.ViolenceThreshold > 0 && volume >= thresholds.ViolenceThreshold:
		return threat.LevelViolence
	default:
		return threat.LevelSafe
	}
}

// AnalyzeVideo handles POST /api/analyze/video: persists a frame
// classification already performed by the monitor.
func (c *Controller) AnalyzeVideo(ctx echo.Context) error {
	return c.saveIncident(ctx, threat.InputVideo)
}

// AnalyzeText handles POST /api/analyze/text.
func (c *Controller) AnalyzeText(ctx echo.Context) error {
	return c.saveIncident(ctx, threat.InputText)
}

func (c *Controller) saveIncident(ctx echo.Context, kind threat.InputKind) error {
	var req IncidentRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"message": "invalid request body"})
	}
	if req.UserID == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"message": "userId is required"})
	}

	level, err := threat.ParseLevel(req.Level)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"message": "unknown threat level"})
	}

	snippet := req.Reason
	if kind == threat.InputText {
		snippet = req.Text
	}

	record := &datastore.Record{
		ID:             uuid.NewString(),
		UserID:         req.UserID,
		Timestamp:      time.Now(),
		Type:           string(kind),
		ThreatLevel:    string(level),
		ContentSnippet: snippet,
		Details:        req.Reason,
		SourceNode:     c.Settings.Main.Name,
	}
	if !c.saveRecord(ctx, record) {
		return nil
	}

	return ctx.JSON(http.StatusOK, map[string]any{"success": true, "id": record.ID})
}

// saveRecord persists the record and invalidates the user's cached history.
// On failure it writes the error response itself and reports false.
func (c *Controller) saveRecord(ctx echo.Context, record *datastore.Record) bool {
	if err := c.ds.SaveRecord(record); err != nil {
		c.log.Error("record save failed", "user", record.UserID, "type", record.Type, "error", err)
		_ = ctx.JSON(http.StatusInternalServerError, map[string]string{"message": "internal error"})
		return false
	}
	c.recordCache.Delete("records:" + record.UserID)
	return true
}
