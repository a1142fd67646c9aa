package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/webdc/firstblood/internal/metrics"
	"github.com/webdc/firstblood/internal/models"
	"github.com/webdc/firstblood/internal/store"
)

// RegisterFirstBloodRoutes registers the record endpoints.
//
// POST /firstbloods/add/     — create a record (duplicate pair → 400)
// GET  /firstbloods/all/     — list, or claim-and-list with update_was_sent=true
// GET  /firstbloods/filter/  — same, narrowed by event/challenge/time filters
func RegisterFirstBloodRoutes(r gin.IRoutes, st *store.SQLiteStore) {
	r.POST("/firstbloods/add/", func(c *gin.Context) {
		var req models.CreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		stored, err := st.Insert(c.Request.Context(), req.Record(time.Now()))
		if err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				metrics.Duplicates.Inc()
				c.JSON(http.StatusBadRequest, gin.H{
					"error": "a record with the same event_id and challenge_id already exists",
				})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db insert failed"})
			return
		}

		metrics.Created.Inc()
		c.JSON(http.StatusCreated, stored)
	})

	r.GET("/firstbloods/all/", func(c *gin.Context) {
		listFirstBloods(c, st, store.Filter{})
	})

	r.GET("/firstbloods/filter/", func(c *gin.Context) {
		filter, err := filterFromQuery(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		listFirstBloods(c, st, filter)
	})
}

// listFirstBloods serves both modes of the list endpoints. With
// update_was_sent=true it returns only previously-unsent records and marks
// them sent in the same store transaction, so a record is handed to at most
// one claimer.
func listFirstBloods(c *gin.Context, st *store.SQLiteStore, filter store.Filter) {
	claim := false
	if raw := c.Query("update_was_sent"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "update_was_sent must be a boolean"})
			return
		}
		claim = v
	}

	var (
		recs []models.FirstBlood
		err  error
	)
	if claim {
		recs, err = st.Claim(c.Request.Context(), filter)
		metrics.Claimed.Add(float64(len(recs)))
	} else {
		recs, err = st.List(c.Request.Context(), filter)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db query failed"})
		return
	}
	c.JSON(http.StatusOK, recs)
}

// filterFromQuery parses the optional, independently combinable filters.
// Times accept "2006-01-02 15:04:05" (documented) or RFC3339.
func filterFromQuery(c *gin.Context) (store.Filter, error) {
	var f store.Filter

	if raw := c.Query("event_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return f, errors.New("event_id must be an integer")
		}
		f.EventID = &id
	}
	if raw := c.Query("challenge_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return f, errors.New("challenge_id must be an integer")
		}
		f.ChallengeID = &id
	}
	if raw := c.Query("start_time"); raw != "" {
		t, err := models.ParseTime(raw)
		if err != nil {
			return f, errors.New("start_time must be YYYY-MM-DD HH:MM:SS")
		}
		f.Start = &t
	}
	if raw := c.Query("end_time"); raw != "" {
		t, err := models.ParseTime(raw)
		if err != nil {
			return f, errors.New("end_time must be YYYY-MM-DD HH:MM:SS")
		}
		f.End = &t
	}
	return f, nil
}
