// search.go handles filtered search over the mirrored videos.
package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/Shimizu-Technology/holo-search-api/internal/models"
	"github.com/Shimizu-Technology/holo-search-api/internal/query"
)

// searchRequest is a validated search: the filter plus its page.
type searchRequest struct {
	filter query.FilterRequest
	limit  int
	offset int
}

// Search returns one page of matching videos and the total match count.
// GET /api/search?q=&channel_id=&limit=&offset=&collab=&collab_mode=
//
//	&hide_unarchived=&filter_dates=&filter_years=&filter_months=&video_type=
//
// Invalid filter input is rejected with 422 before any query runs.
func (h *Handler) Search(c *gin.Context) {
	req, ok := h.bindSearch(c, h.opts.SearchDefaultLimit, h.opts.SearchMaxLimit)
	if !ok {
		return
	}

	log.Printf("🔍 Search: q=%q channel=%s collab=%v mode=%s hideUnarchived=%v dates=%d years=%v months=%v type=%s",
		req.filter.TextQuery, req.filter.ChannelID, req.filter.CollaboratorNames, req.filter.CollaboratorMode,
		req.filter.HideUnarchived, len(req.filter.Dates), req.filter.Years, req.filter.Months, req.filter.VideoType)

	items, total, err := h.search(c.Request.Context(), req)
	if err != nil {
		log.Printf("❌ Search failed: %v", err)
		errorJSON(c, http.StatusInternalServerError, "search_failed", "Search failed")
		return
	}

	c.JSON(http.StatusOK, models.SearchResponse{Items: items, Total: total})
}

// bindSearch parses and validates the query string. On failure it writes
// the 422 response and returns false.
func (h *Handler) bindSearch(c *gin.Context, defaultLimit, maxLimit int) (searchRequest, bool) {
	var params models.SearchParams
	if err := c.ShouldBindQuery(&params); err != nil {
		errorJSON(c, http.StatusUnprocessableEntity, "invalid_filter", "limit and offset must be integers")
		return searchRequest{}, false
	}

	filter, err := query.ParseSearch(params)
	if err == nil {
		var limit, offset int
		limit, offset, err = query.ParsePage(params.Limit, params.Offset, defaultLimit, maxLimit)
		if err == nil {
			return searchRequest{filter: filter, limit: limit, offset: offset}, true
		}
	}

	if errors.Is(err, query.ErrInvalidFilter) {
		errorJSON(c, http.StatusUnprocessableEntity, "invalid_filter", err.Error())
	} else {
		errorJSON(c, http.StatusBadRequest, "invalid_request", err.Error())
	}
	return searchRequest{}, false
}

// search runs the page query and the count concurrently.
//
// Go Pattern: errgroup.WithContext runs both lookups in parallel and
// cancels the other as soon as one fails.
func (h *Handler) search(ctx context.Context, req searchRequest) ([]models.Video, int, error) {
	pred := query.Build(req.filter)

	var items []models.Video
	var total int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = h.Store.Query(gctx, pred, req.limit, req.offset)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = h.Store.Count(gctx, pred)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	if items == nil {
		items = []models.Video{}
	}
	return items, total, nil
}
