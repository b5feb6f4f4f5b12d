package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	bulkpayrolldomain "github.com/smallbiznis/workforce/internal/bulkpayroll/domain"
)

func (s *Server) StreamBulkPayrollEvents(c *gin.Context) {
	if s.liveEvents == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	rawID := s.batchParam(c)
	id, err := snowflake.ParseString(rawID)
	if err != nil || id == 0 {
		AbortWithError(c, bulkpayrolldomain.ErrInvalidID)
		return
	}

	// Subscribe before reading the batch: the hub keeps no stream for a batch
	// nobody watches, so a run finishing in between would otherwise go unseen.
	subscription, backlog, err := s.liveEvents.Subscribe(id.String())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	defer subscription.Close()

	batch, err := s.bulkPayrollSvc.GetBatch(c.Request.Context(), rawID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	writer := c.Writer
	headers := writer.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	headers.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	flusher, ok := writer.(http.Flusher)
	if !ok {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	if _, err := io.WriteString(writer, "retry: 2000\n\n"); err != nil {
		return
	}

	if batch.Status.Terminal() {
		if err := writeProgressEvent(writer, snapshot(batch)); err == nil {
			flusher.Flush()
		}
		return
	}
	if len(backlog) == 0 {
		backlog = []bulkpayrolldomain.Progress{snapshot(batch)}
	}
	for _, event := range backlog {
		if err := writeProgressEvent(writer, event); err != nil {
			return
		}
	}
	flusher.Flush()

	ctx := c.Request.Context()
	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-subscription.Events():
			if !ok {
				return
			}
			if err := writeProgressEvent(writer, event); err != nil {
				return
			}
			flusher.Flush()
			if event.ItemID == 0 && event.Status.Terminal() {
				return
			}
		case <-heartbeat.C:
			if _, err := io.WriteString(writer, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func snapshot(batch bulkpayrolldomain.Batch) bulkpayrolldomain.Progress {
	return bulkpayrolldomain.Progress{
		BatchID:     batch.ID,
		Status:      batch.Status,
		Total:       batch.TotalRecords,
		Processed:   batch.ProcessedRecords,
		Succeeded:   batch.SucceededRecords,
		Failed:      batch.FailedRecords,
		TotalAmount: batch.TotalAmount,
		At:          batch.UpdatedAt,
	}
}

func writeProgressEvent(w io.Writer, event bulkpayrolldomain.Progress) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: progress\ndata: %s\n\n", data)
	return err
}
