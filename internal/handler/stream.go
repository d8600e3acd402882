package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/kahala-purplemaia/Real-Time-Shelter-Availability-App/internal/model"
	"github.com/kahala-purplemaia/Real-Time-Shelter-Availability-App/internal/shelter"
)

// changeFrame is the data of one "change" event on the stream.
type changeFrame struct {
	ID       string      `json:"id"`
	Revision int64       `json:"revision"`
	Record   shelterView `json:"record"`
}

// Stream pushes live changes over Server-Sent Events.  The stream opens
// with a "snapshot" event holding every record, taken after subscribing so
// nothing committed in between is lost.  Clients drop "change" events
// whose revision is not newer than the one they hold.  A subscriber that
// falls too far behind gets an "overrun" event and the stream ends; the
// client reconnects and starts from a fresh snapshot.
func (h *ShelterHandler) Stream(c echo.Context) error {
	ctx := c.Request().Context()
	list, sub, err := h.Gateway.Follow(ctx)
	if err != nil {
		return writeError(c, err)
	}
	defer sub.Close()

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set(echo.HeaderCacheControl, "no-cache")
	w.Header().Set(echo.HeaderConnection, "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // disable nginx buffering
	w.WriteHeader(http.StatusOK)

	views := make([]shelterView, 0, len(list))
	for _, s := range list {
		views = append(views, newShelterView(s))
	}
	if err := writeEvent(w, "snapshot", "", views); err != nil {
		return nil
	}
	w.Flush()

	log := h.Log.With(zap.String("subscription", sub.ID()))
	log.Debug("stream opened")
	err = pump(ctx, w, sub, h.KeepAlive)
	switch {
	case errors.Is(err, shelter.ErrSubscriberOverrun):
		log.Info("stream overrun")
	case err != nil && !errors.Is(err, context.Canceled):
		log.Debug("stream closed", zap.Error(err))
	default:
		log.Debug("stream closed")
	}
	return nil
}

// pump copies events from sub to w until the request ends, the write
// fails, or the subscription terminates.  Silence longer than keepAlive
// produces a comment line so proxies keep the connection open.
func pump(ctx context.Context, w *echo.Response, sub *shelter.Subscription, keepAlive time.Duration) error {
	for {
		waitCtx, cancel := context.WithTimeout(ctx, keepAlive)
		ev, err := sub.Next(waitCtx)
		cancel()
		switch {
		case err == nil:
			if err := writeEvent(w, "change", eventID(ev), changeFrame{ID: ev.ID, Revision: ev.Revision, Record: newShelterView(ev.Record)}); err != nil {
				return err
			}
		case errors.Is(err, shelter.ErrSubscriberOverrun):
			_ = writeEvent(w, "overrun", "", echo.Map{"error": "subscriber overrun", "resync": "/v1/shelters"})
			w.Flush()
			return err
		case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
			if _, err := io.WriteString(w, ": keepalive\n\n"); err != nil {
				return err
			}
		default:
			return err
		}
		w.Flush()
	}
}

func eventID(ev model.ChangeEvent) string {
	return ev.ID + ":" + strconv.FormatInt(ev.Revision, 10)
}

func writeEvent(w io.Writer, name, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if id != "" {
		if _, err := fmt.Fprintf(w, "id: %s\n", id); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}
