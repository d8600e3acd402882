package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kahala-purplemaia/Real-Time-Shelter-Availability-App/internal/model"
	"github.com/kahala-purplemaia/Real-Time-Shelter-Availability-App/internal/shelter"
)

func harbor() model.Shelter {
	return model.Shelter{ID: "S1", Name: "Harbor House", TotalBeds: 20, AvailableBeds: 5, Revision: 3}
}

func newContext() (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	rec := httptest.NewRecorder()
	return e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec), rec
}

func TestWriteError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{"not found", shelter.ErrNotFound, http.StatusNotFound, `"shelter not found"`},
		{"unauthorized", shelter.ErrUnauthorized, http.StatusUnauthorized, `"unauthorized"`},
		{"validation", &shelter.ValidationError{Field: "available_beds", Reason: "exceeds total_beds"}, http.StatusUnprocessableEntity, `"field":"available_beds"`},
		{"bare invalid", shelter.ErrInvalidMutation, http.StatusUnprocessableEntity, `invalid`},
		{"conflict", &shelter.ConflictError{Expected: 2, Current: harbor()}, http.StatusConflict, `"status":"AVAILABLE"`},
		{"canceled", context.Canceled, statusClientClosed, ``},
		{"infra", errors.New("db down"), http.StatusInternalServerError, `"internal error"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, rec := newContext()
			require.NoError(t, writeError(c, tc.err))
			assert.Equal(t, tc.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.body)
			assert.NotContains(t, rec.Body.String(), "db down", "infra details stay in the logs")
		})
	}
}

func TestShelterView_FlattensRecord(t *testing.T) {
	b, err := json.Marshal(newShelterView(harbor()))
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, "S1", m["id"])
	assert.Equal(t, float64(3), m["revision"])
	assert.Equal(t, "AVAILABLE", m["status"])
}

func TestWriteEvent(t *testing.T) {
	var sb strings.Builder
	require.NoError(t, writeEvent(&sb, "change", "S1:4", echo.Map{"a": 1}))
	assert.Equal(t, "id: S1:4\nevent: change\ndata: {\"a\":1}\n\n", sb.String())

	sb.Reset()
	require.NoError(t, writeEvent(&sb, "snapshot", "", []int{}))
	assert.Equal(t, "event: snapshot\ndata: []\n\n", sb.String())
}

func TestPump_DeliversThenOverrun(t *testing.T) {
	n := shelter.NewNotifier(2, nil, nil)
	defer n.Close()
	sub := n.Subscribe()
	defer sub.Close()

	// Fill the buffer, then overflow it before the pump starts reading.
	for rev := int64(4); rev <= 6; rev++ {
		r := harbor()
		r.Revision = rev
		n.Publish(model.NewChangeEvent(r))
	}

	c, rec := newContext()
	err := pump(context.Background(), c.Response(), sub, time.Minute)
	assert.ErrorIs(t, err, shelter.ErrSubscriberOverrun)
	body := rec.Body.String()
	assert.Contains(t, body, "event: overrun")
	assert.NotContains(t, body, "event: change", "queued events are discarded on overrun")
}

func TestPump_KeepAliveAndCancel(t *testing.T) {
	n := shelter.NewNotifier(4, nil, nil)
	defer n.Close()
	sub := n.Subscribe()
	defer sub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	c, rec := newContext()

	r := harbor()
	r.Revision = 4
	n.Publish(model.NewChangeEvent(r))

	err := pump(ctx, c.Response(), sub, 20*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	body := rec.Body.String()
	assert.Contains(t, body, "id: S1:4\nevent: change\n")
	assert.Contains(t, body, ": keepalive\n\n")
}

func TestPump_NotifierClosed(t *testing.T) {
	n := shelter.NewNotifier(4, nil, nil)
	sub := n.Subscribe()
	n.Close()

	c, _ := newContext()
	err := pump(context.Background(), c.Response(), sub, time.Minute)
	assert.ErrorIs(t, err, shelter.ErrSubscriptionClosed)
}

type fakePinger struct{ err error }

func (p fakePinger) PingContext(context.Context) error { return p.err }

func TestHealth_Verbose(t *testing.T) {
	st := shelter.NewStore(nil, nil)
	e := echo.New()
	e.GET("/healthz", Health(st, nil, fakePinger{err: errors.New("down")}))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz?verbose=1", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "liveness does not depend on the backend")
	assert.JSONEq(t, `{"status":"ok","shelters":0,"database":"unreachable"}`, rec.Body.String())
}
