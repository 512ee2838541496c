package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smart_irrigation/internal/apperr"
	"smart_irrigation/internal/models"
)

func newServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", nil, 2*time.Second, nil)
}

func TestClient_Latest(t *testing.T) {
	ts := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, LatestPath, r.URL.Path)
		assert.Equal(t, "req-1", r.Header.Get(RequestIDHeader))
		_, _ = io.WriteString(w, `{"soilMoisture":512.5,"pumpStatus":"ON","temperature":null,"humidity":61,
			"timestamp":"2026-05-01T12:00:00Z","lastPumpCommandTime":1714564800000,"pumpCooldownSeconds":30}`)
	})

	snap, err := c.Latest(WithRequestID(context.Background(), "req-1"))
	require.NoError(t, err)
	require.NotNil(t, snap.SoilMoisture)
	assert.Equal(t, 512.5, *snap.SoilMoisture)
	assert.Nil(t, snap.Temperature)
	assert.Equal(t, models.PumpOn, snap.PumpStatus)
	assert.True(t, ts.Equal(snap.Timestamp))
	assert.Equal(t, int64(1714564800000), snap.LastPumpCommandTime)
	assert.Equal(t, 30, snap.PumpCooldownSeconds)
}

func TestClient_HistoryEmpty(t *testing.T) {
	for _, body := range []string{`[]`, `null`, ``} {
		t.Run("body "+body, func(t *testing.T) {
			c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, body)
			})
			hist, err := c.History(context.Background())
			require.NoError(t, err)
			assert.NotNil(t, hist)
			assert.Empty(t, hist)
		})
	}
}

func TestClient_HistoryOrder(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"timestamp":"2026-05-01T12:00:00Z","pumpStatus":"OFF"},
			{"timestamp":"2026-05-01T12:00:05Z","pumpStatus":"ON"}]`)
	})
	hist, err := c.History(context.Background())
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.True(t, hist[0].Timestamp.Before(hist[1].Timestamp))
}

func TestClient_Weather(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, WeatherPath, r.URL.Path)
		_, _ = io.WriteString(w, `{"temperature":24.3,"description":"scattered clouds","icon":"03d",
			"city":"Nairobi","humidity":55,"wind_speed":3.1,"timestamp":"2026-05-01T12:00:00Z"}`)
	})
	wx, err := c.Weather(context.Background())
	require.NoError(t, err)
	assert.True(t, wx.Available())
	assert.Equal(t, "http://openweathermap.org/img/wn/03d@2x.png", wx.IconURL())
	require.NotNil(t, wx.WindSpeed)
	assert.Equal(t, 3.1, *wx.WindSpeed)
}

func TestClient_SendCommand(t *testing.T) {
	var got models.CommandRequest
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"success":true,"message":"Pump turned ON"}`)
	})

	res, err := c.SendCommand(context.Background(), models.ActionPumpOn)
	require.NoError(t, err)
	assert.Equal(t, models.ActionPumpOn, got.Action)
	assert.Equal(t, models.CommandResult{Success: true, Message: "Pump turned ON"}, res)
}

func TestClient_SendCommandRejectsUnknownAction(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request must not be sent")
	})
	_, err := c.SendCommand(context.Background(), models.ActionAutomation)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestClient_StatusErrors(t *testing.T) {
	cases := []struct {
		name     string
		status   int
		body     string
		wantMsg  string
		wantAuth bool
	}{
		{"unauthorized", http.StatusUnauthorized, `{"message":"token expired"}`, "token expired", true},
		{"forbidden", http.StatusForbidden, `{"error":"forbidden"}`, "forbidden", true},
		{"cooldown", http.StatusConflict, `{"success":false,"message":"Pump is cooling down"}`, "Pump is cooling down", false},
		{"plain text", http.StatusInternalServerError, `boom`, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			})
			_, err := c.Latest(context.Background())

			var se *apperr.StatusError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tc.status, se.Code)
			assert.Equal(t, tc.wantMsg, se.Message)
			assert.Equal(t, tc.wantAuth, errors.Is(err, apperr.ErrUnauthorized))
		})
	}
}

func TestClient_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url, nil, time.Second, nil)
	_, err := c.Weather(context.Background())

	var ne *apperr.NetworkError
	require.True(t, errors.As(err, &ne))
	assert.Equal(t, "GET "+WeatherPath, ne.Op)
	assert.ErrorIs(t, err, apperr.ErrNetwork)
}

func TestClient_CommandLogQuery(t *testing.T) {
	from := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, CommandLogPath, r.URL.Path)
		assert.Equal(t, "2026-05-01T00:00:00Z", r.URL.Query().Get("from"))
		assert.Empty(t, r.URL.Query().Get("to"))
		assert.Empty(t, r.URL.Query().Get("action"))
		_, _ = io.WriteString(w, `null`)
	})
	events, err := c.CommandLog(context.Background(), LogQuery{From: from})
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

func TestClient_CommandLogKeepsSubsecondBoundAndAction(t *testing.T) {
	to := time.Date(2026, 5, 1, 23, 59, 59, 999999999, time.UTC)
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2026-05-01T23:59:59.999999999Z", r.URL.Query().Get("to"))
		assert.Equal(t, "TURN_PUMP_OFF", r.URL.Query().Get("action"))
		_, _ = io.WriteString(w, `[]`)
	})
	_, err := c.CommandLog(context.Background(), LogQuery{To: to, Action: models.ActionPumpOff})
	require.NoError(t, err)
}
