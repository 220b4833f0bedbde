package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpadva81/crystal-edu-track-now/config"
	"github.com/gpadva81/crystal-edu-track-now/pkg/logger"
)

func testConfig(t *testing.T, overrides map[string]any) *config.Config {
	t.Helper()
	v := viper.New()
	config.SetDefaults(v)
	v.Set("app.store", "memory")
	v.Set("redis.disabled", true)
	v.Set("features.tutor", false)
	v.Set("features.import", false)
	for k, val := range overrides {
		v.Set(k, val)
	}
	cfg, err := config.Load(v)
	require.NoError(t, err)
	return cfg
}

func TestBuildApp_ClockUsesConfiguredZone(t *testing.T) {
	cfg := testConfig(t, map[string]any{"gamification.timezone": "America/New_York"})

	a, err := buildApp(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(a.Close)

	assert.Equal(t, "America/New_York", a.clock().Location().String())
	assert.NotNil(t, a.scheduler)
	assert.NotNil(t, a.reconcile)
}

func TestBuildApp_MemoryStoreServes(t *testing.T) {
	cfg := testConfig(t, map[string]any{"scheduler.enabled": false})

	a, err := buildApp(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(a.Close)
	assert.Nil(t, a.scheduler)

	srv := httptest.NewServer(a.server.Handler())
	t.Cleanup(srv.Close)

	res, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	_ = res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res, err = http.Get(srv.URL + "/tutor/personas")
	require.NoError(t, err)
	_ = res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestBuildApp_ClassDeleteUnlinksAssignments(t *testing.T) {
	cfg := testConfig(t, map[string]any{"scheduler.enabled": false})

	a, err := buildApp(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(a.Close)

	srv := httptest.NewServer(a.server.Handler())
	t.Cleanup(srv.Close)
	student := srv.URL + "/students/" + uuid.NewString()

	send := func(method, url, body string, out any) int {
		t.Helper()
		req, err := http.NewRequest(method, url, strings.NewReader(body))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		res, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer res.Body.Close()
		if out != nil {
			var env struct {
				Data json.RawMessage `json:"data"`
			}
			require.NoError(t, json.NewDecoder(res.Body).Decode(&env))
			require.NoError(t, json.Unmarshal(env.Data, out))
		}
		return res.StatusCode
	}

	var class struct {
		ID string `json:"id"`
	}
	require.Equal(t, http.StatusCreated, send(http.MethodPost, student+"/classes", `{"name":"History"}`, &class))
	require.Equal(t, http.StatusCreated, send(http.MethodPost, student+"/assignments", `{"title":"Timeline","class_id":"`+class.ID+`"}`, nil))
	require.Equal(t, http.StatusNoContent, send(http.MethodDelete, srv.URL+"/classes/"+class.ID, "", nil))

	var list []struct {
		Title   string `json:"title"`
		ClassID string `json:"class_id"`
	}
	require.Equal(t, http.StatusOK, send(http.MethodGet, student+"/assignments", "", &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Timeline", list[0].Title)
	assert.Empty(t, list[0].ClassID)
}
