package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waterops-backend/internal/model"
)

func seedFault(t *testing.T, env *testEnv, reportedBy string) model.Fault {
	fault := model.Fault{
		StationID:     env.station.ID,
		ReportedBy:    reportedBy,
		Title:         "Valve stuck",
		TitleAr:       "صمام عالق",
		Description:   "Main valve will not close fully",
		DescriptionAr: "الصمام الرئيسي لا يغلق بالكامل",
		Status:        model.FaultOpen,
		Priority:      model.PriorityMedium,
	}
	require.NoError(t, env.db.Create(&fault).Error)
	return fault
}

func TestUpdateFaultStatus_ResolvedAtSetOnce(t *testing.T) {
	env := newTestEnv(t)
	fault := seedFault(t, env, env.operator.ID)

	w := env.do(t, http.MethodPut, "/api/faults/"+fault.ID+"/status",
		map[string]string{"status": "resolved"}, env.token)
	require.Equal(t, http.StatusOK, w.Code)

	var resolved model.Fault
	require.NoError(t, env.db.First(&resolved, "id = ?", fault.ID).Error)
	require.NotNil(t, resolved.ResolvedAt)
	firstResolvedAt := *resolved.ResolvedAt

	time.Sleep(10 * time.Millisecond)

	// Re-sending resolved leaves the original timestamp untouched.
	w = env.do(t, http.MethodPut, "/api/faults/"+fault.ID+"/status",
		map[string]string{"status": "resolved"}, env.token)
	require.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, env.db.First(&resolved, "id = ?", fault.ID).Error)
	require.NotNil(t, resolved.ResolvedAt)
	assert.True(t, resolved.ResolvedAt.Equal(firstResolvedAt))
}

func TestUpdateFaultStatus_Workflow(t *testing.T) {
	env := newTestEnv(t)
	fault := seedFault(t, env, env.operator.ID)

	for _, status := range []string{"assigned", "in_progress", "resolved", "closed"} {
		w := env.do(t, http.MethodPut, "/api/faults/"+fault.ID+"/status",
			map[string]string{"status": status}, env.token)
		require.Equal(t, http.StatusOK, w.Code, "status %s", status)
	}

	var closed model.Fault
	require.NoError(t, env.db.First(&closed, "id = ?", fault.ID).Error)
	assert.Equal(t, model.FaultClosed, closed.Status)
	assert.NotNil(t, closed.ResolvedAt)
}

func TestUpdateFaultStatus_InvalidStatus(t *testing.T) {
	env := newTestEnv(t)
	fault := seedFault(t, env, env.operator.ID)

	w := env.do(t, http.MethodPut, "/api/faults/"+fault.ID+"/status",
		map[string]string{"status": "fixed"}, env.token)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateFaultStatus_ForeignFault(t *testing.T) {
	env := newTestEnv(t)
	fault := seedFault(t, env, "someone-else")

	w := env.do(t, http.MethodPut, "/api/faults/"+fault.ID+"/status",
		map[string]string{"status": "assigned"}, env.token)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
