package recast

import (
	"testing"

	"github.com/gorustyt/gorerecast/common/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestAddEdge(t *testing.T) {
	edges, e := addEdge(nil, 2, 0, 1, EV_UNDEF, EV_UNDEF)
	assert.Equal(t, 0, e)
	edges, e = addEdge(edges, 2, 1, 0, EV_UNDEF, EV_UNDEF)
	assert.Equal(t, EV_UNDEF, e, "reversed edge already exists")
	edges, e = addEdge(edges, 2, 1, 2, EV_UNDEF, EV_UNDEF)
	assert.Equal(t, 1, e)
	assert.Len(t, edges, 8)
}

func TestAddEdgeOverflowLogsStage(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger.SetLogger(zap.New(core))
	defer logger.SetLogger(nil)

	edges, _ := addEdge(nil, 1, 0, 1, EV_UNDEF, EV_UNDEF)
	edges, e := addEdge(edges, 1, 1, 2, EV_UNDEF, EV_UNDEF)
	assert.Equal(t, EV_UNDEF, e)
	assert.Len(t, edges, 4)

	entries := logs.FilterMessage("addEdge: too many edges").All()
	require.Len(t, entries, 1)
	assert.Equal(t, string(StageDetailMesh), entries[0].ContextMap()["stage"])
}
