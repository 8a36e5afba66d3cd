package handlers

import (
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"projectboard/internal/cache"
	"projectboard/internal/realtime"
)

func TestCachedRead_LoadOverlappingInvalidationIsNotStored(t *testing.T) {
	e := newTestEnv(t)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	loads := 0
	load := func() (string, error) {
		loads++
		if loads == 1 {
			// a task changes while the first read is still loading
			e.h.changed(c, "task", realtime.Updated, "t-1", cache.TagTasks)
		}
		return fmt.Sprintf("v%d", loads), nil
	}

	v, err := cachedRead(e.h, "tasks:list", []string{cache.TagTasks}, load)
	require.NoError(t, err)
	require.Equal(t, "v1", v)

	v, err = cachedRead(e.h, "tasks:list", []string{cache.TagTasks}, load)
	require.NoError(t, err)
	require.Equal(t, "v2", v)

	v, err = cachedRead(e.h, "tasks:list", []string{cache.TagTasks}, load)
	require.NoError(t, err)
	require.Equal(t, "v2", v)
	require.Equal(t, 2, loads)
}
