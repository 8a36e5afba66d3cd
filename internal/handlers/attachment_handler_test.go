package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"projectboard/internal/models"
)

func TestAttachments(t *testing.T) {
	e := newTestEnv(t)
	alice := e.token("u-1")
	bob := e.token("u-2")
	task := createTask(e, alice, map[string]any{"title": "Specs"})

	w := e.upload("/api/attachments", alice, "file", "notes.txt", []byte("hello attachment"), map[string]string{"taskId": task.ID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	a := decode[models.Attachment](t, w)
	require.Equal(t, "notes.txt", a.Name)
	require.Equal(t, int64(len("hello attachment")), a.Size)

	w = e.do(http.MethodGet, "/api/attachments/"+a.ID+"/download", bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "hello attachment", w.Body.String())
	require.Contains(t, w.Header().Get("Content-Disposition"), "notes.txt")

	w = e.do(http.MethodGet, "/api/attachments?taskId="+task.ID, bob, nil)
	require.Contains(t, w.Body.String(), a.ID)

	w = e.upload("/api/attachments", alice, "file", "x.txt", []byte("x"), map[string]string{"taskId": "missing"})
	require.Equal(t, http.StatusNotFound, w.Code)

	big := make([]byte, 2<<20)
	w = e.upload("/api/attachments", alice, "file", "big.bin", big, map[string]string{"taskId": task.ID})
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = e.do(http.MethodDelete, "/api/attachments/"+a.ID, bob, nil)
	require.Equal(t, http.StatusForbidden, w.Code)
	w = e.do(http.MethodDelete, "/api/attachments/"+a.ID, alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = e.do(http.MethodGet, "/api/attachments/"+a.ID+"/download", alice, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}
