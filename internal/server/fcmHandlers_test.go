package server

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFCMSaveToken(t *testing.T) {
	e := newTestEnv(t)
	u, lt := e.addUser("Asha", "")
	other, _ := e.addUser("Bilal", "tok-bilal")
	path := "/api/fcm/save-token"

	assertError(t, e.do(http.MethodPost, path, "", map[string]string{"token": "tok"}), http.StatusUnauthorized, "")
	assertError(t, e.do(http.MethodPost, path, lt, map[string]string{"userId": other.ID.Hex(), "token": "stolen"}), http.StatusForbidden, "Cannot register a token for another user")
	assert.Equal(t, "tok-bilal", e.user(other.ID).FCMToken)

	assertError(t, e.do(http.MethodPost, path, lt, map[string]string{"token": "  "}), http.StatusBadRequest, "Invalid token")

	decode[struct{}](t, e.do(http.MethodPost, path, lt, map[string]string{"userId": u.ID.Hex(), "token": " tok-asha "}), http.StatusOK)
	assert.Equal(t, "tok-asha", e.user(u.ID).FCMToken)

	decode[struct{}](t, e.do(http.MethodPost, path, lt, map[string]string{"token": "tok-asha-2"}), http.StatusOK)
	assert.Equal(t, "tok-asha-2", e.user(u.ID).FCMToken)
}
