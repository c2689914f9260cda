package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	otpInMail   = regexp.MustCompile(`>(\d{6})<`)
	tokenInMail = regexp.MustCompile(`token=([0-9a-f]+)`)
)

func (s *testServer) postJSON(t *testing.T, path string, body any) (*http.Response, Response) {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, s.URL+path, bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp := s.do(t, req)
	var out Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestAuth_RegisterVerifyLogin(t *testing.T) {
	srv := newTestServer(t)

	resp, body := srv.postJSON(t, "/auth/register", map[string]string{
		"firstName": "Alice", "lastName": "Smith", "email": "Alice@Example.com", "password": "secret123",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "success", body.Status)
	assert.Equal(t, "Please verify with OTP sent to your Email", body.Message)

	match := otpInMail.FindStringSubmatch(srv.mailer.last)
	require.Len(t, match, 2)

	resp, body = srv.postJSON(t, "/auth/verify-otp", map[string]string{"email": "alice@example.com", "otp": "000000x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "error", body.Status)

	resp, body = srv.postJSON(t, "/auth/verify-otp", map[string]string{"email": "alice@example.com", "otp": match[1]})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body.Token)
	assert.NotEmpty(t, body.UserID)

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "jwt" {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	resp, body = srv.postJSON(t, "/auth/login", map[string]string{"email": "alice@example.com", "password": "wrong-password"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Email or password is incorrect", body.Message)

	resp, body = srv.postJSON(t, "/auth/login", map[string]string{"email": "alice@example.com", "password": "secret123"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body.Token)
}

func TestAuth_RegisterRejectsInvalidInput(t *testing.T) {
	srv := newTestServer(t)

	resp, body := srv.postJSON(t, "/auth/register", map[string]string{
		"firstName": "Alice", "email": "not-an-email", "password": "secret123",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "error", body.Status)
}

func TestAuth_ForgotAndResetPassword(t *testing.T) {
	srv := newTestServer(t)
	srv.addUser(t, "alice")

	resp, _ := srv.postJSON(t, "/auth/forgot-password", map[string]string{"email": "nobody@example.com"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body := srv.postJSON(t, "/auth/forgot-password", map[string]string{"email": "alice@example.com"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Reset Password link sent to Email.", body.Message)

	match := tokenInMail.FindStringSubmatch(srv.mailer.last)
	require.Len(t, match, 2)

	resp, _ = srv.postJSON(t, "/auth/reset-password", map[string]string{
		"token": match[1], "password": "newpass123", "confirmPassword": "different",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = srv.postJSON(t, "/auth/reset-password", map[string]string{
		"token": match[1], "password": "newpass123", "confirmPassword": "newpass123",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body.Token)

	// tokens are single use
	resp, body = srv.postJSON(t, "/auth/reset-password", map[string]string{
		"token": match[1], "password": "again12345", "confirmPassword": "again12345",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Token is Invalid or Expired", body.Message)

	resp, _ = srv.postJSON(t, "/auth/login", map[string]string{"email": "alice@example.com", "password": "newpass123"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
