package users

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"account-service/pkg/jwt"
)

func newTestServer(t *testing.T) (*testEnv, *httptest.Server) {
	t.Helper()
	env := newTestEnv(t)
	srv := httptest.NewServer(NewHandler(env.svc, env.tokens).Routes())
	t.Cleanup(srv.Close)
	return env, srv
}

func multipartBody(t *testing.T, fields map[string]string, filename, contentType string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", `form-data; name="profile_picture"; filename="`+filename+`"`)
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte("image-bytes"))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func do(t *testing.T, method, url, contentType, token string, body *bytes.Buffer) (int, map[string]any) {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer-"+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(b)
}

func errorMessages(body map[string]any) []string {
	var out []string
	list, _ := body["error"].([]any)
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m["message"].(string))
		}
	}
	return out
}

func TestRegisterEndpoint(t *testing.T) {
	env, srv := newTestServer(t)

	body, ct := multipartBody(t, map[string]string{
		"name": "A", "email": "a@x.io", "phone": "0123456789", "password": "secret1",
	}, "me.png", "image/png")
	status, resp := do(t, http.MethodPost, srv.URL+"/", ct, "", body)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "User A registered", resp["message"])
	assert.NotEmpty(t, resp["id"])

	u, err := env.store.GetUserByEmail(context.Background(), "a@x.io")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u.ProfilePicture, "profile_picture-"))
	assert.FileExists(t, env.dir+"/"+u.ProfilePicture)

	status, resp = do(t, http.MethodPost, srv.URL+"/", "application/json", "", jsonBody(t, alice))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, []string{"User already exists"}, errorMessages(resp))
}

func TestRegisterEndpointRejections(t *testing.T) {
	_, srv := newTestServer(t)

	status, resp := do(t, http.MethodPost, srv.URL+"/", "application/json", "",
		jsonBody(t, RegisterRequest{Email: "a@x.io", Phone: "0123456789", Password: "secret1"}))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, []string{"Name is required"}, errorMessages(resp))

	long := alice
	long.Password = strings.Repeat("p", 80)
	status, resp = do(t, http.MethodPost, srv.URL+"/", "application/json", "", jsonBody(t, long))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, []string{"Password must be at most 72 bytes long"}, errorMessages(resp))

	body, ct := multipartBody(t, map[string]string{
		"name": "A", "email": "a@x.io", "phone": "0123456789", "password": "secret1",
	}, "virus.exe", "application/octet-stream")
	status, resp = do(t, http.MethodPost, srv.URL+"/", ct, "", body)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, []string{"Only images allowed"}, errorMessages(resp))
}

func TestGuardedRoutesRequireToken(t *testing.T) {
	_, srv := newTestServer(t)

	for _, path := range []string{"/", "/users"} {
		status, resp := do(t, http.MethodGet, srv.URL+path, "", "", nil)
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, "No token, access denied.", resp["msg"])
	}
	status, resp := do(t, http.MethodPost, srv.URL+"/update", "application/json", "garbage", jsonBody(t, UpdateRequest{}))
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Token is not valid", resp["msg"])
}

func TestProfileUpdateFlow(t *testing.T) {
	env, srv := newTestServer(t)
	_, err := env.svc.Register(context.Background(), alice, nil)
	require.NoError(t, err)
	token, err := env.svc.Login(context.Background(), alice.Email, alice.Password)
	require.NoError(t, err)

	status, resp := do(t, http.MethodGet, srv.URL+"/", "", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "A", resp["name"])
	assert.Equal(t, "0123456789", resp["phone"])
	assert.NotContains(t, resp, "password")
	assert.NotContains(t, resp, "PasswordHash")

	status, resp = do(t, http.MethodPost, srv.URL+"/update", "application/json", token,
		jsonBody(t, UpdateRequest{Phone: "9876543210"}))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "User A updated", resp["message"])

	status, resp = do(t, http.MethodGet, srv.URL+"/", "", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "A", resp["name"])
	assert.Equal(t, "9876543210", resp["phone"])
}

func TestProfileOfDeletedUser(t *testing.T) {
	env, srv := newTestServer(t)
	token, err := env.tokens.Issue(jwt.Identity{ID: "ghost", Name: "G", Email: "g@x.io"})
	require.NoError(t, err)

	status, resp := do(t, http.MethodGet, srv.URL+"/", "", token, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, []string{"There was an error fetching your profile"}, errorMessages(resp))
}

func TestListUsersOmitsHashes(t *testing.T) {
	env, srv := newTestServer(t)
	_, err := env.svc.Register(context.Background(), alice, nil)
	require.NoError(t, err)
	token, err := env.svc.Login(context.Background(), alice.Email, alice.Password)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/users", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer-"+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, "a@x.io", list[0]["email"])
	for key, v := range list[0] {
		assert.NotContains(t, strings.ToLower(key), "password")
		if s, ok := v.(string); ok {
			assert.False(t, strings.HasPrefix(s, "$2"), "hash leaked in %s", key)
		}
	}
}
