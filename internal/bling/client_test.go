package bling

import (
	"bytes"
	"context"
	goerrors "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picmigrate/picmigrate/internal/errors"
	"github.com/picmigrate/picmigrate/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.NewLogger(logging.WithOutput(&bytes.Buffer{}))
}

func TestClient_SearchBySKU(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/produtos", r.URL.Path)
		assert.Equal(t, "SKU-001", r.URL.Query().Get("codigo"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Write([]byte(`{"data":[{"id":42,"codigo":"SKU-001"}]}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Second, testLogger())
	ref, err := c.SearchBySKU(context.Background(), "tok", "loja_a", "SKU-001")
	require.NoError(t, err)
	assert.Equal(t, int64(42), ref.ID)
	assert.Equal(t, "SKU-001", ref.SKU)
}

func TestClient_SearchBySKUFilter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, `sku['SKU-001']`, r.URL.Query().Get("filters"))
		w.Write([]byte(`{"data":[{"id":7,"codigo":"SKU-001"}]}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Second, testLogger())
	ref, err := c.SearchBySKUFilter(context.Background(), "tok", "loja_b", "SKU-001")
	require.NoError(t, err)
	assert.Equal(t, int64(7), ref.ID)
}

func TestClient_SearchNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Second, testLogger())
	_, err := c.SearchBySKU(context.Background(), "tok", "loja_a", "GHOST")

	var notFound *errors.ErrProductNotFound
	require.True(t, goerrors.As(err, &notFound))
	assert.Equal(t, "GHOST", notFound.SKU)
	assert.Equal(t, "loja_a", notFound.Account)
}

func TestClient_SearchAmbiguousTakesFirst(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"id":1,"codigo":"SKU-001"},{"id":2,"codigo":"SKU-001"}]}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Second, testLogger())
	ref, err := c.SearchBySKU(context.Background(), "tok", "loja_a", "SKU-001")
	require.NoError(t, err)
	assert.Equal(t, int64(1), ref.ID)
}

func TestClient_GetProduct(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/produtos/42", r.URL.Path)
		w.Write([]byte(`{"data":{
			"id":42,
			"midia":{"imagens":{
				"internas":[{"link":"https://cdn.example.com/a.jpg"}],
				"externas":[{"link":"https://img.example.com/b.jpg"}]
			}},
			"variacoes":[{"id":101,"nome":"P"},{"id":102,"nome":"M"}]
		}}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Second, testLogger())
	detail, err := c.GetProduct(context.Background(), "tok", 42)
	require.NoError(t, err)
	assert.Len(t, detail.Midia.Imagens.Internas, 1)
	assert.Len(t, detail.Midia.Imagens.Externas, 1)
	assert.Len(t, detail.Variacoes, 2)
	assert.Equal(t, int64(101), detail.Variacoes[0].ID)
}

func TestClient_RateLimitError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Second, testLogger())
	_, err := c.GetProduct(context.Background(), "tok", 42)

	var rate *RateLimitError
	require.True(t, goerrors.As(err, &rate))
	assert.Equal(t, 3*time.Second, rate.RetryAfter)
}

func TestClient_APIStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"insufficient scope"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Second, testLogger())
	_, err := c.GetProduct(context.Background(), "tok", 42)

	var apiErr *errors.ErrAPIStatus
	require.True(t, goerrors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Contains(t, apiErr.Body, "insufficient scope")
}

func TestClient_AttachImage(t *testing.T) {
	dir := t.TempDir()
	imagePath := filepath.Join(dir, "photo.jpg")
	require.NoError(t, os.WriteFile(imagePath, []byte("jpegdata"), 0o644))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/produtos/7/anexar-imagem", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()

		assert.Equal(t, "photo.jpg", header.Filename)
		data, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, "jpegdata", string(data))

		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Second, testLogger())
	require.NoError(t, c.AttachImage(context.Background(), "tok", 7, imagePath))
}

func TestClient_AttachImageMissingFile(t *testing.T) {
	c := NewClient("http://unused.example", time.Second, testLogger())
	err := c.AttachImage(context.Background(), "tok", 7, filepath.Join(t.TempDir(), "absent.jpg"))

	var fileErr *errors.ErrFileRead
	assert.True(t, goerrors.As(err, &fileErr))
}

func TestRateLimitErrorFromHeaders_DefaultsToOneSecond(t *testing.T) {
	err := rateLimitErrorFromHeaders(http.Header{}, "limited")
	assert.Equal(t, time.Second, err.RetryAfter)
	assert.Equal(t, "limited", err.Error())
}
