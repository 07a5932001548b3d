package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClient(t *testing.T) {
	t.Run("Generate", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

			var req embeddingRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Len(t, req.Input, 1)
			assert.Equal(t, "img-1", req.Input[0])

			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": []map[string]any{
					{"embedding": []float32{1, 0, 0}, "index": 0},
				},
			})
		}))
		defer srv.Close()

		c, err := NewHTTPClient(func(o *HTTPClientOptions) {
			o.BaseURL = srv.URL
			o.APIKey = "secret"
			o.Dimension = 3
		})
		require.NoError(t, err)

		vec, err := c.Generate(context.Background(), "img-1")
		require.NoError(t, err)
		assert.Equal(t, []float32{1, 0, 0}, vec)
		assert.Equal(t, 3, c.Dimension())
	})

	t.Run("ServerError", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		c, err := NewHTTPClient(func(o *HTTPClientOptions) {
			o.BaseURL = srv.URL
			o.Dimension = 3
		})
		require.NoError(t, err)

		_, err = c.Generate(context.Background(), "img-1")
		assert.ErrorContains(t, err, "status 503")
	})

	t.Run("WrongDimension", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": []map[string]any{
					{"embedding": []float32{1, 0}, "index": 0},
				},
			})
		}))
		defer srv.Close()

		c, err := NewHTTPClient(func(o *HTTPClientOptions) {
			o.BaseURL = srv.URL
			o.Dimension = 3
		})
		require.NoError(t, err)

		_, err = c.Generate(context.Background(), "img-1")
		assert.ErrorContains(t, err, "expected 3")
	})

	t.Run("MissingBaseURL", func(t *testing.T) {
		_, err := NewHTTPClient()
		assert.Error(t, err)
	})
}

func TestRateLimited(t *testing.T) {
	t.Run("Delegates", func(t *testing.T) {
		gen := NewRateLimited(GeneratorFunc{
			Dim: 2,
			Fn: func(ctx context.Context, imageRef string) ([]float32, error) {
				return []float32{1, 0}, nil
			},
		}, 100, 1)

		vec, err := gen.Generate(context.Background(), "img")
		require.NoError(t, err)
		assert.Equal(t, []float32{1, 0}, vec)
		assert.Equal(t, 2, gen.Dimension())
	})

	t.Run("CanceledWait", func(t *testing.T) {
		gen := NewRateLimited(GeneratorFunc{
			Dim: 2,
			Fn: func(ctx context.Context, imageRef string) ([]float32, error) {
				return []float32{1, 0}, nil
			},
		}, 0.001, 1)

		// Drain the single burst token.
		_, err := gen.Generate(context.Background(), "img")
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		_, err = gen.Generate(ctx, "img")
		assert.Error(t, err)
	})
}
