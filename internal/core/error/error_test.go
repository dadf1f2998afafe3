package errx

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestStatusOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"path escape", ErrPathEscape, http.StatusForbidden},
		{"not found", fmt.Errorf("open: %w", ErrNotFound), http.StatusNotFound},
		{"empty input", fmt.Errorf("term_explain agent: %w", ErrEmptyInput), http.StatusBadRequest},
		{"provider", WrapProvider(errors.New("quota")), http.StatusBadGateway},
		{"index", WrapIndex(nil), http.StatusServiceUnavailable},
		{"app error wins", New(ErrNotFound, http.StatusTeapot, "x"), http.StatusTeapot},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, StatusOf(tc.err))
		})
	}
}

func TestWrapProvider(t *testing.T) {
	assert.NoError(t, WrapProvider(nil))

	cause := errors.New("deadline")
	err := WrapProvider(cause)
	assert.ErrorIs(t, err, ErrProvider)
	assert.ErrorIs(t, err, cause)

	// already tagged errors are not wrapped twice
	assert.Same(t, err, WrapProvider(err))
}

func TestWrapIndex(t *testing.T) {
	cause := errors.New("no documents")
	err := WrapIndex(cause)
	assert.ErrorIs(t, err, ErrIndexUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.Same(t, err, WrapIndex(err))
}

func TestWrapRedis(t *testing.T) {
	assert.NoError(t, WrapRedis(nil))

	missing := WrapRedis(redis.Nil)
	assert.ErrorIs(t, missing, ErrNotFound)
	assert.Equal(t, http.StatusNotFound, StatusOf(missing))

	down := WrapRedis(errors.New("connection refused"))
	assert.Equal(t, http.StatusBadGateway, StatusOf(down))
	var appErr *AppError
	assert.ErrorAs(t, down, &appErr)
	assert.Equal(t, RedisErrorMessage, appErr.Message)
}

func TestAppErrorMessage(t *testing.T) {
	assert.Equal(t, "bad", New(nil, http.StatusBadRequest, "bad").Error())
	assert.Equal(t, "bad: boom", New(errors.New("boom"), http.StatusBadRequest, "bad").Error())
}
