package http

import (
	"context"
	"errors"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isplink/portal/internal/model"
)

func newTestClient(t *testing.T, h nethttp.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", nethttp.DefaultTransport, 5*time.Second, zerolog.Nop()), srv
}

func TestDo_DecodesAndValidates(t *testing.T) {
	c, _ := newTestClient(t, func(w nethttp.ResponseWriter, r *nethttp.Request) {
		assert.Equal(t, "/api/customer/signin/send-otp", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"identifier":"9999999999"}`, string(body))
		_, _ = io.WriteString(w, `{"tempToken":"abc"}`)
	})

	var resp model.SendOTPResponse
	err := c.Do(context.Background(), Request{
		Method: nethttp.MethodPost,
		Path:   "/api/customer/signin/send-otp",
		Body:   model.SendOTPRequest{Identifier: "9999999999"},
	}, &resp)
	require.NoError(t, err)
	assert.Equal(t, "abc", resp.TempToken)
}

func TestDo_BoundaryValidationFailure(t *testing.T) {
	c, _ := newTestClient(t, func(w nethttp.ResponseWriter, r *nethttp.Request) {
		_, _ = io.WriteString(w, `{"message":"otp_sent"}`)
	})

	var resp model.SendOTPResponse
	err := c.Do(context.Background(), Request{Method: nethttp.MethodPost, Path: "/x"}, &resp)
	require.Error(t, err)
	assert.Equal(t, KindServer, KindOf(err))
	assert.Equal(t, MessageServer, Message(err))
}

func TestDo_ValidationErrorCarriesServerMessage(t *testing.T) {
	c, _ := newTestClient(t, func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.WriteHeader(nethttp.StatusUnprocessableEntity)
		_, _ = io.WriteString(w, `{"message":"coupon has expired"}`)
	})

	err := c.Do(context.Background(), Request{Method: nethttp.MethodPost, Path: "/coupons/apply"}, nil)
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Equal(t, "coupon has expired", Message(err))

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, nethttp.StatusUnprocessableEntity, apiErr.Status)
}

func TestDo_ErrorFieldFallback(t *testing.T) {
	c, _ := newTestClient(t, func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.WriteHeader(nethttp.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"identifier is required"}`)
	})
	err := c.Do(context.Background(), Request{Method: nethttp.MethodPost, Path: "/x"}, nil)
	assert.Equal(t, "identifier is required", Message(err))

	c, _ = newTestClient(t, func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.WriteHeader(nethttp.StatusNotFound)
	})
	err = c.Do(context.Background(), Request{Method: nethttp.MethodGet, Path: "/x"}, nil)
	assert.Equal(t, "not found", Message(err))
}

func TestDo_UnauthorizedKinds(t *testing.T) {
	c, _ := newTestClient(t, func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.WriteHeader(nethttp.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":"invalid or expired OTP"}`)
	})

	err := c.Do(context.Background(), Request{Method: nethttp.MethodGet, Path: "/login-status"}, nil)
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, MessageSessionExpired, Message(err))

	err = c.Do(context.Background(), Request{Method: nethttp.MethodPost, Path: "/verify-otp", Public: true}, nil)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Equal(t, "invalid or expired OTP", Message(err))
}

func TestDo_ServerError(t *testing.T) {
	c, _ := newTestClient(t, func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.WriteHeader(nethttp.StatusBadGateway)
	})
	err := c.Do(context.Background(), Request{Method: nethttp.MethodGet, Path: "/plans"}, nil)
	assert.Equal(t, KindServer, KindOf(err))
	assert.Equal(t, MessageServer, Message(err))
}

func TestDo_NetworkUnavailable(t *testing.T) {
	c, srv := newTestClient(t, func(w nethttp.ResponseWriter, r *nethttp.Request) {})
	srv.Close()

	err := c.Do(context.Background(), Request{Method: nethttp.MethodGet, Path: "/plans"}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetworkUnavailable)
	assert.Equal(t, MessageNetworkUnavailable, Message(err))
}

func TestDo_TimeoutIsNetwork(t *testing.T) {
	release := make(chan struct{})
	c, _ := newTestClient(t, func(w nethttp.ResponseWriter, r *nethttp.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	err := c.Do(context.Background(), Request{Method: nethttp.MethodPost, Path: "/logout", Timeout: 50 * time.Millisecond}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetworkUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDo_EmptySuccessBody(t *testing.T) {
	c, _ := newTestClient(t, func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.WriteHeader(nethttp.StatusNoContent)
	})
	var out map[string]any
	require.NoError(t, c.Do(context.Background(), Request{Method: nethttp.MethodPost, Path: "/logout"}, &out))
	require.NoError(t, c.Do(context.Background(), Request{Method: nethttp.MethodPost, Path: "/logout"}, nil))
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "", Message(nil))
	assert.Equal(t, "plain", Message(errors.New("plain")))
	assert.Equal(t, Kind(0), KindOf(errors.New("plain")))
}
