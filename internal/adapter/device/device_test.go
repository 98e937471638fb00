package device

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/couchcryptid/resq-grid/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePosition(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    domain.Position
		wantErr bool
	}{
		{name: "plain", in: "19.07,72.87", want: domain.Position{Lat: 19.07, Lng: 72.87}},
		{name: "spaces", in: " 28.61 , 77.20 ", want: domain.Position{Lat: 28.61, Lng: 77.20}},
		{name: "negative", in: "-33.86,151.21", want: domain.Position{Lat: -33.86, Lng: 151.21}},
		{name: "missing comma", in: "19.07", wantErr: true},
		{name: "bad latitude", in: "north,72.87", wantErr: true},
		{name: "bad longitude", in: "19.07,east", wantErr: true},
		{name: "out of range", in: "91,0", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePosition(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFixed(t *testing.T) {
	l, err := ParseFixed("19.07,72.87")
	require.NoError(t, err)

	pos, err := l.CurrentPosition(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.Position{Lat: 19.07, Lng: 72.87}, pos)
}

func TestFixed_Empty(t *testing.T) {
	l, err := ParseFixed("")
	require.NoError(t, err)

	_, err = l.CurrentPosition(context.Background())
	require.ErrorIs(t, err, ErrLocationUnavailable)
}

func TestFixed_Invalid(t *testing.T) {
	_, err := ParseFixed("not a position")
	require.Error(t, err)
}

func TestFixed_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFixed(domain.Position{Lat: 1, Lng: 2}).CurrentPosition(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestNone(t *testing.T) {
	_, err := None{}.CurrentPosition(context.Background())
	require.ErrorIs(t, err, ErrLocationUnavailable)
}

func testIPAPI(url string) *IPAPI {
	l := NewIPAPI(time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
	l.url = url
	return l
}

func TestIPAPI_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Query().Get("fields"), "lat")
		_, _ = io.WriteString(w, `{"status":"success","lat":19.076,"lon":72.8777,"city":"Mumbai","country":"India"}`)
	}))
	defer srv.Close()

	pos, err := testIPAPI(srv.URL).CurrentPosition(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.Position{Lat: 19.076, Lng: 72.8777}, pos)
}

func TestIPAPI_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "lookup failed",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, `{"status":"fail","message":"private range"}`)
			},
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			},
		},
		{
			name: "garbage body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, `<html>`)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := testIPAPI(srv.URL).CurrentPosition(context.Background())
			require.ErrorIs(t, err, ErrLocationUnavailable)
		})
	}
}

func TestIPAPI_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := testIPAPI(url).CurrentPosition(context.Background())
	require.ErrorIs(t, err, ErrLocationUnavailable)
}
