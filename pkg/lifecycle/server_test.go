package lifecycle

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingService struct {
	name     string
	startErr error
	events   *[]string
}

func (s *recordingService) Start(context.Context) error {
	*s.events = append(*s.events, "start "+s.name)
	return s.startErr
}

func (s *recordingService) Stop(context.Context) error {
	*s.events = append(*s.events, "stop "+s.name)
	return nil
}

func TestRunServer_ServesUntilCancelled(t *testing.T) {
	var events []string

	ctx, cancel := context.WithCancel(context.Background())
	addrCh := make(chan string, 1)

	opts := &ServerOptions{
		ListenAddr:  "127.0.0.1:0",
		ServiceName: "test",
		Handler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "ok")
		}),
		Services: []Service{
			&recordingService{name: "a", events: &events},
			&recordingService{name: "b", events: &events},
		},
		ready: func(addr string) { addrCh <- addr },
	}

	done := make(chan error, 1)

	go func() { done <- RunServer(ctx, opts) }()

	var addr string
	select {
	case addr = <-addrCh:
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	resp, err := http.Get("http://" + addr + "/")
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, "ok", string(body))

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(ShutdownTimeout + time.Second):
		t.Fatal("server did not stop")
	}

	assert.Equal(t, []string{"start a", "start b", "stop b", "stop a"}, events)
}

func TestRunServer_ServiceStartFailure(t *testing.T) {
	var events []string

	boom := errors.New("boom")

	err := RunServer(context.Background(), &ServerOptions{
		ListenAddr: "127.0.0.1:0",
		Handler:    http.NotFoundHandler(),
		Services: []Service{
			&recordingService{name: "a", events: &events},
			&recordingService{name: "b", events: &events, startErr: boom},
		},
	})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"start a", "start b", "stop a"}, events)
}

func TestRunServer_ListenFailure(t *testing.T) {
	var events []string

	err := RunServer(context.Background(), &ServerOptions{
		ListenAddr: "256.0.0.1:bad",
		Handler:    http.NotFoundHandler(),
		Services:   []Service{&recordingService{name: "a", events: &events}},
	})

	require.Error(t, err)
	assert.Equal(t, []string{"start a", "stop a"}, events)
}
