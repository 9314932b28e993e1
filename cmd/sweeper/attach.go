package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/fd1az/token-sweeper/business/sweep/domain"
	"github.com/fd1az/token-sweeper/internal/wsconn"
	"github.com/fd1az/token-sweeper/pkg/ui"
)

const streamPath = "/api/v1/sweeps/stream"

// runAttach shows the dashboard for a sweeper running with -serve
// elsewhere, following its batch stream.
func runAttach(ctx context.Context, addr string) error {
	endpoint, err := streamURL(addr)
	if err != nil {
		return err
	}

	client, err := wsconn.New(wsconn.DefaultConfig(endpoint, "sweeper"))
	if err != nil {
		return err
	}
	defer client.Close()

	client.OnMessage(func(_ context.Context, msg []byte) {
		var status domain.BatchStatus
		if err := json.Unmarshal(msg, &status); err != nil {
			ui.Send(ui.ErrorMsg{Error: fmt.Errorf("decode batch: %w", err)})
			return
		}
		ui.Send(ui.BatchMsg{Status: status})
	})
	client.OnStateChange(func(state wsconn.State, err error) {
		detail := string(state)
		if err != nil {
			detail = err.Error()
		}
		ui.Send(ui.ConnectionStatusMsg{Name: "API", Connected: state == wsconn.StateConnected, Detail: detail})
	})

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	return runTUI(ctx, stop, func() error {
		ui.Send(ui.StartupMsg{Step: "config", Status: "done"})
		ui.Send(ui.StartupMsg{Step: "rpc", Status: "connecting"})
		if err := client.ConnectWithRetry(ctx); err != nil {
			ui.Send(ui.StartupMsg{Step: "rpc", Status: "failed", Message: err.Error()})
			return err
		}
		ui.Send(ui.StartupMsg{Step: "rpc", Status: "connected"})
		ui.Send(ui.StartupMsg{Step: "wallet", Status: "done"})
		ui.Send(ui.StartupMsg{Step: "quote", Status: "done"})

		<-ctx.Done()
		return nil
	})
}

// streamURL maps a base address to the websocket stream endpoint. http
// schemes are rewritten to ws.
func streamURL(addr string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(addr))
	if err != nil {
		return "", fmt.Errorf("invalid attach address %q: %w", addr, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("invalid attach address %q: unsupported scheme", addr)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = streamPath
	}
	return u.String(), nil
}
