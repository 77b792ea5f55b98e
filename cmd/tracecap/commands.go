package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/loykin/tracecap"
	"github.com/loykin/tracecap/internal/config"
	"github.com/loykin/tracecap/pkg/client"
)

// command bundles the CLI operations. Remote commands talk to a running
// daemon through pkg/client; read, clear and status degrade to direct
// file access when no daemon is reachable, since the capture log and
// port file outlive the process.
type command struct {
	configPath string
}

func (c command) loadConfig() (*config.FileConfig, error) {
	if c.configPath == "" {
		return config.Default(), nil
	}
	return config.Load(c.configPath)
}

// localServer builds a stopped facade over the configured files for
// direct reads while no daemon is running.
func (c command) localServer(cfg *config.FileConfig) *tracecap.Server {
	return tracecap.New(tracecap.Config{
		Host:          cfg.Server.Host,
		LogPath:       cfg.Capture.LogPath,
		PortFile:      cfg.Capture.PortFile,
		FlushInterval: cfg.Capture.FlushInterval,
	})
}

// resolveAPIUrl picks the daemon URL: an explicit --api-url wins, then
// the persisted port from the last running session, then the configured
// port. Empty when no candidate exists.
func (c command) resolveAPIUrl(cfg *config.FileConfig, explicit string) string {
	if explicit != "" {
		return explicit
	}
	st := c.localServer(cfg).Status()
	port := st.PersistedPort
	if port == 0 {
		port = cfg.Server.Port
	}
	if port == 0 {
		return ""
	}
	host := cfg.Server.Host
	if host == "" {
		host = "127.0.0.1"
	}
	return "http://" + host + ":" + strconv.Itoa(port)
}

func (c command) dial(cfg *config.FileConfig, apiURL string, timeout time.Duration) (*client.Client, bool) {
	u := c.resolveAPIUrl(cfg, apiURL)
	if u == "" {
		return nil, false
	}
	cl := client.New(client.Config{BaseURL: u, Timeout: timeout})
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if !cl.IsReachable(ctx) {
		return nil, false
	}
	return cl, true
}

// Status prints the daemon state: probed over HTTP when reachable,
// otherwise derived from the persisted port file.
func (c command) Status(flags RemoteFlags) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	if cl, ok := c.dial(cfg, flags.APIUrl, flags.APITimeout); ok {
		ctx, cancel := context.WithTimeout(context.Background(), flags.APITimeout)
		defer cancel()
		st, err := cl.Status(ctx)
		if err != nil {
			return err
		}
		return printJSON(st)
	}
	return printJSON(c.localServer(cfg).Status())
}

// Read prints captured records, via the daemon when reachable so
// buffered records are flushed first, directly from the file otherwise.
func (c command) Read(flags ReadFlags) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	if cl, ok := c.dial(cfg, flags.APIUrl, flags.APITimeout); ok {
		ctx, cancel := context.WithTimeout(context.Background(), flags.APITimeout)
		defer cancel()
		recs, err := cl.ReadLogs(ctx, flags.Tail)
		if err != nil {
			return err
		}
		return printJSON(recs)
	}
	recs, err := c.localServer(cfg).ReadLogs(flags.Tail)
	if err != nil {
		return err
	}
	return printJSON(recs)
}

// Clear truncates the capture log.
func (c command) Clear(flags RemoteFlags) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	if cl, ok := c.dial(cfg, flags.APIUrl, flags.APITimeout); ok {
		ctx, cancel := context.WithTimeout(context.Background(), flags.APITimeout)
		defer cancel()
		if err := cl.ClearLogs(ctx); err != nil {
			return err
		}
		fmt.Println("capture log cleared")
		return nil
	}
	if err := c.localServer(cfg).ClearLogs(); err != nil {
		return err
	}
	fmt.Println("capture log cleared")
	return nil
}

// Stop shuts a running daemon down.
func (c command) Stop(flags RemoteFlags) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	cl, ok := c.dial(cfg, flags.APIUrl, flags.APITimeout)
	if !ok {
		return fmt.Errorf("daemon not reachable - is it running? start it with 'tracecap serve'")
	}
	ctx, cancel := context.WithTimeout(context.Background(), flags.APITimeout)
	defer cancel()
	if err := cl.Stop(ctx); err != nil {
		return err
	}
	fmt.Println("capture server stopping")
	return nil
}

// Submit captures one record through a running daemon.
func (c command) Submit(flags SubmitFlags) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	cl, ok := c.dial(cfg, flags.APIUrl, flags.APITimeout)
	if !ok {
		return fmt.Errorf("daemon not reachable - is it running? start it with 'tracecap serve'")
	}
	var data any
	if flags.Data != "" {
		if err := json.Unmarshal([]byte(flags.Data), &data); err != nil {
			return fmt.Errorf("invalid --data JSON: %w", err)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), flags.APITimeout)
	defer cancel()
	return cl.Submit(ctx, flags.Label, data)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
