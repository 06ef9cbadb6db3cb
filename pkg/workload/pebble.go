package workload

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/canonical/pebble/client"
	"github.com/rs/zerolog"

	"github.com/cuemby/redkeeper/pkg/log"
	"github.com/cuemby/redkeeper/pkg/types"
)

// restartWait bounds how long a restart change may take before the pass is
// treated as failed and retried on the next event.
const restartWait = 30 * time.Second

// Pebble implements Supervisor over the container's Pebble socket.
type Pebble struct {
	c    *client.Client
	name string
	log  zerolog.Logger
}

// NewPebble connects to the Pebble socket of the named container.
func NewPebble(name, socket string) (*Pebble, error) {
	c, err := client.New(&client.Config{Socket: socket})
	if err != nil {
		return nil, fmt.Errorf("failed to create pebble client for %s: %w", name, err)
	}
	return &Pebble{
		c:    c,
		name: name,
		log:  log.WithComponent("workload").With().Str("container", name).Logger(),
	}, nil
}

func (p *Pebble) Ready() error {
	if _, err := p.c.SysInfo(); err != nil {
		return fmt.Errorf("pebble in %s container not ready: %w", p.name, err)
	}
	return nil
}

func (p *Pebble) WriteFile(path string, data []byte, mode os.FileMode) error {
	err := p.c.Push(&client.PushOptions{
		Source:      bytes.NewReader(data),
		Path:        path,
		MakeDirs:    true,
		Permissions: mode,
	})
	if err != nil {
		return fmt.Errorf("failed to push %s to %s container: %w: %v",
			path, p.name, types.ErrCommandFailed, err)
	}
	p.log.Debug().Str("path", path).Int("bytes", len(data)).Msg("Wrote file to container")
	return nil
}

func (p *Pebble) Restart(services ...string) error {
	changeID, err := p.c.Restart(&client.ServiceOptions{Names: services})
	if err != nil {
		return fmt.Errorf("failed to restart %v in %s container: %w: %v",
			services, p.name, types.ErrCommandFailed, err)
	}

	change, err := p.c.WaitChange(changeID, &client.WaitChangeOptions{Timeout: restartWait})
	if err != nil {
		return fmt.Errorf("restart of %v in %s container did not finish: %w: %v",
			services, p.name, types.ErrCommandTimeout, err)
	}
	if change.Err != "" {
		return fmt.Errorf("restart of %v in %s container failed: %w: %s",
			services, p.name, types.ErrCommandFailed, change.Err)
	}

	p.log.Info().Strs("services", services).Msg("Restarted services")
	return nil
}

func (p *Pebble) Running(service string) (bool, error) {
	infos, err := p.c.Services(&client.ServicesOptions{Names: []string{service}})
	if err != nil {
		return false, fmt.Errorf("failed to query service %s in %s container: %w: %v",
			service, p.name, types.ErrCommandFailed, err)
	}
	for _, info := range infos {
		if info.Name == service {
			return info.Current == client.StatusActive, nil
		}
	}
	return false, nil
}
