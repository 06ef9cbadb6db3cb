package relation

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/cuemby/redkeeper/pkg/log"
	"github.com/cuemby/redkeeper/pkg/storage"
)

const endpointKey = "endpoint"

// Endpoint is the connection information published to consumer applications.
// TLSCA is included only when the deployment serves TLS.
type Endpoint struct {
	Host  string `json:"host"`
	Port  int    `json:"port"`
	TLSCA string `json:"tls-ca,omitempty"`
}

// Publisher writes the consumer-facing relation data. It is a collaborator
// of the reconciliation engine: republished at the end of every applied
// pass so consumers always see the current primary.
type Publisher struct {
	db  storage.Store
	log zerolog.Logger
}

// NewPublisher creates a publisher over the databag storage.
func NewPublisher(db storage.Store) *Publisher {
	return &Publisher{
		db:  db,
		log: log.WithComponent("relation"),
	}
}

// Publish records the endpoint. Writing an unchanged endpoint is a no-op so
// consumers are not woken up needlessly.
func (p *Publisher) Publish(ep Endpoint) error {
	data, err := json.Marshal(ep)
	if err != nil {
		return fmt.Errorf("failed to marshal endpoint: %w", err)
	}

	current, err := p.db.GetDatabag(endpointKey)
	if err != nil {
		return fmt.Errorf("failed to read current endpoint: %w", err)
	}
	if string(current) == string(data) {
		return nil
	}

	if err := p.db.PutDatabag(endpointKey, data); err != nil {
		return fmt.Errorf("failed to publish endpoint: %w", err)
	}
	p.log.Info().Str("host", ep.Host).Int("port", ep.Port).Msg("Published endpoint")
	return nil
}

// Current returns the last published endpoint, or nil when nothing has been
// published yet.
func (p *Publisher) Current() (*Endpoint, error) {
	data, err := p.db.GetDatabag(endpointKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read endpoint: %w", err)
	}
	if data == nil {
		return nil, nil
	}

	ep := &Endpoint{}
	if err := json.Unmarshal(data, ep); err != nil {
		return nil, fmt.Errorf("failed to unmarshal endpoint: %w", err)
	}
	return ep, nil
}
