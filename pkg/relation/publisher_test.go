package relation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/redkeeper/pkg/log"
	"github.com/cuemby/redkeeper/pkg/storage"
)

func init() {
	log.Init(log.Config{Level: log.ErrorLevel})
}

func TestPublishAndCurrent(t *testing.T) {
	db, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	defer db.Close()

	p := NewPublisher(db)

	current, err := p.Current()
	require.NoError(t, err)
	assert.Nil(t, current, "nothing published yet")

	ep := Endpoint{Host: "redis-0", Port: 6379}
	require.NoError(t, p.Publish(ep))

	current, err = p.Current()
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, ep, *current)
}

func TestPublishWithCA(t *testing.T) {
	db, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	defer db.Close()

	p := NewPublisher(db)
	require.NoError(t, p.Publish(Endpoint{Host: "redis-1", Port: 6379, TLSCA: "PEM"}))

	current, err := p.Current()
	require.NoError(t, err)
	assert.Equal(t, "PEM", current.TLSCA)
}

func TestRepublishSameEndpoint(t *testing.T) {
	db, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	defer db.Close()

	p := NewPublisher(db)
	ep := Endpoint{Host: "redis-0", Port: 6379}
	require.NoError(t, p.Publish(ep))
	require.NoError(t, p.Publish(ep))

	current, err := p.Current()
	require.NoError(t, err)
	assert.Equal(t, ep, *current)
}
