package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_Disabled(t *testing.T) {
	p, err := New(context.Background(), &Config{Enabled: false})
	require.NoError(t, err)
	p.RecordOperation(context.Background(), "receive", 12.5, nil)
	done := p.TrackActive(context.Background(), "receive")
	done()
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestNew_Enabled(t *testing.T) {
	p, err := New(context.Background(), DefaultConfig())
	require.NoError(t, err)
	p.RecordOperation(context.Background(), "read", 4.2, nil)
	require.NoError(t, p.Shutdown(context.Background()))
}
