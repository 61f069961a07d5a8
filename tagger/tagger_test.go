package tagger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frobware/go-dsa"
	"github.com/frobware/go-dsa/tagger"
)

func TestRegistry_NoneIsBuiltIn(t *testing.T) {
	r := tagger.New()
	ops, err := r.Resolve(dsa.TagProtoNone)
	require.NoError(t, err)

	payload, member, port, err := ops.Rcv([]byte{1, 2, 3}, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, payload)
	assert.Zero(t, member)
	assert.Zero(t, port)
}

func TestRegistry_Register(t *testing.T) {
	r := tagger.New()

	_, err := r.Resolve(dsa.TagProtoEDSA)
	assert.ErrorIs(t, err, dsa.ErrNoTagger)

	edsa := &dsa.TagOps{
		Protocol: dsa.TagProtoEDSA,
		Rcv: func(frame []byte, _ *dsa.NetDevice) ([]byte, uint32, int, error) {
			return frame[8:], uint32(frame[0]), int(frame[1]), nil
		},
	}
	require.NoError(t, r.Register(edsa))
	got, err := r.Resolve(dsa.TagProtoEDSA)
	require.NoError(t, err)
	assert.Same(t, edsa, got)
	assert.ElementsMatch(t, []dsa.TagProtocol{dsa.TagProtoNone, dsa.TagProtoEDSA}, r.Protocols())
}

func TestRegistry_RegisterRejects(t *testing.T) {
	r := tagger.New()
	assert.Error(t, r.Register(nil))
	assert.Error(t, r.Register(&dsa.TagOps{Protocol: dsa.TagProtoDSA}))
	assert.Error(t, r.Register(&dsa.TagOps{
		Protocol: "ocelot",
		Rcv:      func(f []byte, _ *dsa.NetDevice) ([]byte, uint32, int, error) { return f, 0, 0, nil },
	}))
}
