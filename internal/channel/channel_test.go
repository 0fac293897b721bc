// Copyright (C) dcrunner contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package channel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clustercockpit-labs/dcrunner/internal/message"
)

func TestSingleReceiverGetsOriginal(t *testing.T) {
	s := NewFanOut(1, 4)
	r := NewReceiver(s.Endpoint(0))
	ctx := context.Background()

	m := message.Build([]byte("hi"), nil, 0)
	require.NoError(t, s.Send(ctx, m))

	got, err := r.Recv(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), got.AsBytes())
	got.Drop()
}

func TestFanOutClonesToAllButLast(t *testing.T) {
	s := NewFanOut(3, 4)
	r0 := NewReceiver(s.Endpoint(0))
	r1 := NewReceiver(s.Endpoint(1))
	r2 := NewReceiver(s.Endpoint(2))
	ctx := context.Background()

	m := message.Build([]byte("fan"), nil, 0)
	require.NoError(t, s.Send(ctx, m))

	for _, r := range []*Receiver{r0, r1, r2} {
		got, err := r.Recv(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, []byte("fan"), got.AsBytes())
		got.Drop()
	}
}

func TestRecvDisconnectedAfterClose(t *testing.T) {
	s := NewFanOut(1, 1)
	r := NewReceiver(s.Endpoint(0))
	s.Close()

	_, err := r.Recv(context.Background(), 0)
	assert.ErrorIs(t, err, ErrDisconnected)
}

func TestSendCanceledByContext(t *testing.T) {
	s := NewFanOut(1, 1) // one slot, nobody reading
	require.NoError(t, s.Send(context.Background(), message.Build([]byte("fill"), nil, 0)))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	m := message.Build([]byte("x"), nil, 0)
	err := s.Send(ctx, m)
	assert.ErrorIs(t, err, ErrDisconnected)
}

func TestRecvAnyReturnsFirstReady(t *testing.T) {
	e0 := NewEndpoint(1)
	e1 := NewEndpoint(1)
	r := NewReceiver(e0, e1)

	m := message.Build([]byte("second"), nil, 0)
	e1 <- m

	port, got, err := r.RecvAny(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, port)
	assert.Equal(t, []byte("second"), got.AsBytes())
	got.Drop()
}

func TestRecvAnyDisconnectsWhenAllClosed(t *testing.T) {
	e0 := NewEndpoint(1)
	e1 := NewEndpoint(1)
	r := NewReceiver(e0, e1)
	close(e0)
	close(e1)

	_, _, err := r.RecvAny(context.Background())
	assert.ErrorIs(t, err, ErrDisconnected)
}
