// Copyright (C) dcrunner contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package receiver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clustercockpit-labs/dcrunner/internal/channel"
	"github.com/clustercockpit-labs/dcrunner/internal/message"
	"github.com/clustercockpit-labs/dcrunner/internal/plugin"
)

func TestEmptyReceiverAlwaysFails(t *testing.T) {
	r := NewEmpty()
	_, err := r.Recv(0)
	assert.ErrorIs(t, err, ErrEmptyReceive)
	_, _, err = r.RecvAny()
	assert.ErrorIs(t, err, ErrEmptyReceive)
}

func TestChildReceiverInlinesStep(t *testing.T) {
	called := false
	r := NewChild(context.Background(), func() (message.Message, bool) {
		called = true
		return message.Build([]byte("child"), nil, 0), true
	})

	msg, err := r.Recv(0)
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, []byte("child"), msg.AsBytes())
	msg.Drop()
}

func TestChildReceiverCloseBecomesErrClosed(t *testing.T) {
	r := NewChild(context.Background(), func() (message.Message, bool) {
		return message.Message{}, false
	})
	_, err := r.Recv(0)
	assert.ErrorIs(t, err, plugin.ErrClosed)
}

func TestChildReceiverRejectsOtherPorts(t *testing.T) {
	r := NewChild(context.Background(), func() (message.Message, bool) {
		return message.Message{}, false
	})
	_, err := r.Recv(1)
	assert.ErrorIs(t, err, ErrInvalidChildPort)
}

func TestChannelReceiverDisconnectBecomesErrClosed(t *testing.T) {
	s := channel.NewFanOut(1, 1)
	cr := channel.NewReceiver(s.Endpoint(0))
	r := NewChannel(context.Background(), cr)
	s.Close()

	_, err := r.Recv(0)
	assert.ErrorIs(t, err, plugin.ErrClosed)
}

func TestChannelReceiverDeliversMessage(t *testing.T) {
	s := channel.NewFanOut(1, 1)
	cr := channel.NewReceiver(s.Endpoint(0))
	r := NewChannel(context.Background(), cr)

	m := message.Build([]byte("hi"), nil, 0)
	require.NoError(t, s.Send(context.Background(), m))

	got, err := r.Recv(0)
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), got.AsBytes())
	got.Drop()
}
