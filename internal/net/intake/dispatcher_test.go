package intake

import (
	"context"
	"errors"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"routesim/server"
	"routesim/server/internal/net/proto"
	"routesim/server/logging"
	"routesim/server/logging/network"
	"routesim/server/mocks"
)

func TestDispatcher_Routing(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	hub := mocks.NewMockCommandHub(ctrl)
	d := NewDispatcher(hub, nil)
	ctx := context.Background()

	t.Run("join with string route id and speed", func(t *testing.T) {
		req := require.New(t)
		hub.EXPECT().Join(gomock.Any(), gomock.Nil(), "route-1", lo.ToPtr(12.5)).Return(nil).Times(1)
		req.NoError(d.Dispatch(ctx, nil, []byte(`{"type":"join","payload":{"routeId":"route-1","speed":12.5}}`)))
	})

	t.Run("join with numeric route id and no speed", func(t *testing.T) {
		req := require.New(t)
		hub.EXPECT().Join(gomock.Any(), gomock.Nil(), "42", gomock.Nil()).Return(nil).Times(1)
		req.NoError(d.Dispatch(ctx, nil, []byte(`{"type":"join","payload":{"routeId":42}}`)))
	})

	t.Run("join error is returned to the caller", func(t *testing.T) {
		req := require.New(t)
		hub.EXPECT().Join(gomock.Any(), gomock.Nil(), "ghost", gomock.Nil()).Return(server.ErrRouteNotFound).Times(1)
		err := d.Dispatch(ctx, nil, []byte(`{"type":"join","payload":{"routeId":"ghost"}}`))
		req.ErrorIs(err, server.ErrRouteNotFound)
		req.Equal("Route not found", ErrorMessage(err))
	})

	t.Run("control commands are attributed to the user", func(t *testing.T) {
		req := require.New(t)
		gomock.InOrder(
			hub.EXPECT().Start(gomock.Nil(), server.ByUser),
			hub.EXPECT().Pause(gomock.Nil(), server.ByUser),
			hub.EXPECT().Reset(gomock.Nil(), server.ByUser),
			hub.EXPECT().Leave(gomock.Nil()),
		)
		for _, raw := range []string{`{"type":"start"}`, `{"type":"pause","payload":null}`, `{"type":"reset","payload":{}}`, `{"type":"leave"}`} {
			req.NoError(d.Dispatch(ctx, nil, []byte(raw)))
		}
	})

	t.Run("speed change", func(t *testing.T) {
		req := require.New(t)
		hub.EXPECT().SetSpeed(gomock.Nil(), 20.0, server.ByUser).Return(nil).Times(1)
		req.NoError(d.Dispatch(ctx, nil, []byte(`{"type":"speed_change","payload":{"speed":20}}`)))
	})

	t.Run("missing speed is passed on as zero", func(t *testing.T) {
		req := require.New(t)
		hub.EXPECT().SetSpeed(gomock.Nil(), 0.0, server.ByUser).Return(server.ErrInvalidSpeed).Times(1)
		err := d.Dispatch(ctx, nil, []byte(`{"type":"speed_change","payload":{}}`))
		req.ErrorIs(err, server.ErrInvalidSpeed)
		req.Equal("Invalid speed", ErrorMessage(err))
	})
}

func TestDispatcher_Malformed(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	hub := mocks.NewMockCommandHub(ctrl)
	var published []logging.Event
	d := NewDispatcher(hub, logging.PublisherFunc(func(_ context.Context, e logging.Event) {
		published = append(published, e)
	}))

	tests := []struct {
		name string
		raw  string
	}{
		{name: "not json", raw: `hello`},
		{name: "missing type", raw: `{"payload":{}}`},
		{name: "join without route", raw: `{"type":"join","payload":{}}`},
		{name: "join with object route", raw: `{"type":"join","payload":{"routeId":{"x":1}}}`},
		{name: "join with string speed", raw: `{"type":"join","payload":{"routeId":"a","speed":"fast"}}`},
		{name: "speed as string", raw: `{"type":"speed_change","payload":{"speed":"fast"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			err := d.Dispatch(context.Background(), nil, []byte(tt.raw))
			req.ErrorIs(err, ErrMalformedCommand)
			req.Equal("Invalid message format", ErrorMessage(err))
		})
	}
	require.Len(t, published, len(tests))
	for _, e := range published {
		require.Equal(t, network.EventMalformedCommand, e.Type)
	}
}

func TestDispatcher_UnknownTypeIsDropped(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	hub := mocks.NewMockCommandHub(ctrl)
	var published []logging.Event
	d := NewDispatcher(hub, logging.PublisherFunc(func(_ context.Context, e logging.Event) {
		published = append(published, e)
	}))

	require.NoError(t, d.Dispatch(context.Background(), nil, []byte(`{"type":"teleport","payload":{"x":1}}`)))
	require.Len(t, published, 1)
	require.Equal(t, network.EventUnknownCommand, published[0].Type)
}

func TestErrorMessage(t *testing.T) {
	req := require.New(t)
	req.Equal(proto.MessageInternalError, ErrorMessage(errors.New("boom")))
	req.Equal(proto.MessageInternalError, ErrorMessage(server.ErrInternalFault))
	req.Equal(proto.MessageRouteNotFound, ErrorMessage(server.ErrRouteNotFound))
}
