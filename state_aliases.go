package server

import "routesim/server/internal/net/proto"

type RoomSummary = proto.RoomSummary
