package handlers

import (
	"github.com/edgetensor/fleetdash/internal/config"
	"github.com/edgetensor/fleetdash/internal/dashboard"
	"github.com/edgetensor/fleetdash/internal/db"
	"github.com/edgetensor/fleetdash/internal/media"
	"github.com/edgetensor/fleetdash/internal/services"
	"github.com/edgetensor/fleetdash/internal/websocket"
)

type Dependencies struct {
	Config  *config.Config
	Conns   *db.Connections
	Devices *services.DeviceService
	Signer  *media.Signer
	Storage *media.Storage

	// Dashboard views fetch through DashboardAPI, normally the REST API of
	// this same server.
	DashboardAPI dashboard.API
	LiveMap      *dashboard.LiveMap
	Hub          *websocket.Hub
}
