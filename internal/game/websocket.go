package game

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/scythe504/forsale-backend/internal/utils"
	"github.com/scythe504/forsale-backend/internal/websockets"
)

// =============================================================================
// WEBSOCKET CONNECTION HANDLING
// =============================================================================

// ServeWS upgrades /ws/{roomId} and feeds the connection's frames to
// Dispatch. The client must still send JOIN before anything else is accepted.
func (d *Dispatcher) ServeWS(w http.ResponseWriter, r *http.Request) {
	roomID := utils.NormalizeRoomID(mux.Vars(r)["roomId"])
	if roomID == "" {
		http.Error(w, "room id is required", http.StatusBadRequest)
		return
	}

	c, err := d.registry.Upgrade(w, r)
	if err != nil {
		d.logger.Warn("upgrade failed", zap.String("room_id", roomID), zap.Error(err))
		return
	}
	d.logger.Info("connection opened",
		zap.String("conn_id", c.ID()),
		zap.String("room_id", roomID),
		zap.String("remote", r.RemoteAddr))

	d.registry.Serve(c, func(c *websockets.Conn, frame []byte) {
		d.Dispatch(c, roomID, frame)
	})
}
