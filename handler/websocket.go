package handler

import (
	"commerce_settlement/constants"
	"commerce_settlement/helper"
	"commerce_settlement/live"
	"commerce_settlement/model"
	"commerce_settlement/utils"
	"context"
	"encoding/json"
	"errors"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

// WebsocketUpgrade must run after middleware.Protected.
func (h *Handler) WebsocketUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	claim, ok := helper.GetUserFromToken(c)
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, constants.ERROR_UNAUTHORIZED, errors.New("no user"))
	}
	c.Locals("claim", claim)
	return c.Next()
}

// PaymentWebsocket reads join/leave/check requests until the client goes away.
func (h *Handler) PaymentWebsocket(c *websocket.Conn) {
	claim, _ := c.Locals("claim").(model.TokenClaim)

	connId, err := h.Hub.Register(c, claim.UserId)
	if err != nil {
		_ = c.WriteJSON(live.Message{Type: live.MessageError, Error: err.Error()})
		_ = c.Close()
		return
	}
	// drop the connection from every order group once the socket closes
	defer h.Hub.Disconnect(connId)

	ctx := context.Background()
	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debugw("live connection closed", "conn", connId, "user", claim.UserId, "error", err)
			}
			return
		}
		// malformed frames fall through as an unknown action
		var msg live.ClientMessage
		_ = json.Unmarshal(data, &msg)
		if err := h.Hub.Dispatch(ctx, connId, msg); errors.Is(err, live.ErrUnknownConn) {
			return
		}
	}
}
