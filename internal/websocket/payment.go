// internal/websocket/payment.go
package websocket

import (
	wstypes "fanpay-service/internal/domain/websocket"
)

// EmitPaymentRedirect pushes the receipt redirect for a settled transaction
// to the user's active sessions.
func (h *Hub) EmitPaymentRedirect(userID string, data *wstypes.PaymentRedirectData) {
	h.EmitToUser(userID, wstypes.NewMessage(wstypes.EventTypePaymentRedirect, data))
}

// EmitPaymentConfirm prompts the user to complete card authentication.
func (h *Hub) EmitPaymentConfirm(userID string, data *wstypes.PaymentConfirmData) {
	h.EmitToUser(userID, wstypes.NewMessage(wstypes.EventTypePaymentConfirm, data))
}
