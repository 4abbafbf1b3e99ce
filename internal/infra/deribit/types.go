package deribit

import "encoding/json"

// rpcError is the error object of a Deribit JSON-RPC response.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// rpcResponse is the envelope every Deribit REST endpoint returns.
type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// authResult is the payload of public/auth.
type authResult struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"` // seconds
	TokenType   string `json:"token_type"`
}

// orderData is the order object embedded in trade and state responses.
type orderData struct {
	OrderID      string  `json:"order_id"`
	OrderState   string  `json:"order_state"`
	FilledAmount float64 `json:"filled_amount"`
	Label        string  `json:"label"`
}

// placeOrderResult is the payload of private/buy and private/sell.
type placeOrderResult struct {
	Order orderData `json:"order"`
}

// orderBookResult is the payload of public/get_order_book.
// Levels arrive as [price, amount] pairs; json.Number keeps full
// precision for the decimal conversion.
type orderBookResult struct {
	Bids      [][]json.Number `json:"bids"`
	Asks      [][]json.Number `json:"asks"`
	Timestamp int64           `json:"timestamp"` // milliseconds
}

// wsRequest is an outgoing JSON-RPC message on the websocket.
type wsRequest struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      int64          `json:"id"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params,omitempty"`
}

// wsNotification is an incoming subscription message.
type wsNotification struct {
	Method string `json:"method"`
	Params struct {
		Channel string          `json:"channel"`
		Data    json.RawMessage `json:"data"`
	} `json:"params"`
}
