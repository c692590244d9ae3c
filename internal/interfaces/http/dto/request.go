package dto

// ConnectRequest is the form posted to start a connection. A DELETE override
// never reaches the connect handler, so any _method left is unsupported.
type ConnectRequest struct {
	Scopes []string `form:"scope" validate:"max=20,dive,max=100,printascii"`
	Method string   `form:"_method" validate:"omitempty,oneof=DELETE"`
}
