package http

import (
	"github.com/indigo-web/h1/http/proto"
	"github.com/indigo-web/h1/kv"
	"golang.org/x/net/http/httpguts"
)

// ShouldKeepAlive decides whether a connection may be reused after a message with the
// given version and headers. HTTP/1.0 closes unless the Connection header lists
// keep-alive, HTTP/1.1 keeps the connection unless it lists close. Any other version
// never keeps the connection.
func ShouldKeepAlive(p proto.Proto, headers *kv.Storage) bool {
	var connection []string
	if headers != nil {
		connection = headers.Values("Connection")
	}

	switch p {
	case proto.HTTP10:
		return httpguts.HeaderValuesContainsToken(connection, "keep-alive")
	case proto.HTTP11:
		return !httpguts.HeaderValuesContainsToken(connection, "close")
	default:
		return false
	}
}
