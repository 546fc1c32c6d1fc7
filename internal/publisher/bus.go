package publisher

import "context"

// EventNameAttribute is the routing attribute carrying the event name.
const EventNameAttribute = "eventName"

// StringDataType is the data type of string-valued attributes.
const StringDataType = "String"

// Attribute is a typed message attribute sent alongside the body.
type Attribute struct {
	DataType    string `json:"data_type"`
	StringValue string `json:"string_value"`
}

// Message is one outbound message.
type Message struct {
	Topic      string
	Body       []byte
	Attributes map[string]Attribute
}

// Bus delivers messages to a pub/sub topic and returns the broker message id.
type Bus interface {
	Send(ctx context.Context, msg Message) (string, error)
	Name() string
	Close() error
}
