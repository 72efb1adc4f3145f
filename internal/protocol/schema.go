package protocol

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/message.schema.json
var messageSchemaJSON []byte

const messageSchemaURL = "https://hexcolony.local/schemas/message.schema.json"

var (
	messageSchemaOnce sync.Once
	messageSchema     *jsonschema.Schema
	messageSchemaErr  error
)

func compiledMessageSchema() (*jsonschema.Schema, error) {
	messageSchemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource(messageSchemaURL, bytes.NewReader(messageSchemaJSON)); err != nil {
			messageSchemaErr = err
			return
		}
		messageSchema, messageSchemaErr = c.Compile(messageSchemaURL)
	})
	return messageSchema, messageSchemaErr
}

// DecodeMessage validates raw against the channel message schema and
// decodes it. Frames that fail validation are reported, never half-decoded.
func DecodeMessage(raw []byte) (Message, error) {
	schema, err := compiledMessageSchema()
	if err != nil {
		return Message{}, fmt.Errorf("compile message schema: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return Message{}, fmt.Errorf("invalid message: %w", err)
	}
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	return msg, nil
}

func EncodeMessage(m Message) ([]byte, error) {
	return json.Marshal(m)
}
