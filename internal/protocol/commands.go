// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/shahabnazari/litstream/pkg/types"
)

// Command names as they appear in the outbound "command" field.
const (
	CommandStartSearch  = "start-search"
	CommandCancelSearch = "cancel-search"
	CommandResubscribe  = "resubscribe-search"
)

// Command is any client-to-server message.
type Command interface {
	CommandName() string
}

// StartSearch asks the server to begin a search. The client generates the
// searchId so it can resubscribe after a reconnect without waiting for a
// server acknowledgement.
type StartSearch struct {
	SearchID string              `json:"searchId"`
	Query    string              `json:"query"`
	Options  types.SearchOptions `json:"options"`
}

func (StartSearch) CommandName() string { return CommandStartSearch }

// CancelSearch asks the server to stop a search. The client has already
// marked the session cancelled locally by the time this is sent.
type CancelSearch struct {
	SearchID string `json:"searchId"`
}

func (CancelSearch) CommandName() string { return CommandCancelSearch }

// Resubscribe re-attaches the client to searches it still considers active
// after a reconnect.
type Resubscribe struct {
	SearchIDs []string `json:"searchIds"`
}

func (Resubscribe) CommandName() string { return CommandResubscribe }

// EncodeCommand wraps a command in its wire envelope.
func EncodeCommand(c Command) ([]byte, error) {
	payload, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", c.CommandName(), err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, fmt.Errorf("encoding %s envelope: %w", c.CommandName(), err)
	}
	fields["command"] = json.RawMessage(fmt.Sprintf("%q", c.CommandName()))
	return json.Marshal(fields)
}
