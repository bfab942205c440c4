package workflow

import (
	"errors"
	"fmt"
	"strings"
)

// ActionKind enumerates the buttons a user can tap.
type ActionKind int

const (
	ActionSelect ActionKind = iota + 1
	ActionDone
	ActionConfirm
	ActionRemoveMenu
	ActionRemove
	ActionAddMore
	ActionBack
	ActionNewWorker
)

// Action is a decoded button tap. Name is set for ActionSelect and
// ActionRemove.
type Action struct {
	Kind ActionKind
	Name string
}

var ErrUnknownAction = errors.New("unknown action")

const (
	tokenDone       = "done"
	tokenConfirm    = "confirm"
	tokenRemoveMenu = "remove"
	tokenAddMore    = "add"
	tokenBack       = "back"
	tokenNewWorker  = "new"
	prefixSelect    = "w:"
	prefixRemove    = "rm:"
)

// Encode renders the callback payload carried by a button.
func (a Action) Encode() string {
	switch a.Kind {
	case ActionSelect:
		return prefixSelect + a.Name
	case ActionRemove:
		return prefixRemove + a.Name
	case ActionDone:
		return tokenDone
	case ActionConfirm:
		return tokenConfirm
	case ActionRemoveMenu:
		return tokenRemoveMenu
	case ActionAddMore:
		return tokenAddMore
	case ActionBack:
		return tokenBack
	case ActionNewWorker:
		return tokenNewWorker
	}
	return ""
}

// DecodeAction parses a callback payload.
func DecodeAction(data string) (Action, error) {
	switch data {
	case tokenDone:
		return Action{Kind: ActionDone}, nil
	case tokenConfirm:
		return Action{Kind: ActionConfirm}, nil
	case tokenRemoveMenu:
		return Action{Kind: ActionRemoveMenu}, nil
	case tokenAddMore:
		return Action{Kind: ActionAddMore}, nil
	case tokenBack:
		return Action{Kind: ActionBack}, nil
	case tokenNewWorker:
		return Action{Kind: ActionNewWorker}, nil
	}
	if name, ok := strings.CutPrefix(data, prefixSelect); ok && name != "" {
		return Action{Kind: ActionSelect, Name: name}, nil
	}
	if name, ok := strings.CutPrefix(data, prefixRemove); ok && name != "" {
		return Action{Kind: ActionRemove, Name: name}, nil
	}
	return Action{}, fmt.Errorf("%w: %q", ErrUnknownAction, data)
}
