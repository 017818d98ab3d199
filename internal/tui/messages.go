package tui

import "github.com/google/uuid"

// Every message carries the session generation it was issued for; messages
// from an earlier generation arrive after a mode switch and are dropped.

type pageLoadedMsg struct {
	session uuid.UUID
	count   int
	err     error
}

type modeChangedMsg struct {
	session uuid.UUID
	err     error
}

type sizeResolvedMsg struct {
	session uuid.UUID
	key     string
}

type openErrMsg struct {
	err error
}
