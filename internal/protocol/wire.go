package protocol

import (
	"encoding/json"

	"github.com/jsvx/crosscheck/internal/domain"
)

// Version is the protocol version the harness speaks. An implementation
// declaring anything else is dropped at startup.
const Version = 1

type startRequest struct {
	Cmd     string `json:"cmd"`
	Version int    `json:"version"`
}

type startResponse struct {
	Version        int             `json:"version"`
	Implementation json.RawMessage `json:"implementation"`
}

type dialectRequest struct {
	Cmd     string `json:"cmd"`
	Dialect string `json:"dialect"`
}

type dialectResponse struct {
	OK bool `json:"ok"`
}

type runRequest struct {
	Cmd  string          `json:"cmd"`
	Seq  int             `json:"seq"`
	Case domain.TestCase `json:"case"`
}

// RunResult is the decoded response to one run request. Results are kept
// raw; the classifier owns their interpretation.
type RunResult struct {
	Seq     int               `json:"seq"`
	Results []json.RawMessage `json:"results"`
}

type stopRequest struct {
	Cmd string `json:"cmd"`
}
