// Package loader reads flat message lists from exports: a bare JSON array or the
// {"data": [...]} envelope returned by chat message listing endpoints.
package loader

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/chatthread/pkg/chattree"
)

type envelope struct {
	Data []chattree.Message `json:"data"`
}

// Result is a decoded export.
type Result struct {
	Messages []chattree.Message
	Repair   RepairStats
}

// LoadFile reads messages from path, or from stdin when path is "-".
func LoadFile(path string) (*Result, error) {
	if path == "-" {
		return Load(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	res, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return res, nil
}

// Load decodes messages from r, repairing malformed JSON when plain decoding fails.
func Load(r io.Reader) (*Result, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read messages: %w", err)
	}

	msgs, decodeErr := Decode(raw)
	if decodeErr == nil {
		return &Result{Messages: msgs, Repair: RepairStats{OriginalBytes: len(raw), RepairedBytes: len(raw)}}, nil
	}

	repaired, stats, err := Repair(string(raw))
	if err != nil {
		return nil, fmt.Errorf("decode messages: %w (repair: %v)", decodeErr, err)
	}
	msgs, err = Decode([]byte(repaired))
	if err != nil {
		return nil, fmt.Errorf("decode repaired messages: %w", err)
	}

	log.Warn().
		Strs("strategies", stats.Strategies).
		Int("original_bytes", stats.OriginalBytes).
		Int("repaired_bytes", stats.RepairedBytes).
		Msg("Repaired malformed message export")

	return &Result{Messages: msgs, Repair: stats}, nil
}

// Decode accepts a JSON array of messages or an object with a data array.
func Decode(raw []byte) ([]chattree.Message, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty input")
	}

	switch trimmed[0] {
	case '[':
		var msgs []chattree.Message
		if err := json.Unmarshal(trimmed, &msgs); err != nil {
			return nil, err
		}
		return orEmpty(msgs), nil
	case '{':
		var env envelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, err
		}
		return orEmpty(env.Data), nil
	default:
		return nil, fmt.Errorf("expected a JSON array or an object with a data field")
	}
}

func orEmpty(msgs []chattree.Message) []chattree.Message {
	if msgs == nil {
		return []chattree.Message{}
	}
	return msgs
}
