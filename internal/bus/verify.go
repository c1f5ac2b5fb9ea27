package bus

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ppiankov/agentbus/internal/event"
)

// VerifyResult holds the outcome of a hash chain verification.
type VerifyResult struct {
	Valid     bool   `json:"valid"`
	Events    int    `json:"events"`
	Error     string `json:"error,omitempty"`
	ErrorLine int    `json:"error_line,omitempty"`
}

// Verify reads a JSONL event log and validates the hash chain and
// sequence monotonicity. Returns Valid=true if the chain is intact, or
// details about the first broken link.
func Verify(path string) VerifyResult {
	f, err := os.Open(path)
	if err != nil {
		return VerifyResult{Error: fmt.Sprintf("open: %v", err)}
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNum := 0
	var prevLineBytes []byte
	var prevSeq uint64

	for scanner.Scan() {
		lineNum++
		raw := scanner.Bytes()

		// Make a copy since scanner reuses the buffer
		line := make([]byte, len(raw))
		copy(line, raw)

		var ev event.Event
		if err := json.Unmarshal(line, &ev); err != nil {
			return VerifyResult{
				Error:     fmt.Sprintf("parse error: %v", err),
				ErrorLine: lineNum,
			}
		}

		if lineNum == 1 {
			if ev.PrevHash != GenesisHash {
				return VerifyResult{
					Error:     fmt.Sprintf("first event prev_hash is %q, expected genesis hash", ev.PrevHash),
					ErrorLine: 1,
				}
			}
		} else {
			expectedHash := HashLine(prevLineBytes)
			if ev.PrevHash != expectedHash {
				return VerifyResult{
					Error:     fmt.Sprintf("hash mismatch: expected %s, got %s", expectedHash, ev.PrevHash),
					ErrorLine: lineNum,
				}
			}
		}

		if ev.Seq <= prevSeq {
			return VerifyResult{
				Error:     fmt.Sprintf("sequence not increasing: %d after %d", ev.Seq, prevSeq),
				ErrorLine: lineNum,
			}
		}
		prevSeq = ev.Seq
		prevLineBytes = line
	}

	if err := scanner.Err(); err != nil {
		return VerifyResult{Error: fmt.Sprintf("scan: %v", err)}
	}

	return VerifyResult{Valid: true, Events: lineNum}
}
