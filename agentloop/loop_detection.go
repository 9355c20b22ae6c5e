package agentloop

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
)

// invocationSignature computes a deterministic signature for a tool
// invocation (name + hash of params). Map keys marshal in sorted order.
func invocationSignature(inv ToolInvocation) string {
	params, _ := json.Marshal(inv.Params)
	h := sha256.Sum256(params)
	return fmt.Sprintf("%s:%x", inv.Name, h[:8])
}

// DetectLoop checks if the last windowSize signatures follow a repeating
// pattern of length 1, 2, or 3.
func DetectLoop(sigs []string, windowSize int) bool {
	if windowSize <= 0 || len(sigs) < windowSize {
		return false
	}
	window := sigs[len(sigs)-windowSize:]

	for patternLen := 1; patternLen <= 3; patternLen++ {
		if windowSize%patternLen != 0 || windowSize == patternLen {
			continue
		}
		pattern := window[:patternLen]
		allMatch := true
		for i := patternLen; i < windowSize && allMatch; i += patternLen {
			for j := 0; j < patternLen; j++ {
				if window[i+j] != pattern[j] {
					allMatch = false
					break
				}
			}
		}
		if allMatch {
			return true
		}
	}

	return false
}
