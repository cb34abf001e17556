package orchestration

import "strings"

const sentenceTerminators = ".?!:\n"

// splitAtLastTerminator splits buffer after the right-most terminator of any
// kind. Nothing is trimmed, head+rest is always buffer.
func splitAtLastTerminator(buffer string) (head, rest string, ok bool) {
	i := strings.LastIndexAny(buffer, sentenceTerminators)
	if i < 0 {
		return "", buffer, false
	}
	return buffer[:i+1], buffer[i+1:], true
}

// feedSentence appends chunk to buffer and completes at most one sentence:
// everything up to the right-most terminator. Several sentences arriving in
// one chunk therefore come out together as one utterance.
func feedSentence(buffer, chunk string) (string, []string) {
	buffer += chunk

	head, rest, ok := splitAtLastTerminator(buffer)
	if !ok {
		return buffer, nil
	}

	if sentence := strings.TrimSpace(head); sentence != "" {
		return rest, []string{sentence}
	}
	return rest, nil
}

// flushSentence returns whatever is left in buffer as a final utterance.
func flushSentence(buffer string) (string, bool) {
	utterance := strings.TrimSpace(buffer)
	return utterance, utterance != ""
}
