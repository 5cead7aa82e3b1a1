package utils

// SplitText splits a long string into chunks of approximately chunkSize
// characters with an overlap to preserve context at boundaries. Chunk
// ends are snapped back to the nearest paragraph or sentence break when
// one falls in the last fifth of the window, so fragments read as
// coherent prose rather than mid-sentence slices.
func SplitText(text string, chunkSize int, overlap int) []string {
	if len(text) <= chunkSize {
		return []string{text}
	}

	step := chunkSize - overlap
	if step <= 0 {
		step = chunkSize
	}

	runes := []rune(text)
	totalLen := len(runes)

	var chunks []string
	for i := 0; i < totalLen; {
		end := i + chunkSize
		if end >= totalLen {
			chunks = append(chunks, string(runes[i:totalLen]))
			break
		}

		end = snapToBreak(runes, i, end)
		chunks = append(chunks, string(runes[i:end]))

		next := end - overlap
		if next <= i {
			next = i + step
		}
		i = next
	}

	return chunks
}

// snapToBreak moves end back to just after a paragraph break, newline
// or sentence end, searching only the tail fifth of the window.
func snapToBreak(runes []rune, start, end int) int {
	floor := end - (end-start)/5
	for i := end - 1; i > floor; i-- {
		switch runes[i] {
		case '\n':
			return i + 1
		case '.', '!', '?':
			if i+1 < len(runes) && (runes[i+1] == ' ' || runes[i+1] == '\n') {
				return i + 2
			}
		}
	}
	return end
}
