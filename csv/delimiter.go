package csv

import (
	"bufio"
	"io"
	"strings"

	"hermannm.dev/wrap"
)

var DefaultDelimitersToCheck = []rune{',', ';', '\t', '|', ' '}

// Used when no candidate occurs in the checked lines, as in single-column files.
const fallbackDelimiter = ','

// Picks the delimiter whose count is most consistent across the first lines of the file, preferring
// higher counts. The file is seeked back to its start before returning.
func DeduceFieldDelimiter(
	csvFile io.ReadSeeker,
	maxRowsToCheck int,
	delimitersToCheck []rune,
) (delimiter rune, err error) {
	defer func() {
		if _, seekErr := csvFile.Seek(0, io.SeekStart); seekErr != nil {
			err = wrap.Error(seekErr, "failed to reset CSV reader after deducing field delimiter")
		}
	}()

	if len(delimitersToCheck) == 0 {
		delimitersToCheck = DefaultDelimitersToCheck
	}

	candidates := make([]delimiterCandidate, len(delimitersToCheck))
	for i, delimiter := range delimitersToCheck {
		candidates[i] = delimiterCandidate{delimiter: delimiter, highestCount: -1, lowestCount: -1}
	}

	scanner := bufio.NewScanner(csvFile)
	for row := 0; row < maxRowsToCheck && scanner.Scan(); row++ {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		for i := range candidates {
			candidates[i].addLine(line)
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, wrap.Error(err, "failed to scan CSV file for field delimiter")
	}

	return bestDelimiter(candidates), nil
}

type delimiterCandidate struct {
	delimiter    rune
	highestCount int
	lowestCount  int
}

func (candidate *delimiterCandidate) addLine(line string) {
	count := strings.Count(line, string(candidate.delimiter))

	if candidate.highestCount == -1 || candidate.highestCount < count {
		candidate.highestCount = count
	}
	if candidate.lowestCount == -1 || candidate.lowestCount > count {
		candidate.lowestCount = count
	}
}

func (candidate delimiterCandidate) isConsistent() bool {
	return candidate.highestCount == candidate.lowestCount
}

func (candidate delimiterCandidate) betterThan(best delimiterCandidate) bool {
	if candidate.highestCount <= 0 {
		return false
	}

	switch {
	case candidate.isConsistent() && best.isConsistent():
		return candidate.highestCount > best.highestCount
	case candidate.isConsistent():
		return true
	case best.isConsistent():
		return best.highestCount <= 0
	default:
		return candidate.highestCount > best.highestCount &&
			(candidate.lowestCount != 0 || best.lowestCount == 0)
	}
}

func bestDelimiter(candidates []delimiterCandidate) rune {
	best := delimiterCandidate{delimiter: fallbackDelimiter}

	for _, candidate := range candidates {
		if candidate.betterThan(best) {
			best = candidate
		}
	}

	return best.delimiter
}
