package usecase

import (
	"regexp"
	"time"

	"github.com/V4T54L/jmlog/internal/domain"
)

const lineTimeLayout = "2006-01-02 15:04:05"

// lineRe matches "<date time>,<millis> [LEVEL] [module]  payload".
// The millisecond part is not kept, so events of the same second share a key.
var lineRe = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}),\d+\s(?:\[.*?\]\s*)+(.*)$`)

// Assembler turns the lines of one log file into records.
type Assembler struct {
	classifier *Classifier
	loc        *time.Location
}

// NewAssembler creates an Assembler that parses line timestamps in loc.
func NewAssembler(classifier *Classifier, loc *time.Location) *Assembler {
	if loc == nil {
		loc = time.Local
	}
	return &Assembler{classifier: classifier, loc: loc}
}

// splitLine returns the timestamp and payload of a structural line.
func (a *Assembler) splitLine(line string) (time.Time, string, bool) {
	m := lineRe.FindStringSubmatch(line)
	if m == nil {
		return time.Time{}, "", false
	}
	ts, err := time.ParseInLocation(lineTimeLayout, m[1], a.loc)
	if err != nil {
		return time.Time{}, "", false
	}
	return ts, m[2], true
}

// Assemble builds the records of a single file. Continuation lines are appended
// to the open record; a structural line that starts no event closes it.
func (a *Assembler) Assemble(file string, lines []string) []*domain.LogRecord {
	var (
		records []*domain.LogRecord
		current *domain.LogRecord
	)
	for _, line := range lines {
		ts, payload, structural := a.splitLine(line)
		if !structural {
			if current != nil {
				current.AppendContent(line)
			}
			continue
		}

		cl, ok := a.classifier.Classify(payload)
		if !ok {
			current = nil
			continue
		}
		content := cl.Content
		current = &domain.LogRecord{
			Timestamp:  ts,
			Type:       cl.Type,
			SourceFile: file,
			RawContent: &content,
		}
		records = append(records, current)
	}
	return records
}
