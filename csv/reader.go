package csv

import (
	"encoding/csv"
	"errors"
	"io"

	"hermannm.dev/wrap"
)

// Number of lines checked when deducing the field delimiter.
const delimiterSampleRows = 20

// Reader reads the rows of a CSV file with a header row, deducing the delimiter from the start of
// the file. The file can be read more than once with Rewind.
type Reader struct {
	file      io.ReadSeeker
	inner     *csv.Reader
	delimiter rune
	header    []string
	// 1-indexed line of the last read row, counting the header row as line 1.
	line int
}

func NewReader(csvFile io.ReadSeeker) (*Reader, error) {
	delimiter, err := DeduceFieldDelimiter(csvFile, delimiterSampleRows, DefaultDelimitersToCheck)
	if err != nil {
		return nil, err
	}

	reader := &Reader{file: csvFile, delimiter: delimiter}
	reader.inner = reader.newInnerReader()

	header, err := reader.inner.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("CSV file ended before header row")
		}
		return nil, wrap.Error(err, "failed to read CSV header row")
	}
	reader.header = make([]string, len(header))
	copy(reader.header, header)
	reader.line = 1

	return reader, nil
}

func (reader *Reader) newInnerReader() *csv.Reader {
	inner := csv.NewReader(reader.file)
	inner.ReuseRecord = true
	inner.Comma = reader.delimiter
	inner.TrimLeadingSpace = reader.delimiter != ' '
	return inner
}

// Reads the next row after the header, returning io.EOF when there are no more rows. The returned
// row is only valid until the next call to ReadRow.
func (reader *Reader) ReadRow() ([]string, error) {
	row, err := reader.inner.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, wrap.Errorf(err, "failed to read CSV row on line %d", reader.line+1)
	}

	reader.line++
	return row, nil
}

// Moves back to the first row after the header.
func (reader *Reader) Rewind() error {
	if _, err := reader.file.Seek(0, io.SeekStart); err != nil {
		return wrap.Error(err, "failed to seek to start of CSV file")
	}

	reader.inner = reader.newInnerReader()
	if _, err := reader.inner.Read(); err != nil {
		return wrap.Error(err, "failed to skip CSV header row")
	}
	reader.line = 1

	return nil
}

func (reader *Reader) Header() []string {
	return reader.header
}

func (reader *Reader) Delimiter() rune {
	return reader.delimiter
}
