package ledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// TimeLayout is the timestamp format of ledger rows, in local time.
const TimeLayout = "2006-01-02 15:04:05"

var header = []string{"timestamp", "total_equity", "pnl_usdt", "pnl_percent"}

// Entry is one risk-check row.
type Entry struct {
	Time        time.Time
	TotalEquity float64
	PnL         float64
	PnLPercent  float64
}

// Mirror receives every appended entry, e.g. a database copy of the ledger.
type Mirror interface {
	RecordEquity(Entry) error
	Close() error
}

// Ledger is an append-only CSV file of equity snapshots. Rows are never
// rewritten or deduplicated.
type Ledger struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	w      *csv.Writer
	mirror Mirror
}

// Open opens path for appending and writes the header when the file is new or empty.
func Open(path string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	l := &Ledger{path: path, file: f, w: csv.NewWriter(f)}
	if info.Size() == 0 {
		if err := l.w.Write(header); err != nil {
			f.Close()
			return nil, err
		}
		l.w.Flush()
		if err := l.w.Error(); err != nil {
			f.Close()
			return nil, err
		}
	}
	return l, nil
}

func (l *Ledger) Path() string { return l.path }

// SetMirror attaches a secondary sink. Mirror failures do not fail Append.
func (l *Ledger) SetMirror(m Mirror) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.mirror = m
}

// Append writes e and flushes. The mirror error, if any, is returned wrapped
// after the CSV row is safely written.
func (l *Ledger) Append(e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return errors.New("ledger is closed")
	}

	err := l.w.Write([]string{
		e.Time.Local().Format(TimeLayout),
		money(e.TotalEquity),
		money(e.PnL),
		money(e.PnLPercent),
	})
	if err != nil {
		return err
	}
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		return err
	}

	if l.mirror != nil {
		if err := l.mirror.RecordEquity(e); err != nil {
			return fmt.Errorf("ledger mirror: %w", err)
		}
	}
	return nil
}

func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	l.w.Flush()
	werr := l.w.Error()
	cerr := l.file.Close()
	l.file = nil

	var merr error
	if l.mirror != nil {
		merr = l.mirror.Close()
	}
	return errors.Join(werr, cerr, merr)
}

// ReadAll parses a ledger file. A missing file yields no entries.
func ReadAll(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// Read parses ledger rows from r, skipping the header and malformed lines.
func Read(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	var out []Entry
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return out, err
		}
		if len(rec) < 4 || rec[0] == header[0] {
			continue
		}
		e, ok := parseRow(rec)
		if !ok {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func parseRow(rec []string) (Entry, bool) {
	ts, err := time.ParseInLocation(TimeLayout, rec[0], time.Local)
	if err != nil {
		return Entry{}, false
	}
	var vals [3]float64
	for i := range vals {
		v, err := strconv.ParseFloat(rec[i+1], 64)
		if err != nil {
			return Entry{}, false
		}
		vals[i] = v
	}
	return Entry{Time: ts, TotalEquity: vals[0], PnL: vals[1], PnLPercent: vals[2]}, true
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// Tail returns the last n entries.
func Tail(entries []Entry, n int) []Entry {
	if n <= 0 || len(entries) <= n {
		return entries
	}
	return entries[len(entries)-n:]
}
