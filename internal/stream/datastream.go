package stream

import (
	"sync"
	"time"

	"github.com/bhuwanb23/profitpulse-anomaly/internal/domain/anomaly"
)

// BufferedEntry is a record plus its ingestion timestamp. Entries are owned
// exclusively by their DataStream and destroyed on FIFO eviction.
type BufferedEntry struct {
	Record     anomaly.Record `json:"record"`
	ReceivedAt time.Time      `json:"received_at"`
}

// BufferStats is a point-in-time snapshot of a stream's buffer state.
type BufferStats struct {
	StreamID      string    `json:"stream_id"`
	StreamType    string    `json:"stream_type"`
	BufferSize    int       `json:"buffer_size"`
	MaxBufferSize int       `json:"max_buffer_size"`
	LastUpdate    time.Time `json:"last_update"`
	UpdateCount   int64     `json:"update_count"`
}

// DataStream is a bounded, timestamped circular buffer for one named stream.
// When full, AddData evicts the oldest entry: a lossy admission-control
// policy that keeps producers live at the cost of completeness.
type DataStream struct {
	mu sync.RWMutex

	id         string
	streamType string

	buf   []BufferedEntry
	head  int // index of the oldest entry
	count int

	lastUpdate  time.Time
	updateCount int64
}

// NewDataStream creates an empty stream with the given capacity.
// Capacity must be positive; enforced at config validation.
func NewDataStream(id, streamType string, maxBufferSize int) *DataStream {
	return &DataStream{
		id:         id,
		streamType: streamType,
		buf:        make([]BufferedEntry, maxBufferSize),
	}
}

// AddData stamps the record with the current time and appends it to the
// buffer, evicting the oldest entry first when full.
func (s *DataStream) AddData(rec anomaly.Record) {
	s.addAt(rec, time.Now())
}

func (s *DataStream) addAt(rec anomaly.Record, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := BufferedEntry{Record: rec, ReceivedAt: at}
	if s.count < len(s.buf) {
		s.buf[(s.head+s.count)%len(s.buf)] = entry
		s.count++
	} else {
		// full: overwrite the oldest slot and advance
		s.buf[s.head] = entry
		s.head = (s.head + 1) % len(s.buf)
	}
	s.updateCount++
	s.lastUpdate = at
}

// LatestData returns the most recent n entries, oldest-first, as a snapshot
// rather than a live view. n larger than the buffer returns everything.
func (s *DataStream) LatestData(n int) []BufferedEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 || s.count == 0 {
		return []BufferedEntry{}
	}
	if n > s.count {
		n = s.count
	}
	out := make([]BufferedEntry, 0, n)
	start := s.count - n
	for i := start; i < s.count; i++ {
		out = append(out, s.buf[(s.head+i)%len(s.buf)])
	}
	return out
}

// Stats returns a snapshot of buffer bookkeeping for status reporting.
func (s *DataStream) Stats() BufferStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return BufferStats{
		StreamID:      s.id,
		StreamType:    s.streamType,
		BufferSize:    s.count,
		MaxBufferSize: len(s.buf),
		LastUpdate:    s.lastUpdate,
		UpdateCount:   s.updateCount,
	}
}

// ID returns the stream identifier.
func (s *DataStream) ID() string { return s.id }

// StreamType returns the stream's record type tag.
func (s *DataStream) StreamType() string { return s.streamType }
