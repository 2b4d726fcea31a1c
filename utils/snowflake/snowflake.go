// Package snowflake issues time-ordered 63-bit ids: 41 bits of milliseconds since
// Epoch, 10 bits of node id and 12 bits of per-millisecond sequence.
package snowflake

import (
	"errors"
	"strconv"
	"sync"
	"time"
)

const (
	// Epoch is 2024-01-01T00:00:00Z in Unix milliseconds.
	Epoch int64 = 1704067200000

	NodeBits     = 10
	SequenceBits = 12

	MaxNode     = -1 ^ (-1 << NodeBits)
	maxSequence = -1 ^ (-1 << SequenceBits)

	nodeShift = SequenceBits
	timeShift = SequenceBits + NodeBits

	// maxBackwardDrift is how far the clock may step back before NextID gives up.
	maxBackwardDrift = 5 * time.Millisecond
)

var (
	ErrInvalidNode         = errors.New("snowflake: node id out of range")
	ErrClockMovedBackwards = errors.New("snowflake: clock moved backwards")
)

// Generator is safe for concurrent use.
type Generator struct {
	mu       sync.Mutex
	node     int64
	lastMs   int64
	sequence int64
	now      func() time.Time
	sleep    func(time.Duration)
}

func NewGenerator(node int64) (*Generator, error) {
	if node < 0 || node > MaxNode {
		return nil, ErrInvalidNode
	}
	return &Generator{node: node, now: time.Now, sleep: time.Sleep}, nil
}

func (g *Generator) NextID() (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := g.now().UnixMilli()
	if ms < g.lastMs {
		drift := time.Duration(g.lastMs-ms) * time.Millisecond
		if drift > maxBackwardDrift {
			return 0, ErrClockMovedBackwards
		}
		g.sleep(drift)
		ms = g.now().UnixMilli()
		if ms < g.lastMs {
			return 0, ErrClockMovedBackwards
		}
	}

	if ms == g.lastMs {
		g.sequence = (g.sequence + 1) & maxSequence
		if g.sequence == 0 {
			for ms <= g.lastMs {
				ms = g.now().UnixMilli()
			}
		}
	} else {
		g.sequence = 0
	}
	g.lastMs = ms

	return (ms-Epoch)<<timeShift | g.node<<nodeShift | g.sequence, nil
}

// NextString is NextID in decimal, the form message ids are stored in.
func (g *Generator) NextString() (string, error) {
	id, err := g.NextID()
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(id, 10), nil
}

// Parts is a decoded id.
type Parts struct {
	Time     time.Time
	Node     int64
	Sequence int64
}

func Decompose(id int64) Parts {
	return Parts{
		Time:     time.UnixMilli((id >> timeShift) + Epoch).UTC(),
		Node:     (id >> nodeShift) & MaxNode,
		Sequence: id & maxSequence,
	}
}
