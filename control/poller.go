package control

import (
	"strings"
	"unicode"

	"voxnote/metrics"
	"voxnote/queue"
)

// Poller moves recognized chunks from the transcript queue into the
// document. Tick drains everything present at call time with no batch
// cap.
type Poller struct {
	q *queue.Queue[string]
}

func NewPoller(q *queue.Queue[string]) *Poller { return &Poller{q: q} }

// Tick appends each pending chunk, terminated by exactly one space, with a
// single Append, and returns how many chunks it consumed.
func (p *Poller) Tick(doc Document) int {
	chunks := p.q.Drain()
	if len(chunks) == 0 {
		return 0
	}
	metrics.QueueDepth("transcript", p.q.Len())

	var b strings.Builder
	for _, c := range chunks {
		c = strings.TrimRightFunc(c, unicode.IsSpace)
		if strings.TrimSpace(c) == "" {
			continue
		}
		b.WriteString(c)
		b.WriteByte(' ')
	}
	if b.Len() > 0 {
		doc.Append(b.String())
	}
	return len(chunks)
}
