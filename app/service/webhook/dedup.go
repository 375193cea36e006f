package webhook

import "sync"

// dedupSet remembers recently processed message ids with a FIFO bound, so
// redelivered webhooks are acknowledged without reprocessing.
type dedupSet struct {
	mutex sync.Mutex
	seen  map[string]bool
	order []string
	limit int
}

func newDedupSet(limit int) *dedupSet {
	return &dedupSet{
		seen:  make(map[string]bool, limit),
		order: make([]string, 0, limit),
		limit: limit,
	}
}

// MarkProcessed records the ids and reports whether every one of them was
// already known, which marks the whole delivery as a duplicate.
func (d *dedupSet) MarkProcessed(ids []string) bool {
	if len(ids) == 0 {
		return false
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()

	duplicate := true

	for _, id := range ids {
		if id == "" {
			continue
		}
		if d.seen[id] {
			continue
		}

		duplicate = false
		d.seen[id] = true
		d.order = append(d.order, id)

		if len(d.order) > d.limit {
			oldest := d.order[0]
			d.order = d.order[1:]
			delete(d.seen, oldest)
		}
	}

	return duplicate
}
