package lockmgr

import (
	"math/rand/v2"
	"time"
)

// Maintenance sweeps the clients in random order and purges their expired locks.
// The budget is checked between two clients, so at least one client is processed per call.
// A budget <= 0 sweeps all clients.
func (s *memStorageImpl) Maintenance(budget time.Duration) int {
	start := time.Now()
	defer s.metrics.maintenance.UpdateDuration(start)

	// copy the client ids, the buckets may disappear while the sweep runs
	s.mu.Lock()
	clients := make([]string, 0, len(s.idx.clients))
	for clientID := range s.idx.clients {
		clients = append(clients, clientID)
	}
	s.mu.Unlock()

	rand.Shuffle(len(clients), func(i, j int) {
		clients[i], clients[j] = clients[j], clients[i]
	})

	purged, swept := 0, 0
	for _, clientID := range clients {
		if swept > 0 && budget > 0 && time.Since(start) >= budget {
			break
		}

		s.mu.Lock()
		purged += s.idx.purgeClient(clientID, s.now())
		s.mu.Unlock()
		swept++
	}

	if purged > 0 {
		s.metrics.expired.Add(purged)
	}
	Logger.Debugf("maintenance swept %d/%d clients and purged %d locks in %s",
		swept, len(clients), purged, time.Since(start))

	return purged
}
