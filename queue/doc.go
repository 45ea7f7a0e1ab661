// Package queue limits delivery throughput per printer.
//
// Slow devices (thermal label printers on a serial bridge, shared office
// lasers) can be swamped when a backlog drains. [Manager] caps how many
// deliveries to one printer run at once and how many start per second,
// using a token-bucket rate limiter (golang.org/x/time/rate) and an
// active-count gate.
//
//	m := queue.NewManager(
//	    queue.Config{RateLimit: 2},                           // default for every printer
//	    queue.Config{Key: zebraID, MaxConcurrency: 1},        // one job at a time
//	)
//	if err := m.Acquire(ctx, printerID); err != nil {
//	    return err
//	}
//	defer m.Release(printerID)
//
// Printers without a [Config] and without a default have no limits beyond
// the pool-wide concurrency.
package queue
