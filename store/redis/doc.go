// Package redis implements store.Store on Redis. Jobs and printers are
// Hashes; per-printer Sets index queued jobs, and a WATCH/MULTI transaction
// makes ClaimJob atomic. Template data is encoded with MessagePack.
//
// Usage:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	s := redisstore.New(client)
//	if err := s.Ping(ctx); err != nil { ... }
package redis
