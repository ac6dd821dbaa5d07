// Package redis provides a go-redis client and a credential backend that
// keeps the stored pair in Redis, so several processes of the same
// deployment can share one session.
//
//	client, err := redis.New(redis.Config{Enabled: true, Addr: "localhost:6379"}, log)
//	store := credential.NewStore(redis.NewCredentialBackend(client, "apiclient", 0))
package redis
