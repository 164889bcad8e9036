// Package redis provides Redis client initialization for the key-value
// session backend: URL-validated connection with retry and ping verification
// (Connect) and a readiness probe (Healthcheck). Both redis:// and rediss://
// schemes are accepted.
//
// Configuration comes from environment variables via the Config struct:
//
//	REDIS_URL=redis://localhost:6379/0
//	REDIS_RETRY_ATTEMPTS=3
//	REDIS_SCAN_BATCH_SIZE=1000
package redis
