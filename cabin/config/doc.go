// Package config provides configuration management for CabinSmart.
//
// The config package handles:
//   - Loading the server configuration from a YAML file
//   - Built-in defaults for every setting
//   - Environment variable overrides
//   - Configuration validation
//
// Precedence:
//
// Defaults are applied first, then the YAML file (if any), then environment
// variables. Keys absent from the file keep their defaults.
//
// Environment Variables:
//
//	CABIN_HOST, CABIN_PORT            http.host, http.port
//	CABIN_STORE                       store.backend (memory|redis|postgres)
//	CABIN_SNAPSHOT_PATH               store.snapshot_path
//	REDIS_ADDR, REDIS_PASSWORD        store.redis.addr, store.redis.password
//	REDIS_DB, CABIN_REDIS_PREFIX      store.redis.db, store.redis.prefix
//	DATABASE_URL                      store.postgres.dsn
//	CABIN_BROKER                      broker.kind (none|kafka|amqp)
//	KAFKA_BROKERS, CABIN_KAFKA_TOPIC  broker.kafka.brokers (comma separated), broker.kafka.topic
//	RABBITMQ_URL, CABIN_AMQP_EXCHANGE broker.amqp.url, broker.amqp.exchange
//	NGROK_AUTHTOKEN, NGROK_DOMAIN     ngrok.auth_token, ngrok.domain
//	CABIN_LOG_LEVEL, CABIN_LOG_FORMAT log.level, log.format
//
// Usage:
//
//	cfg, err := config.Load("cabinsmart.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	cfg.ApplyEnv(os.LookupEnv)
//	if err := cfg.Validate(); err != nil {
//		log.Fatal(err)
//	}
package config
