// Package config reads server settings from the environment with
// envconfig. Every field has a default, so an empty environment yields
// Default(). Load validates the result and reports all bad settings in one
// error; LoadOrDefault falls back to Default() instead of failing.
//
//	PORT, HOST, SHUTDOWN_TIMEOUT
//	LOG_LEVEL, LOG_DEV, LOG_OUTPUT
//	RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//	CORS_ORIGINS, CORS_MAX_AGE
//	SANDBOX_TIMEOUT, SANDBOX_POOL_SIZE, SANDBOX_MAX_RUNTIMES, SANDBOX_CONSOLE
//	LOADER_FETCH_TIMEOUT, LOADER_EVALUATE_FOR_RESULT, LOADER_RATE_LIMIT
//	CLASSIFIER_SANITIZE
//	STORE_DRIVER (memory or sqlite), STORE_PATH
//	PROVISIONING_DIR
package config
