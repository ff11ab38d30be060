// Package middleware provides HTTP middleware for the control server.
//
// CORS admits loopback origins plus an explicit list, so browser tools on the
// same machine can drive the host and nothing else can. RateLimit is a per-IP
// token bucket; limiters idle longer than IdleTTL are swept on the next
// request. RequestLog tags each request with an X-Request-ID and logs it.
//
// Example Usage:
//
//	router.Use(middleware.RequestLog(logger))
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
