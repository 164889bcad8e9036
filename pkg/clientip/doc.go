// Package clientip extracts the real client IP address from HTTP requests
// behind proxies, load balancers or CDNs. Headers are checked in priority
// order (CF-Connecting-IP, DO-Connecting-IP, X-Forwarded-For, X-Real-IP)
// before falling back to RemoteAddr; every candidate is validated and
// normalized, and unspecified addresses are rejected.
package clientip
