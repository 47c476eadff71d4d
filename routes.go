package main

import (
	"encoding/json"
	"fmt"
	"maps"
	"net"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	ratelimiter "learn.admission/api"
	"learn.admission/config"
	"learn.admission/middleware"
)

const (
	// costHeader carries the number of permits a request consumes.
	costHeader = "X-Request-Cost"

	// loginLimiterKey, when configured, guards /login per submitted username.
	loginLimiterKey = "user_login_rate_limit"
)

// newMux exposes one /limited/<key> route per configured limiter, plus
// /login, /snapshot/<key> and /metrics.
func newMux(limiters map[string]*ratelimiter.KeyedLimiter, configs map[string]config.LimiterConfig) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /unlimited", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "Unlimited! Let's Go!")
	})

	for _, key := range slices.Sorted(maps.Keys(limiters)) {
		mw := middleware.NewRateLimitMiddleware(limiters[key], key, configs[key].Algorithm, middleware.WithCost(requestCost))
		mux.HandleFunc("/limited/"+key, mw.Handle(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			fmt.Fprintf(w, "Admitted by %s\n", key)
		}, getClientIP))
		log.Info().Str("limiter_key", key).Str("limiter_type", string(configs[key].Algorithm)).Str("route", "/limited/"+key).Msg("Route registered")
	}

	if login, ok := limiters[loginLimiterKey]; ok {
		mw := middleware.NewRateLimitMiddleware(login, loginLimiterKey, configs[loginLimiterKey].Algorithm)
		mux.HandleFunc("POST /login", mw.Handle(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			fmt.Fprintln(w, "Login attempt processed!")
		}, loginIdentity))
	}

	mux.HandleFunc("GET /snapshot/{key}", func(w http.ResponseWriter, r *http.Request) {
		limiter, ok := limiters[r.PathValue("key")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		identity := r.URL.Query().Get("identity")
		s, ok := limiter.Snapshot(identity)
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(snapshotResponse{
			Key:      r.PathValue("key"),
			Identity: identity,
			Level:    s.Level,
			Capacity: s.Capacity,
		})
	})

	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

type snapshotResponse struct {
	Key      string  `json:"key"`
	Identity string  `json:"identity"`
	Level    float64 `json:"level"`
	Capacity float64 `json:"capacity"`
}

// requestCost reads the permits a request consumes from costHeader,
// defaulting to 1.
func requestCost(r *http.Request) (int64, error) {
	v := r.Header.Get(costHeader)
	if v == "" {
		return 1, nil
	}
	cost, err := strconv.ParseInt(v, 10, 64)
	if err != nil || cost < 1 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", costHeader, v)
	}
	return cost, nil
}

// loginIdentity limits login attempts per username so a single account
// cannot be brute forced from many addresses. Requests without a username
// fall back to the client IP.
func loginIdentity(r *http.Request) string {
	if user := strings.TrimSpace(r.FormValue("username")); user != "" {
		return "user:" + user
	}
	return getClientIP(r)
}

// getClientIP extracts the client's IP address from the request.
// It checks X-Forwarded-For, X-Real-IP headers, and finally the request's RemoteAddr.
func getClientIP(r *http.Request) string {
	ip := r.Header.Get("X-Forwarded-For")
	if ip != "" {
		return strings.TrimSpace(strings.Split(ip, ",")[0])
	}

	ip = r.Header.Get("X-Real-IP")
	if ip != "" {
		return ip
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
