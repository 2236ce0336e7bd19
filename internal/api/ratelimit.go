package api

import (
    "math"
    "net/http"
    "strconv"
    "strings"
    "sync"

    "golang.org/x/time/rate"
)

// RateLimit limits requests per tenant with a token bucket. rps <= 0 disables it.
func RateLimit(rps float64, burst int, next http.Handler) http.Handler {
    if rps <= 0 { return next }
    if burst < 1 { burst = 1 }
    var mu sync.Mutex
    limiters := map[string]*rate.Limiter{}
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        tenant := strings.TrimSpace(r.Header.Get("X-Tenant-Id"))
        if tenant == "" { tenant = defaultTenant }
        mu.Lock()
        lim, ok := limiters[tenant]
        if !ok {
            lim = rate.NewLimiter(rate.Limit(rps), burst)
            limiters[tenant] = lim
        }
        mu.Unlock()
        res := lim.Reserve()
        if delay := res.Delay(); delay > 0 {
            res.Cancel()
            w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
            writeProblem(w, http.StatusTooManyRequests, "Too Many Requests", "rate limit exceeded", r.URL.Path)
            return
        }
        next.ServeHTTP(w, r)
    })
}
