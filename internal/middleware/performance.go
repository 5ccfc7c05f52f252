package middleware

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"go-agency-billing/internal/logger"

	"github.com/gin-gonic/gin"
)

// EndpointStats tracks per-endpoint request statistics.
type EndpointStats struct {
	Count         int64         `json:"count"`
	TotalDuration time.Duration `json:"total_duration"`
	AverageTime   time.Duration `json:"average_time"`
	ErrorCount    int64         `json:"error_count"`
	SlowCount     int64         `json:"slow_count"`
}

// MemoryStats is a snapshot of runtime memory usage.
type MemoryStats struct {
	Allocated uint64 `json:"allocated"`
	Sys       uint64 `json:"sys"`
	HeapInUse uint64 `json:"heap_in_use"`
	GCRuns    uint32 `json:"gc_runs"`
}

// PerformanceMonitor aggregates request metrics for the health endpoint.
type PerformanceMonitor struct {
	mu            sync.Mutex
	requestCount  int64
	errorCount    int64
	endpointStats map[string]EndpointStats
	slowThreshold time.Duration
	startTime     time.Time
}

func NewPerformanceMonitor(slowThreshold time.Duration) *PerformanceMonitor {
	return &PerformanceMonitor{
		endpointStats: make(map[string]EndpointStats),
		slowThreshold: slowThreshold,
		startTime:     time.Now(),
	}
}

// Middleware records duration and outcome of every API request and logs the
// slow ones.
func (pm *PerformanceMonitor) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" || path == "/health" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		duration := time.Since(start)
		status := c.Writer.Status()

		endpoint := c.Request.Method + " " + path
		pm.record(endpoint, duration, status >= 400)

		if duration > pm.slowThreshold && logger.GlobalLogger != nil {
			logger.GlobalLogger.Warn("Slow request", map[string]interface{}{
				"endpoint": endpoint,
				"duration": duration.String(),
				"status":   status,
			})
		}

		c.Header("X-Response-Time", duration.String())
	}
}

func (pm *PerformanceMonitor) record(endpoint string, duration time.Duration, isError bool) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	pm.requestCount++
	if isError {
		pm.errorCount++
	}

	stats := pm.endpointStats[endpoint]
	stats.Count++
	stats.TotalDuration += duration
	stats.AverageTime = stats.TotalDuration / time.Duration(stats.Count)
	if isError {
		stats.ErrorCount++
	}
	if duration > pm.slowThreshold {
		stats.SlowCount++
	}
	pm.endpointStats[endpoint] = stats
}

// Health reports service liveness plus basic load and memory figures. Status
// degrades with the error rate so a load balancer can react.
func (pm *PerformanceMonitor) Health() gin.H {
	pm.mu.Lock()
	requestCount := pm.requestCount
	errorCount := pm.errorCount
	pm.mu.Unlock()

	errorRate := 0.0
	if requestCount > 0 {
		errorRate = float64(errorCount) / float64(requestCount) * 100
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	status := "healthy"
	if errorRate > 10 {
		status = "degraded"
	}
	if errorRate > 25 {
		status = "unhealthy"
	}

	return gin.H{
		"status":     status,
		"timestamp":  time.Now(),
		"uptime":     time.Since(pm.startTime).String(),
		"requests":   requestCount,
		"error_rate": fmt.Sprintf("%.2f%%", errorRate),
		"memory": gin.H{
			"allocated":   formatBytes(m.Alloc),
			"sys":         formatBytes(m.Sys),
			"heap_in_use": formatBytes(m.HeapInuse),
			"gc_runs":     m.NumGC,
		},
	}
}

// EndpointSummaries returns a copy of the per-endpoint stats.
func (pm *PerformanceMonitor) EndpointSummaries() map[string]EndpointStats {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	out := make(map[string]EndpointStats, len(pm.endpointStats))
	for k, v := range pm.endpointStats {
		out[k] = v
	}
	return out
}

func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// SecurityHeadersMiddleware adds standard security headers.
func SecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// Don't set HSTS in development
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}

// RequestSizeLimitMiddleware rejects oversized request bodies.
func RequestSizeLimitMiddleware(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxSize {
			c.AbortWithStatusJSON(413, gin.H{"error": "request entity too large"})
			return
		}
		c.Next()
	}
}
