package api

import (
	"encoding/json"
	"net/http"
	"time"

	"vintrail/internal/buildinfo"
)

func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	info := map[string]any{
		"build": buildinfo.Info(),
		"time":  time.Now().UTC().Format(time.RFC3339),
		"config": map[string]any{
			"environment":        s.Cfg.Environment,
			"planTTL":            s.Cfg.PlanTTL.String(),
			"routeSpeedKmh":      s.Cfg.RouteSpeedKmh,
			"saveRatePerSec":     s.Cfg.SaveRatePerSec,
			"saveBurst":          s.Cfg.SaveBurst,
			"webhookMaxAttempts": s.Cfg.WebhookMaxAttempts,
			"authMode":           s.Cfg.AuthMode,
			"hasDatabaseUrl":     s.Cfg.DatabaseURL != "",
			"hasRedisUrl":        s.Cfg.RedisURL != "",
		},
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(info)
}
