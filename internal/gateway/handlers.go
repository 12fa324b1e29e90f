package gateway

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pquerna/otp/totp"

	"arbdesk/internal/history"
	"arbdesk/internal/ledger"
	"arbdesk/internal/model"
	"arbdesk/internal/portfolio"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// SetCORS sets CORS headers for REST endpoints.
func SetCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-TOTP-Code")
}

// RegisterRoutes registers all HTTP routes on the provided mux.
// adminTOTPSecret guards the destructive reset endpoint; empty disables it.
func RegisterRoutes(mux *http.ServeMux, hub *Hub, book *ledger.Book, series *history.Series, adminTOTPSecret string, processStart time.Time) {
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[gateway] ws upgrade error: %v", err)
			return
		}
		hub.HandleWS(conn)
	})

	// REST: open positions with cached PNL, or create a position
	mux.HandleFunc("/api/positions", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		w.Header().Set("Content-Type", "application/json")

		switch r.Method {
		case http.MethodOptions:
			w.WriteHeader(http.StatusOK)
		case http.MethodPost:
			var draft ledger.Draft
			if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
				http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
				return
			}
			if draft.Token == "" || len(draft.Legs) == 0 {
				http.Error(w, `{"error":"token and at least one leg required"}`, http.StatusBadRequest)
				return
			}
			id := book.AddPosition(draft)
			log.Printf("[gateway] position opened: %s %s (%d legs)", id, draft.Token, len(draft.Legs))
			json.NewEncoder(w).Encode(map[string]string{"id": id})
		default:
			open := book.OpenPositions()
			entries, summary := portfolio.Summarize(open, book.CachedPnl)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"positions": entries,
				"summary":   summary,
			})
		}
	})

	// REST: closed positions
	mux.HandleFunc("/api/positions/closed", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(book.ClosedPositions())
	})

	// REST: close a position
	mux.HandleFunc("/api/positions/close", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		if r.Method != http.MethodPost {
			http.Error(w, `{"error":"POST only"}`, http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			ID string `json:"id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
			http.Error(w, `{"error":"id required"}`, http.StatusBadRequest)
			return
		}
		closed := book.ClosePosition(req.ID)
		if closed {
			log.Printf("[gateway] position closed: %s", req.ID)
		}
		json.NewEncoder(w).Encode(map[string]bool{"closed": closed})
	})

	// REST: portfolio summary
	mux.HandleFunc("/api/summary", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		w.Header().Set("Content-Type", "application/json")
		_, summary := portfolio.Summarize(book.OpenPositions(), book.CachedPnl)
		json.NewEncoder(w).Encode(summary)
	})

	// REST: chart-ready PNL history
	mux.HandleFunc("/api/chart", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		w.Header().Set("Content-Type", "application/json")
		rng := history.Range(r.URL.Query().Get("range"))
		if rng == "" {
			rng = history.Range24h
		}
		points := series.ChartData(rng, time.Now().UTC())
		if points == nil {
			points = []model.PnlDataPoint{}
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"range":  rng,
			"points": points,
		})
	})

	// REST: ops-only reset, TOTP-guarded
	mux.HandleFunc("/api/admin/clear", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		if r.Method != http.MethodPost {
			http.Error(w, `{"error":"POST only"}`, http.StatusMethodNotAllowed)
			return
		}
		if adminTOTPSecret == "" {
			http.Error(w, `{"error":"reset disabled"}`, http.StatusNotFound)
			return
		}
		code := r.Header.Get("X-TOTP-Code")
		if !totp.Validate(code, adminTOTPSecret) {
			http.Error(w, `{"error":"invalid TOTP code"}`, http.StatusForbidden)
			return
		}
		book.Clear()
		log.Println("[gateway] position book cleared by ops reset")
		json.NewEncoder(w).Encode(map[string]string{"status": "cleared"})
	})

	// Health endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":         "ok",
			"open_positions": len(book.OpenPositions()),
			"history_points": series.Len(),
			"ws_clients":     hub.ClientCount(),
			"uptime_sec":     int64(time.Since(processStart).Seconds()),
			"ts":             time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
}
