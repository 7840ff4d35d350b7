package main

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

type session struct {
	ID                string            `json:"id"`
	Object            string            `json:"object"`
	URL               string            `json:"url"`
	Status            string            `json:"status"`
	PaymentStatus     string            `json:"payment_status"`
	AmountTotal       int64             `json:"amount_total"`
	Currency          string            `json:"currency"`
	ExpiresAt         int64             `json:"expires_at"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
}

type store struct {
	mu       sync.Mutex
	seq      int
	sessions map[string]*session
	byKey    map[string]string
}

var (
	sessions      = &store{sessions: map[string]*session{}, byKey: map[string]string{}}
	webhookURL    = os.Getenv("MOCK_STRIPE_WEBHOOK_URL")
	webhookSecret = os.Getenv("MOCK_STRIPE_WEBHOOK_SECRET")
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func notFound(w http.ResponseWriter, id string) {
	writeJSON(w, http.StatusNotFound, map[string]any{
		"error": map[string]string{"type": "invalid_request_error", "code": "resource_missing", "message": "No such checkout.session: " + id},
	})
}

func createSession(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}

	sessions.mu.Lock()
	defer sessions.mu.Unlock()

	if key := r.Header.Get("Idempotency-Key"); key != "" {
		if id, ok := sessions.byKey[key]; ok {
			writeJSON(w, http.StatusOK, sessions.sessions[id])
			return
		}
	}

	sessions.seq++
	amount, _ := strconv.ParseInt(r.PostForm.Get("line_items[0][price_data][unit_amount]"), 10, 64)
	expiresAt, _ := strconv.ParseInt(r.PostForm.Get("expires_at"), 10, 64)
	s := &session{
		ID:                fmt.Sprintf("cs_mock_%d", sessions.seq),
		Object:            "checkout.session",
		Status:            "open",
		PaymentStatus:     "unpaid",
		AmountTotal:       amount,
		Currency:          r.PostForm.Get("line_items[0][price_data][currency]"),
		ExpiresAt:         expiresAt,
		ClientReferenceID: r.PostForm.Get("client_reference_id"),
		Metadata:          map[string]string{},
	}
	s.URL = "http://" + r.Host + "/pay/" + s.ID
	for k, v := range r.PostForm {
		if strings.HasPrefix(k, "metadata[") && len(v) > 0 {
			s.Metadata[strings.TrimSuffix(strings.TrimPrefix(k, "metadata["), "]")] = v[0]
		}
	}
	sessions.sessions[s.ID] = s
	if key := r.Header.Get("Idempotency-Key"); key != "" {
		sessions.byKey[key] = s.ID
	}

	log.Printf("Created mock checkout session %s amount=%d", s.ID, s.AmountTotal)
	writeJSON(w, http.StatusOK, s)
}

func getSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sessions.mu.Lock()
	defer sessions.mu.Unlock()
	s, ok := sessions.sessions[id]
	if !ok {
		notFound(w, id)
		return
	}
	if s.Status == "open" && s.ExpiresAt > 0 && time.Now().Unix() > s.ExpiresAt {
		s.Status = "expired"
	}
	writeJSON(w, http.StatusOK, s)
}

func expireSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sessions.mu.Lock()
	defer sessions.mu.Unlock()
	s, ok := sessions.sessions[id]
	if !ok {
		notFound(w, id)
		return
	}
	if s.Status == "open" {
		s.Status = "expired"
	}
	writeJSON(w, http.StatusOK, s)
}

// pay simulates the buyer completing the hosted page.
func pay(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sessions.mu.Lock()
	s, ok := sessions.sessions[id]
	if ok && s.Status == "open" {
		s.Status = "complete"
		s.PaymentStatus = "paid"
	}
	var snapshot session
	if ok {
		snapshot = *s
	}
	sessions.mu.Unlock()

	if !ok {
		notFound(w, id)
		return
	}
	if snapshot.Status == "complete" {
		go sendWebhook(snapshot)
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func sendWebhook(s session) {
	if webhookURL == "" {
		return
	}
	body, _ := json.Marshal(map[string]any{
		"id":      "evt_" + s.ID,
		"object":  "event",
		"type":    "checkout.session.completed",
		"created": time.Now().Unix(),
		"data":    map[string]any{"object": s},
	})

	ts := strconv.FormatInt(time.Now().Unix(), 10)
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write([]byte(ts + "." + string(body)))

	req, err := http.NewRequest(http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		log.Printf("webhook request: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", "t="+ts+",v1="+hex.EncodeToString(mac.Sum(nil)))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Printf("webhook delivery failed: %v", err)
		return
	}
	resp.Body.Close()
	log.Printf("Delivered webhook for %s: %d", s.ID, resp.StatusCode)
}

func main() {
	port := ":8081"
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/checkout/sessions", createSession)
	mux.HandleFunc("GET /v1/checkout/sessions/{id}", getSession)
	mux.HandleFunc("POST /v1/checkout/sessions/{id}/expire", expireSession)
	mux.HandleFunc("GET /pay/{id}", pay)

	log.Printf("Mock Stripe server starting on %s...", port)
	if err := http.ListenAndServe(port, mux); err != nil {
		log.Fatal(err)
	}
}
