package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mzholl/callwire/internal/domain"
)

// HTTPRecords talks to the call-record REST surface. It implements
// CallRecords for clients that do not share a process with the store.
type HTTPRecords struct {
	base   string
	client *http.Client
}

func NewHTTPRecords(base string) *HTTPRecords {
	return &HTTPRecords{
		base:   base,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *HTTPRecords) Create(ctx context.Context, caller, callee domain.UserID) (*domain.Call, error) {
	body, err := json.Marshal(map[string]domain.UserID{
		"callerId": caller,
		"calleeId": callee,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.base+"/api/calls", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("create call: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("create call: unexpected status %d", resp.StatusCode)
	}
	var call domain.Call
	if err := json.NewDecoder(resp.Body).Decode(&call); err != nil {
		return nil, fmt.Errorf("decode call: %w", err)
	}
	return &call, nil
}

func (r *HTTPRecords) UpdateStatus(ctx context.Context, id domain.CallID, status domain.CallStatus) error {
	body, err := json.Marshal(map[string]domain.CallStatus{"status": status})
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/api/calls/%s/status", r.base, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("update call status: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("update call status: unexpected status %d", resp.StatusCode)
	}
	return nil
}
