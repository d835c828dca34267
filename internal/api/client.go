package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/satsuralala/face-detection/internal/domain"
)

// Client talks to the portal's person registry over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a registry client for the given portal base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// ListPeople fetches every registered missing person.
func (c *Client) ListPeople(ctx context.Context) ([]domain.Person, error) {
	var people []domain.Person
	if err := c.get(ctx, "/people", &people); err != nil {
		return nil, err
	}
	return people, nil
}

// GetPerson fetches one person by registry id.
func (c *Client) GetPerson(ctx context.Context, id string) (*domain.Person, error) {
	var person domain.Person
	if err := c.get(ctx, "/person/"+id, &person); err != nil {
		return nil, err
	}
	return &person, nil
}

// RegisterPerson submits a new missing-person record. The photo at imgPath is
// embedded as a base64 data URI, the format the recognizer indexes from.
func (c *Client) RegisterPerson(ctx context.Context, person domain.Person, imgPath string) (*domain.Person, error) {
	if imgPath != "" {
		img, err := encodePhoto(imgPath)
		if err != nil {
			return nil, err
		}
		person.Img = img
	}

	body, err := json.Marshal(person)
	if err != nil {
		return nil, fmt.Errorf("marshal person: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/person", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(respBody))
	}

	var created domain.Person
	if err := json.Unmarshal(respBody, &created); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &created, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("http %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

func encodePhoto(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read photo: %w", err)
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data), nil
}
