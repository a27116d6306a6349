package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	crmAPITimeout   = 10 * time.Second
	crmTokenTimeout = 20 * time.Second

	// PropertyAssociationTarget is matched against association type keys to
	// discover the contact ↔ property association.
	PropertyAssociationTarget = "propiedad"
)

// StatusError is returned when the CRM answers with an unexpected status code.
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("crm: %s returned %d: %s", e.Op, e.Code, e.Body)
}

// IsServerFailure reports whether err means the CRM itself is unhealthy
// (network failure or 5xx). 4xx answers are the caller's problem and must not
// trip the circuit breaker.
func IsServerFailure(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500 || se.Code == http.StatusTooManyRequests
	}
	return !errors.Is(err, context.Canceled)
}

// Relation is one association edge as stored by the CRM.
type Relation struct {
	ID             string `json:"id"`
	AssociationID  string `json:"associationId"`
	FirstRecordID  string `json:"firstRecordId"`
	SecondRecordID string `json:"secondRecordId"`
}

// Counterpart returns the id on the other end of the edge from recordID.
func (r Relation) Counterpart(recordID string) string {
	if r.FirstRecordID == recordID {
		return r.SecondRecordID
	}
	return r.FirstRecordID
}

// TokenResponse is the OAuth token endpoint answer.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
	LocationID   string `json:"locationId"`
}

// ContactInput carries the standard contact fields plus custom field values.
type ContactInput struct {
	FirstName    string        `json:"firstName,omitempty"`
	LastName     string        `json:"lastName,omitempty"`
	Name         string        `json:"name,omitempty"`
	Email        string        `json:"email,omitempty"`
	Phone        string        `json:"phone,omitempty"`
	CustomFields []CustomField `json:"customFields,omitempty"`
}

type CustomField struct {
	Key   string `json:"key"`
	Value any    `json:"field_value"`
}

// FieldOption is one entry of a dropdown custom field on a custom object.
type FieldOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

type CRMConfig struct {
	BaseURL      string
	APIVersion   string
	ClientID     string
	ClientSecret string
	Transport    http.RoundTripper // defaults to NewRetryTransport(nil)
	Pacer        *Pacer            // defaults to NewPacer()
	Breaker      *CircuitBreaker   // optional
}

// CRMClient talks to the CRM REST API. Every call is bounded by a timeout,
// retried by the transport, paced after rate-limit signals and, when a breaker
// is configured, short-circuited while the CRM is down.
type CRMClient struct {
	baseURL      string
	version      string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	pacer        *Pacer
	breaker      *CircuitBreaker
}

func NewCRMClient(cfg CRMConfig) *CRMClient {
	transport := cfg.Transport
	if transport == nil {
		transport = NewRetryTransport(nil)
	}
	pacer := cfg.Pacer
	if pacer == nil {
		pacer = NewPacer()
	}
	return &CRMClient{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		version:      cfg.APIVersion,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		httpClient:   &http.Client{Transport: transport},
		pacer:        pacer,
		breaker:      cfg.Breaker,
	}
}

// Pacer exposes the client's pacer so callers pace their own call sequences with it.
func (c *CRMClient) Pacer() *Pacer { return c.pacer }

// BreakerState reports the circuit state; CBClosed when no breaker is configured.
func (c *CRMClient) BreakerState() CBState {
	if c.breaker == nil {
		return CBClosed
	}
	return c.breaker.State()
}

// ── Associations ──────────────────────────────────────────────────────────────

// GetRelations returns the current associations of recordID keyed by the
// counterpart record id. A 404 means the record has no associations yet.
func (c *CRMClient) GetRelations(ctx context.Context, token, locationID, recordID string) (map[string]Relation, error) {
	var out struct {
		Relations []Relation `json:"relations"`
	}
	q := url.Values{"locationId": {locationID}}
	status, err := c.do(ctx, "get relations", http.MethodGet, "/associations/relations/"+url.PathEscape(recordID), q, token, nil, &out, http.StatusOK, http.StatusNotFound)
	if err != nil {
		return nil, err
	}
	current := make(map[string]Relation, len(out.Relations))
	if status == http.StatusNotFound {
		return current, nil
	}
	for _, rel := range out.Relations {
		if other := rel.Counterpart(recordID); other != "" {
			current[other] = rel
		}
	}
	return current, nil
}

func (c *CRMClient) DeleteRelation(ctx context.Context, token, locationID, relationID string) error {
	q := url.Values{"locationId": {locationID}}
	_, err := c.do(ctx, "delete relation", http.MethodDelete, "/associations/relations/"+url.PathEscape(relationID), q, token, nil, nil, http.StatusOK, http.StatusNoContent)
	return err
}

// CreateRelation links a contact (first) with a property record (second).
func (c *CRMClient) CreateRelation(ctx context.Context, token, locationID, associationID, contactID, propertyID string) error {
	body := map[string]string{
		"locationId":     locationID,
		"associationId":  associationID,
		"firstRecordId":  contactID,
		"secondRecordId": propertyID,
	}
	_, err := c.do(ctx, "create relation", http.MethodPost, "/associations/relations", nil, token, body, nil, http.StatusOK, http.StatusCreated)
	return err
}

// FindAssociationTypeID looks for an association type linking contacts with
// the object whose key contains target. Returns "" when none exists.
func (c *CRMClient) FindAssociationTypeID(ctx context.Context, token, locationID, target string) (string, error) {
	var out struct {
		AssociationTypes []struct {
			ID              string `json:"id"`
			FirstObjectKey  string `json:"firstObjectKey"`
			SecondObjectKey string `json:"secondObjectKey"`
			SourceKey       string `json:"sourceKey"`
			TargetKey       string `json:"targetKey"`
		} `json:"associationTypes"`
	}
	q := url.Values{"locationId": {locationID}}
	if _, err := c.do(ctx, "list association types", http.MethodGet, "/associations/types", q, token, nil, &out, http.StatusOK); err != nil {
		return "", err
	}

	target = strings.ToLower(target)
	for _, t := range out.AssociationTypes {
		isContact, isTarget := false, false
		for _, k := range []string{t.FirstObjectKey, t.SecondObjectKey, t.SourceKey, t.TargetKey} {
			k = strings.ToLower(k)
			if k == "" {
				continue
			}
			if k == "contact" {
				isContact = true
			}
			if strings.Contains(k, target) {
				isTarget = true
			}
		}
		if isContact && isTarget {
			return t.ID, nil
		}
	}
	log.Warn().Str("location_id", locationID).Str("target", target).Msg("crm: no association type found")
	return "", nil
}

// ── Contacts & custom object records ─────────────────────────────────────────

func (c *CRMClient) CreateContact(ctx context.Context, token, locationID string, in ContactInput) (string, error) {
	body := struct {
		LocationID string `json:"locationId"`
		ContactInput
	}{locationID, in}
	var out struct {
		Contact struct {
			ID string `json:"id"`
		} `json:"contact"`
	}
	if _, err := c.do(ctx, "create contact", http.MethodPost, "/contacts/", nil, token, body, &out, http.StatusOK, http.StatusCreated); err != nil {
		return "", err
	}
	if out.Contact.ID == "" {
		return "", errors.New("crm: create contact returned no id")
	}
	return out.Contact.ID, nil
}

func (c *CRMClient) UpdateContact(ctx context.Context, token, contactID string, in ContactInput) error {
	_, err := c.do(ctx, "update contact", http.MethodPut, "/contacts/"+url.PathEscape(contactID), nil, token, in, nil, http.StatusOK)
	return err
}

// CreateRecord creates a custom object record and returns its id.
func (c *CRMClient) CreateRecord(ctx context.Context, token, locationID, objectKey string, properties map[string]any) (string, error) {
	body := map[string]any{"locationId": locationID, "properties": properties}
	var out struct {
		Record struct {
			ID string `json:"id"`
		} `json:"record"`
	}
	path := "/objects/" + url.PathEscape(objectKey) + "/records"
	if _, err := c.do(ctx, "create record", http.MethodPost, path, nil, token, body, &out, http.StatusOK, http.StatusCreated); err != nil {
		return "", err
	}
	if out.Record.ID == "" {
		return "", errors.New("crm: create record returned no id")
	}
	return out.Record.ID, nil
}

func (c *CRMClient) UpdateRecord(ctx context.Context, token, locationID, objectKey, recordID string, properties map[string]any) error {
	body := map[string]any{"properties": properties}
	q := url.Values{"locationId": {locationID}}
	path := "/objects/" + url.PathEscape(objectKey) + "/records/" + url.PathEscape(recordID)
	_, err := c.do(ctx, "update record", http.MethodPut, path, q, token, body, nil, http.StatusOK)
	return err
}

// ── Zone custom fields ────────────────────────────────────────────────────────

// UpdateObjectFieldOptions replaces the options of a custom object dropdown field.
func (c *CRMClient) UpdateObjectFieldOptions(ctx context.Context, token, locationID, fieldID string, options []FieldOption) error {
	body := map[string]any{"locationId": locationID, "showInForms": true, "options": options}
	_, err := c.do(ctx, "update object field", http.MethodPut, "/custom-fields/"+url.PathEscape(fieldID)+"/", nil, token, body, nil, http.StatusOK, http.StatusNoContent)
	return err
}

// UpdateContactFieldOptions replaces the options of a contact dropdown field.
func (c *CRMClient) UpdateContactFieldOptions(ctx context.Context, token, locationID, fieldID string, options []string) error {
	body := map[string]any{"options": options}
	path := "/locations/" + url.PathEscape(locationID) + "/customFields/" + url.PathEscape(fieldID) + "/"
	_, err := c.do(ctx, "update contact field", http.MethodPut, path, nil, token, body, nil, http.StatusOK, http.StatusNoContent)
	return err
}

// ── OAuth ─────────────────────────────────────────────────────────────────────

// RefreshToken exchanges a refresh token for a new credential pair.
func (c *CRMClient) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	ctx = WithAttemptTimeout(ctx, crmTokenTimeout)

	form := url.Values{
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"user_type":     {"Location"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("crm: refresh token: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("crm: refresh token: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Op: "refresh token", Code: resp.StatusCode, Body: readSnippet(resp.Body)}
	}

	var tok TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return nil, fmt.Errorf("crm: decode token: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, errors.New("crm: refresh returned empty access token")
	}
	if tok.ExpiresIn <= 0 {
		tok.ExpiresIn = 86400
	}
	return &tok, nil
}

// ── transport helpers ─────────────────────────────────────────────────────────

func (c *CRMClient) do(ctx context.Context, op, method, path string, query url.Values, token string, in, out any, accept ...int) (int, error) {
	var status int
	call := func() error {
		s, err := c.roundTrip(ctx, op, method, path, query, token, in, out, accept)
		status = s
		return err
	}
	if c.breaker == nil {
		return status, call()
	}
	return status, c.breaker.Execute(call, IsServerFailure)
}

func (c *CRMClient) roundTrip(ctx context.Context, op, method, path string, query url.Values, token string, in, out any, accept []int) (int, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("crm: %s: marshal: %w", op, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return 0, fmt.Errorf("crm: %s: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Version", c.version)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("crm: %s: %w", op, err)
	}
	defer resp.Body.Close()

	// Rate-limit signals are honoured here so every caller is paced the same way.
	_ = c.pacer.Wait(ctx, resp, 0)

	ok := false
	for _, code := range accept {
		if resp.StatusCode == code {
			ok = true
			break
		}
	}
	if !ok {
		return resp.StatusCode, &StatusError{Op: op, Code: resp.StatusCode, Body: readSnippet(resp.Body)}
	}

	if out != nil && resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusNotFound {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
			return resp.StatusCode, fmt.Errorf("crm: %s: decode: %w", op, err)
		}
	}
	return resp.StatusCode, nil
}

func readSnippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 512))
	return strings.TrimSpace(string(b))
}
