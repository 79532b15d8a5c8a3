package notion

import "encoding/json"

// ══════════════════════════════════════════════════════════════════════════════
// QUERY REQUEST
// ══════════════════════════════════════════════════════════════════════════════

// QueryRequestDTO is the body of POST /v1/databases/{id}/query.
type QueryRequestDTO struct {
	Filter   *FilterDTO `json:"filter,omitempty"`
	PageSize int        `json:"page_size,omitempty"`
}

// FilterDTO is a single property filter.
type FilterDTO struct {
	Property string              `json:"property"`
	Number   *NumberConditionDTO `json:"number,omitempty"`
	RichText *TextConditionDTO   `json:"rich_text,omitempty"`
}

// NumberConditionDTO compares a number property.
type NumberConditionDTO struct {
	Equals int64 `json:"equals"`
}

// TextConditionDTO compares a rich text property.
type TextConditionDTO struct {
	Equals string `json:"equals"`
}

// ══════════════════════════════════════════════════════════════════════════════
// QUERY RESPONSE
// ══════════════════════════════════════════════════════════════════════════════

// QueryResponseDTO is a page of database rows.
type QueryResponseDTO struct {
	Object     string    `json:"object"`
	Results    []PageDTO `json:"results"`
	HasMore    bool      `json:"has_more"`
	NextCursor *string   `json:"next_cursor"`
}

// PageDTO is one database row.
type PageDTO struct {
	Object     string                 `json:"object"`
	ID         string                 `json:"id"`
	Properties map[string]PropertyDTO `json:"properties"`
}

// PropertyDTO is one property value. Only the field named by Type is set.
type PropertyDTO struct {
	ID       string        `json:"id"`
	Type     string        `json:"type"`
	Number   *float64      `json:"number,omitempty"`
	Formula  *FormulaDTO   `json:"formula,omitempty"`
	RichText []RichTextDTO `json:"rich_text,omitempty"`
	Title    []RichTextDTO `json:"title,omitempty"`
	Email    *string       `json:"email,omitempty"`
}

// FormulaDTO is the computed value of a formula property.
type FormulaDTO struct {
	Type    string   `json:"type"`
	Number  *float64 `json:"number,omitempty"`
	String  *string  `json:"string,omitempty"`
	Boolean *bool    `json:"boolean,omitempty"`
}

// RichTextDTO is one run of rich text.
type RichTextDTO struct {
	Type      string `json:"type"`
	PlainText string `json:"plain_text"`
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR DTOs
// ══════════════════════════════════════════════════════════════════════════════

// APIErrorDTO is the error body returned by the Notion API.
type APIErrorDTO struct {
	Object  string `json:"object"`
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *APIErrorDTO) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}

// decodeAPIError parses an error body, falling back to the status code.
func decodeAPIError(status int, body []byte) *APIErrorDTO {
	apiErr := &APIErrorDTO{}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = "unexpected response"
	}
	apiErr.Status = status
	return apiErr
}
