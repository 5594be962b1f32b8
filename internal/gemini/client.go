// Package gemini integrates Google's Gemini API for document classification,
// structured record extraction, and free-form trip questions.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/genai"

	"github.com/wanderlog/wanderbot/internal/config"
	"github.com/wanderlog/wanderbot/internal/database"
	"github.com/wanderlog/wanderbot/internal/records"
)

// DocumentType is the classifier's verdict for an uploaded document.
type DocumentType string

const (
	DocFlightTicket  DocumentType = "flight_ticket"
	DocReceipt       DocumentType = "receipt"
	DocHotelBooking  DocumentType = "hotel_booking"
	DocItinerary     DocumentType = "itinerary"
	DocOtherDocument DocumentType = "other_document"
)

// Client defines the AI operations the bot depends on.
type Client interface {
	// ClassifyDocument decides what kind of travel document the payload is.
	ClassifyDocument(ctx context.Context, mimeType string, data []byte) (DocumentType, error)

	// ExtractExpense pulls a structured expense out of a receipt.
	ExtractExpense(ctx context.Context, mimeType string, data []byte) (*records.ExpenseCandidate, error)

	// ExtractFlight pulls a structured flight out of a ticket or boarding pass.
	ExtractFlight(ctx context.Context, mimeType string, data []byte) (*records.FlightCandidate, error)

	// ExtractHotel pulls a structured booking out of a hotel confirmation.
	ExtractHotel(ctx context.Context, mimeType string, data []byte) (*records.HotelCandidate, error)

	// ExtractItinerary pulls dated schedule entries out of an itinerary.
	ExtractItinerary(ctx context.Context, mimeType string, data []byte) (*records.ItineraryCandidate, error)

	// AnswerTripQuestion answers a free-form question over rendered trip data.
	AnswerTripQuestion(ctx context.Context, question, tripData string) (string, error)
}

type sdkClient struct {
	genaiClient      *genai.Client
	log              *slog.Logger
	defaultModelName string
	temperature      float32
	maxRetries       int
	retryDelay       time.Duration
}

// NewClient creates a Gemini client from configuration.
func NewClient(ctx context.Context, cfg config.GeminiConfig, log *slog.Logger) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	gi, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	logger := log.With("component", "gemini_client")
	logger.Info("Gemini client initialized successfully", "model", cfg.ModelName)
	return &sdkClient{
		genaiClient:      gi,
		log:              logger,
		defaultModelName: cfg.ModelName,
		temperature:      cfg.Temperature,
		maxRetries:       cfg.MaxRetries,
		retryDelay:       time.Duration(cfg.RetryDelaySeconds) * time.Second,
	}, nil
}

func (c *sdkClient) baseConfig(systemInstruction string) *genai.GenerateContentConfig {
	temp := c.temperature
	return &genai.GenerateContentConfig{
		Temperature:       &temp,
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: systemInstruction}}},
	}
}

func (c *sdkClient) generateContentWithRetries(ctx context.Context, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	var resp *genai.GenerateContentResponse
	var err error

	for i := 0; i <= c.maxRetries; i++ {
		resp, err = c.genaiClient.Models.GenerateContent(ctx, c.defaultModelName, contents, cfg)
		if err == nil {
			return resp, nil
		}

		c.log.WarnContext(ctx, "Gemini API call failed, checking for retry",
			"attempt", i+1, "max_retries", c.maxRetries, "error", err)

		var apiErr *genai.APIError
		if errors.As(err, &apiErr) && (apiErr.Code == 500 || apiErr.Code == 503) {
			if i < c.maxRetries {
				c.log.InfoContext(ctx, "Retrying Gemini API call", "delay", c.retryDelay, "code", apiErr.Code)
				time.Sleep(c.retryDelay)
				continue
			}
			return nil, fmt.Errorf("gemini API call failed after %d retries (APIError code %d): %w", c.maxRetries, apiErr.Code, err)
		}

		return nil, fmt.Errorf("gemini API call failed: %w", err)
	}
	return nil, err
}

func (c *sdkClient) extractText(ctx context.Context, resp *genai.GenerateContentResponse, op string) (string, error) {
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
		reasonMsg := fmt.Sprintf("%v", resp.PromptFeedback.BlockReason)
		if resp.PromptFeedback.BlockReasonMessage != "" {
			reasonMsg = resp.PromptFeedback.BlockReasonMessage
		}
		c.log.ErrorContext(ctx, "Gemini request blocked", "operation", op, "reason", reasonMsg)
		return "", fmt.Errorf("%s blocked by safety filter: %s", op, reasonMsg)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%s returned empty content", op)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("%s returned empty text", op)
	}
	return text, nil
}

// extractJSON runs one document through schema-constrained extraction and
// unmarshals the response into out.
func (c *sdkClient) extractJSON(ctx context.Context, op, systemInstruction string, schema *genai.Schema, mimeType string, data []byte, out any) error {
	if len(data) == 0 || mimeType == "" {
		return fmt.Errorf("document data and MIME type are required")
	}

	cfg := c.baseConfig(systemInstruction)
	cfg.ResponseMIMEType = "application/json"
	cfg.ResponseSchema = schema

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{genai.NewPartFromBytes(data, mimeType)}, genai.RoleUser),
	}

	resp, err := c.generateContentWithRetries(ctx, contents, cfg)
	if err != nil {
		c.log.ErrorContext(ctx, "Gemini extraction API call failed", "operation", op, "error", err)
		return err
	}

	jsonText, err := c.extractText(ctx, resp, op)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(jsonText), out); err != nil {
		c.log.ErrorContext(ctx, "Failed to parse extraction JSON", "operation", op, "error", err, "response_text", jsonText)
		return fmt.Errorf("invalid %s JSON received: %w", op, err)
	}
	return nil
}

func (c *sdkClient) ClassifyDocument(ctx context.Context, mimeType string, data []byte) (DocumentType, error) {
	if len(data) == 0 || mimeType == "" {
		return "", fmt.Errorf("document data and MIME type are required")
	}
	c.log.DebugContext(ctx, "Classifying document", "mime_type", mimeType, "size", len(data))

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{genai.NewPartFromBytes(data, mimeType)}, genai.RoleUser),
	}

	resp, err := c.generateContentWithRetries(ctx, contents, c.baseConfig(ClassifierSystemInstruction))
	if err != nil {
		return "", err
	}

	text, err := c.extractText(ctx, resp, "classify_document")
	if err != nil {
		return "", err
	}

	verdict := DocumentType(strings.ToLower(strings.TrimSpace(text)))
	switch verdict {
	case DocFlightTicket, DocReceipt, DocHotelBooking, DocItinerary, DocOtherDocument:
		return verdict, nil
	}
	c.log.WarnContext(ctx, "Classifier returned unknown label, treating as other", "label", text)
	return DocOtherDocument, nil
}

var expenseSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"merchant":         {Type: genai.TypeString, Description: "Merchant or venue name."},
		"location":         {Type: genai.TypeString, Description: "City or address printed on the receipt. Empty if absent."},
		"transaction_date": {Type: genai.TypeString, Description: "Date as YYYY-MM-DD. Empty if absent."},
		"category":         {Type: genai.TypeString, Description: "One of: food, transport, accommodation, activities, shopping, other."},
		"subtotal":         {Type: genai.TypeString, Description: "Subtotal as a decimal string. Empty if absent."},
		"tax":              {Type: genai.TypeString, Description: "Tax as a decimal string. Empty if absent."},
		"tip":              {Type: genai.TypeString, Description: "Tip as a decimal string. Empty if absent."},
		"total":            {Type: genai.TypeString, Description: "Total as a decimal string."},
		"currency":         {Type: genai.TypeString, Description: "ISO 4217 currency code. Empty if absent."},
		"items": {Type: genai.TypeArray, Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"name":       {Type: genai.TypeString},
				"unit_price": {Type: genai.TypeString, Description: "Price per unit as a decimal string."},
				"quantity":   {Type: genai.TypeInteger},
			},
			Required: []string{"name", "unit_price", "quantity"},
		}},
		"confidence": {Type: genai.TypeNumber, Description: "Extraction confidence between 0 and 1."},
	},
	Required: []string{"merchant", "total", "currency", "category", "confidence"},
}

func (c *sdkClient) ExtractExpense(ctx context.Context, mimeType string, data []byte) (*records.ExpenseCandidate, error) {
	var raw struct {
		Merchant        string `json:"merchant"`
		Location        string `json:"location"`
		TransactionDate string `json:"transaction_date"`
		Category        string `json:"category"`
		Subtotal        string `json:"subtotal"`
		Tax             string `json:"tax"`
		Tip             string `json:"tip"`
		Total           string `json:"total"`
		Currency        string `json:"currency"`
		Items           []struct {
			Name      string `json:"name"`
			UnitPrice string `json:"unit_price"`
			Quantity  int    `json:"quantity"`
		} `json:"items"`
		Confidence float64 `json:"confidence"`
	}
	if err := c.extractJSON(ctx, "extract_expense", ExpenseExtractorSystemInstruction, expenseSchema, mimeType, data, &raw); err != nil {
		return nil, err
	}

	candidate := &records.ExpenseCandidate{
		Merchant:   raw.Merchant,
		Location:   raw.Location,
		Category:   raw.Category,
		Currency:   raw.Currency,
		Confidence: raw.Confidence,
	}
	candidate.Total = parseAmount(raw.Total)
	candidate.Subtotal = parseNullAmount(raw.Subtotal)
	candidate.Tax = parseNullAmount(raw.Tax)
	candidate.Tip = parseNullAmount(raw.Tip)
	candidate.TransactionDate = parseDate(raw.TransactionDate)

	for _, item := range raw.Items {
		candidate.Items = append(candidate.Items, database.ExpenseItem{
			Name:      item.Name,
			UnitPrice: parseAmount(item.UnitPrice),
			Quantity:  item.Quantity,
		})
	}

	c.log.DebugContext(ctx, "Expense extracted",
		"merchant", candidate.Merchant, "total", candidate.Total.StringFixed(2), "confidence", candidate.Confidence)
	return candidate, nil
}

var flightSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"airline":            {Type: genai.TypeString},
		"flight_number":      {Type: genai.TypeString},
		"departure_city":     {Type: genai.TypeString},
		"departure_airport":  {Type: genai.TypeString, Description: "IATA code when printed."},
		"departure_time":     {Type: genai.TypeString, Description: "RFC 3339 timestamp. Empty if absent."},
		"departure_terminal": {Type: genai.TypeString},
		"departure_gate":     {Type: genai.TypeString},
		"arrival_city":       {Type: genai.TypeString},
		"arrival_airport":    {Type: genai.TypeString, Description: "IATA code when printed."},
		"arrival_time":       {Type: genai.TypeString, Description: "RFC 3339 timestamp. Empty if absent."},
		"seat":               {Type: genai.TypeString},
		"booking_reference":  {Type: genai.TypeString},
		"confidence":         {Type: genai.TypeNumber, Description: "Extraction confidence between 0 and 1."},
	},
	Required: []string{"flight_number", "departure_time", "confidence"},
}

func (c *sdkClient) ExtractFlight(ctx context.Context, mimeType string, data []byte) (*records.FlightCandidate, error) {
	var raw struct {
		Airline           string  `json:"airline"`
		FlightNumber      string  `json:"flight_number"`
		DepartureCity     string  `json:"departure_city"`
		DepartureAirport  string  `json:"departure_airport"`
		DepartureTime     string  `json:"departure_time"`
		DepartureTerminal string  `json:"departure_terminal"`
		DepartureGate     string  `json:"departure_gate"`
		ArrivalCity       string  `json:"arrival_city"`
		ArrivalAirport    string  `json:"arrival_airport"`
		ArrivalTime       string  `json:"arrival_time"`
		Seat              string  `json:"seat"`
		BookingReference  string  `json:"booking_reference"`
		Confidence        float64 `json:"confidence"`
	}
	if err := c.extractJSON(ctx, "extract_flight", FlightExtractorSystemInstruction, flightSchema, mimeType, data, &raw); err != nil {
		return nil, err
	}

	candidate := &records.FlightCandidate{
		Airline:           raw.Airline,
		FlightNumber:      raw.FlightNumber,
		DepartureCity:     raw.DepartureCity,
		DepartureAirport:  raw.DepartureAirport,
		DepartureTime:     parseTimestamp(raw.DepartureTime),
		DepartureTerminal: raw.DepartureTerminal,
		DepartureGate:     raw.DepartureGate,
		ArrivalCity:       raw.ArrivalCity,
		ArrivalAirport:    raw.ArrivalAirport,
		ArrivalTime:       parseTimestamp(raw.ArrivalTime),
		Seat:              raw.Seat,
		BookingReference:  raw.BookingReference,
		Confidence:        raw.Confidence,
	}

	c.log.DebugContext(ctx, "Flight extracted",
		"flight", candidate.FlightNumber, "confidence", candidate.Confidence)
	return candidate, nil
}

var hotelSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"hotel_name":        {Type: genai.TypeString},
		"check_in":          {Type: genai.TypeString, Description: "Date as YYYY-MM-DD. Empty if absent."},
		"check_out":         {Type: genai.TypeString, Description: "Date as YYYY-MM-DD. Empty if absent."},
		"room_type":         {Type: genai.TypeString},
		"booking_reference": {Type: genai.TypeString},
		"confidence":        {Type: genai.TypeNumber, Description: "Extraction confidence between 0 and 1."},
	},
	Required: []string{"hotel_name", "check_in", "check_out", "confidence"},
}

func (c *sdkClient) ExtractHotel(ctx context.Context, mimeType string, data []byte) (*records.HotelCandidate, error) {
	var raw struct {
		HotelName        string  `json:"hotel_name"`
		CheckIn          string  `json:"check_in"`
		CheckOut         string  `json:"check_out"`
		RoomType         string  `json:"room_type"`
		BookingReference string  `json:"booking_reference"`
		Confidence       float64 `json:"confidence"`
	}
	if err := c.extractJSON(ctx, "extract_hotel", HotelExtractorSystemInstruction, hotelSchema, mimeType, data, &raw); err != nil {
		return nil, err
	}

	candidate := &records.HotelCandidate{
		HotelName:        raw.HotelName,
		CheckIn:          parseDate(raw.CheckIn),
		CheckOut:         parseDate(raw.CheckOut),
		RoomType:         raw.RoomType,
		BookingReference: raw.BookingReference,
		Confidence:       raw.Confidence,
	}

	c.log.DebugContext(ctx, "Hotel booking extracted",
		"hotel", candidate.HotelName, "confidence", candidate.Confidence)
	return candidate, nil
}

var itinerarySchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"entries": {Type: genai.TypeArray, Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"date":     {Type: genai.TypeString, Description: "Date as YYYY-MM-DD."},
				"time":     {Type: genai.TypeString, Description: "Time as HH:MM, 24-hour. Empty if absent."},
				"title":    {Type: genai.TypeString},
				"category": {Type: genai.TypeString, Description: "One of: transport, sightseeing, food, accommodation, activity."},
			},
			Required: []string{"date", "title"},
		}},
		"confidence": {Type: genai.TypeNumber, Description: "Extraction confidence between 0 and 1."},
	},
	Required: []string{"entries", "confidence"},
}

func (c *sdkClient) ExtractItinerary(ctx context.Context, mimeType string, data []byte) (*records.ItineraryCandidate, error) {
	var raw struct {
		Entries []struct {
			Date     string `json:"date"`
			Time     string `json:"time"`
			Title    string `json:"title"`
			Category string `json:"category"`
		} `json:"entries"`
		Confidence float64 `json:"confidence"`
	}
	if err := c.extractJSON(ctx, "extract_itinerary", ItineraryExtractorSystemInstruction, itinerarySchema, mimeType, data, &raw); err != nil {
		return nil, err
	}

	candidate := &records.ItineraryCandidate{Confidence: raw.Confidence}
	for _, entry := range raw.Entries {
		date := parseDate(entry.Date)
		if date.IsZero() {
			continue
		}
		candidate.Entries = append(candidate.Entries, records.ItineraryEntryCandidate{
			Date:     date,
			Time:     entry.Time,
			Title:    entry.Title,
			Category: entry.Category,
		})
	}

	c.log.DebugContext(ctx, "Itinerary extracted",
		"entries", len(candidate.Entries), "confidence", candidate.Confidence)
	return candidate, nil
}

func (c *sdkClient) AnswerTripQuestion(ctx context.Context, question, tripData string) (string, error) {
	if question == "" {
		return "", fmt.Errorf("question is required")
	}
	c.log.DebugContext(ctx, "Answering trip question", "question_length", len(question))

	cfg := c.baseConfig(TripAssistantSystemInstruction + tripData)
	contents := []*genai.Content{genai.NewContentFromText(question, genai.RoleUser)}

	resp, err := c.generateContentWithRetries(ctx, contents, cfg)
	if err != nil {
		c.log.ErrorContext(ctx, "Gemini trip question failed", "error", err)
		return "", err
	}
	return c.extractText(ctx, resp, "answer_trip_question")
}

func parseAmount(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parseNullAmount(s string) decimal.NullDecimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

func parseDate(s string) time.Time {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
		return t.UTC()
	}
	return time.Time{}
}
