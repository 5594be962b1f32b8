package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/wanderlog/wanderbot/internal/database"
	"github.com/wanderlog/wanderbot/internal/errs"
	"github.com/wanderlog/wanderbot/internal/gemini"
	"github.com/wanderlog/wanderbot/internal/session"
)

const (
	fileDownloadTimeout = 30 * time.Second
	aiProcessingTimeout = 2 * time.Minute
	maxDocumentBytes    = 10 * 1024 * 1024
)

// DownloadDocument retrieves file data from Telegram and detects its MIME type.
func DownloadDocument(ctx context.Context, b *bot.Bot, token, fileID string) (data []byte, mimeType string, err error) {
	if token == "" {
		return nil, "", fmt.Errorf("empty token provided")
	}
	if fileID == "" {
		return nil, "", fmt.Errorf("empty fileID provided")
	}
	downloadCtx, cancel := context.WithTimeout(ctx, fileDownloadTimeout)
	defer cancel()

	fileObj, err := b.GetFile(downloadCtx, &bot.GetFileParams{FileID: fileID})
	if err != nil {
		return nil, "", fmt.Errorf("failed to get file: %w", err)
	}
	if fileObj.FilePath == "" {
		return nil, "", fmt.Errorf("empty file path returned from Telegram")
	}

	url := fmt.Sprintf("https://api.telegram.org/file/bot%s/%s", token, fileObj.FilePath)
	req, err := http.NewRequestWithContext(downloadCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download file: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close response body: %w", closeErr)
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	data, err = io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read file data: %w", err)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("received empty file data")
	}

	mimeType = http.DetectContentType(data)
	return data, mimeType, nil
}

// NewDocumentHandler returns the handler for uploaded documents and photos.
// It classifies the upload, extracts the matching record, and attaches it to
// the chat's active trip.
func NewDocumentHandler(deps HandlerDeps) bot.HandlerFunc {
	return documentHandler{deps}.Handle
}

type documentHandler struct {
	deps HandlerDeps
}

// documentFileID picks the file to process from a message: the attached
// document, or the largest photo rendition.
func documentFileID(msg *models.Message) (fileID, declaredMime string, ok bool) {
	if msg.Document != nil {
		return msg.Document.FileID, msg.Document.MimeType, true
	}
	if len(msg.Photo) > 0 {
		best := msg.Photo[0]
		for _, p := range msg.Photo[1:] {
			if p.FileSize > best.FileSize {
				best = p
			}
		}
		return best.FileID, "", true
	}
	return "", "", false
}

func (h documentHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "document")

	sc, ok := resolveScope(update)
	if !ok {
		return
	}
	fileID, declaredMime, ok := documentFileID(update.Message)
	if !ok {
		return
	}

	// Keyed to the source message, so Telegram redeliveries attach nothing twice.
	ingest := fmt.Sprintf("tg:%d:%d", update.Message.Chat.ID, update.Message.ID)

	h.deps.Sessions.Lock(sc.ChatID)
	defer h.deps.Sessions.Unlock(sc.ChatID)

	sess, err := h.deps.Sessions.Get(ctx, sc)
	if err != nil {
		log.ErrorContext(ctx, "Failed to load session", "error", err, "scope", sc.String())
		reply(ctx, b, log, sc.ChatID, h.deps.Config.Messages.GeneralError)
		return
	}

	t, err := h.deps.Trips.Resolve(ctx, sc, sess)
	if err != nil {
		log.ErrorContext(ctx, "Failed to resolve active trip", "error", err, "scope", sc.String())
		reply(ctx, b, log, sc.ChatID, h.deps.Config.Messages.GeneralError)
		return
	}
	if t == nil {
		reply(ctx, b, log, sc.ChatID, h.deps.Config.Messages.NoActiveTrip)
		return
	}

	_, _ = b.SendChatAction(ctx, &bot.SendChatActionParams{ChatID: sc.ChatID, Action: models.ChatActionTyping})

	data, mimeType, err := DownloadDocument(ctx, b, h.deps.Config.Telegram.Token, fileID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to download document", "error", err, "file_id", fileID)
		reply(ctx, b, log, sc.ChatID, h.deps.Config.Messages.GeneralError)
		return
	}
	if declaredMime != "" {
		mimeType = declaredMime
	}

	aiCtx, cancel := context.WithTimeout(ctx, aiProcessingTimeout)
	defer cancel()

	docType, err := h.deps.GeminiClient.ClassifyDocument(aiCtx, mimeType, data)
	if err != nil {
		log.ErrorContext(ctx, "Document classification failed", "error", err)
		reply(ctx, b, log, sc.ChatID, h.deps.Config.Messages.GeneralError)
		return
	}

	log.InfoContext(ctx, "Document classified",
		"type", docType, "trip_id", t.ID, "chat_id", sc.ChatID, "mime_type", mimeType)

	switch docType {
	case gemini.DocReceipt:
		h.handleReceipt(aiCtx, b, update, sc.ChatID, t, sess, ingest, mimeType, data)
	case gemini.DocFlightTicket:
		h.handleFlight(aiCtx, b, sc.ChatID, t, ingest, mimeType, data)
	case gemini.DocHotelBooking:
		h.handleHotel(aiCtx, b, sc.ChatID, t, ingest, mimeType, data)
	case gemini.DocItinerary:
		h.handleItinerary(aiCtx, b, sc.ChatID, t, sess, ingest, mimeType, data)
	default:
		reply(ctx, b, log, sc.ChatID, "I couldn't recognize that as a travel document. I can read flight tickets, receipts, hotel bookings and itineraries.")
	}
}

func (h documentHandler) handleReceipt(ctx context.Context, b *bot.Bot, update *models.Update, chatID int64, t *database.Trip, sess *database.Session, ingest, mimeType string, data []byte) {
	log := h.deps.Logger.With("handler", "document")

	candidate, err := h.deps.GeminiClient.ExtractExpense(ctx, mimeType, data)
	if err != nil {
		log.ErrorContext(ctx, "Expense extraction failed", "error", err)
		reply(ctx, b, log, chatID, h.deps.Config.Messages.GeneralError)
		return
	}
	candidate.IngestID = ingest
	if candidate.Currency == "" {
		candidate.Currency = h.deps.Config.Trips.DefaultCurrency
	}

	expense, err := h.deps.Attacher.AttachExpense(ctx, t.ID, candidate)
	if err != nil {
		var incErr *errs.IncompleteRecordError
		if errors.As(err, &incErr) {
			reply(ctx, b, log, chatID, "I read the receipt but couldn't make out: "+
				fmt.Sprintf("%v", incErr.Missing)+". Could you send a clearer photo?")
			return
		}
		log.ErrorContext(ctx, "Failed to attach expense", "error", err, "trip_id", t.ID)
		reply(ctx, b, log, chatID, h.deps.Config.Messages.GeneralError)
		return
	}

	msg := fmt.Sprintf("Recorded %s %s at %s.", expense.Total.StringFixed(2), expense.Currency, expense.Merchant)

	err = h.deps.Sessions.StartFlow(ctx, sess, session.StateAwaitingSplitType, &session.FlowData{
		Flow:      session.FlowExpenseSplit,
		ExpenseID: expense.ID,
		PaidBy:    senderName(update),
	})
	if err != nil {
		// Mid-flow already; record the expense and leave the split for later.
		reply(ctx, b, log, chatID, msg)
		return
	}

	reply(ctx, b, log, chatID, msg+
		" Split it? Say \"even\", \"even between Alice, Bob\", \"Alice=12.50, Bob=30\", or \"skip\".")
}

func (h documentHandler) handleFlight(ctx context.Context, b *bot.Bot, chatID int64, t *database.Trip, ingest, mimeType string, data []byte) {
	log := h.deps.Logger.With("handler", "document")

	candidate, err := h.deps.GeminiClient.ExtractFlight(ctx, mimeType, data)
	if err != nil {
		log.ErrorContext(ctx, "Flight extraction failed", "error", err)
		reply(ctx, b, log, chatID, h.deps.Config.Messages.GeneralError)
		return
	}
	candidate.IngestID = ingest

	event, err := h.deps.Attacher.AttachFlight(ctx, t.ID, candidate)
	if err != nil {
		var incErr *errs.IncompleteRecordError
		if errors.As(err, &incErr) {
			reply(ctx, b, log, chatID, "I read the ticket but couldn't make out: "+
				fmt.Sprintf("%v", incErr.Missing)+". Could you send a clearer photo?")
			return
		}
		log.ErrorContext(ctx, "Failed to attach flight", "error", err, "trip_id", t.ID)
		reply(ctx, b, log, chatID, h.deps.Config.Messages.GeneralError)
		return
	}

	if event.DepartureTime.Valid {
		if err := h.deps.Trips.EnsureStartDate(ctx, t, event.DepartureTime.Time); err != nil {
			log.ErrorContext(ctx, "Failed to set trip start date", "error", err, "trip_id", t.ID)
		}
	}

	msg := fmt.Sprintf("Got it: flight %s", event.FlightNumber)
	if event.DepartureCity != "" && event.ArrivalCity != "" {
		msg += fmt.Sprintf(" from %s to %s", event.DepartureCity, event.ArrivalCity)
	}
	if event.DepartureTime.Valid {
		msg += " departing " + event.DepartureTime.Time.Format("Mon Jan 2 15:04")
	}
	reply(ctx, b, log, chatID, msg+".")
}

func (h documentHandler) handleHotel(ctx context.Context, b *bot.Bot, chatID int64, t *database.Trip, ingest, mimeType string, data []byte) {
	log := h.deps.Logger.With("handler", "document")

	candidate, err := h.deps.GeminiClient.ExtractHotel(ctx, mimeType, data)
	if err != nil {
		log.ErrorContext(ctx, "Hotel extraction failed", "error", err)
		reply(ctx, b, log, chatID, h.deps.Config.Messages.GeneralError)
		return
	}
	candidate.IngestID = ingest

	event, err := h.deps.Attacher.AttachHotel(ctx, t.ID, candidate)
	if err != nil {
		var incErr *errs.IncompleteRecordError
		if errors.As(err, &incErr) {
			reply(ctx, b, log, chatID, "I read the booking but couldn't make out: "+
				fmt.Sprintf("%v", incErr.Missing)+". Could you send a clearer copy?")
			return
		}
		log.ErrorContext(ctx, "Failed to attach hotel booking", "error", err, "trip_id", t.ID)
		reply(ctx, b, log, chatID, h.deps.Config.Messages.GeneralError)
		return
	}

	msg := "Booked in: " + event.HotelName
	if event.CheckIn.Valid && event.CheckOut.Valid {
		msg += fmt.Sprintf(", %s to %s",
			event.CheckIn.Time.Format("Jan 2"), event.CheckOut.Time.Format("Jan 2"))
	}
	reply(ctx, b, log, chatID, msg+".")
}

func (h documentHandler) handleItinerary(ctx context.Context, b *bot.Bot, chatID int64, t *database.Trip, sess *database.Session, ingest, mimeType string, data []byte) {
	log := h.deps.Logger.With("handler", "document")

	candidate, err := h.deps.GeminiClient.ExtractItinerary(ctx, mimeType, data)
	if err != nil {
		log.ErrorContext(ctx, "Itinerary extraction failed", "error", err)
		reply(ctx, b, log, chatID, h.deps.Config.Messages.GeneralError)
		return
	}
	if err := candidate.Validate(); err != nil {
		reply(ctx, b, log, chatID, "I couldn't find any dated entries in that itinerary.")
		return
	}

	pending := make([]session.PendingEntry, 0, len(candidate.Entries))
	for _, entry := range candidate.Entries {
		pending = append(pending, session.PendingEntry{
			Date:     entry.Date,
			Time:     entry.Time,
			Title:    entry.Title,
			Category: entry.Category,
		})
	}

	err = h.deps.Sessions.StartFlow(ctx, sess, session.StateAwaitingItineraryOK, &session.FlowData{
		Flow:           session.FlowItineraryConfirm,
		IngestID:       ingest,
		PendingEntries: pending,
	})
	if err != nil {
		var flowErr *errs.ConflictingFlowError
		if errors.As(err, &flowErr) {
			reply(ctx, b, log, chatID, flowErr.Error())
			return
		}
		log.ErrorContext(ctx, "Failed to start itinerary confirmation", "error", err)
		reply(ctx, b, log, chatID, h.deps.Config.Messages.GeneralError)
		return
	}

	preview := fmt.Sprintf("I found %d itinerary entr", len(pending))
	if len(pending) == 1 {
		preview += "y"
	} else {
		preview += "ies"
	}
	preview += fmt.Sprintf(", %s to %s. Add them to \"%s\"? (yes/no)",
		pending[0].Date.Format("Jan 2"), pending[len(pending)-1].Date.Format("Jan 2"), t.Name)
	reply(ctx, b, log, chatID, preview)
}
